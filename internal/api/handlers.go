package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"online-breakout/internal/game"
)

// roomResponse adds join paths and live seats to a Room.
type roomResponse struct {
	Room
	Join   map[string]string `json:"join"`
	Seated []string          `json:"seated"`
}

func (h *routerHandlers) describe(room Room) roomResponse {
	resp := roomResponse{
		Room: room,
		Join: map[string]string{
			game.RoleHost.String():   "/ws/" + room.Token + "?role=" + game.RoleHost.String(),
			game.RoleClient.String(): "/ws/" + room.Token + "?role=" + game.RoleClient.String(),
		},
		Seated: []string{},
	}
	if h.relay != nil {
		resp.Seated = h.relay.Occupancy(room.Token)
	}
	return resp
}

func (h *routerHandlers) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Create(r.Context())
	if err != nil {
		if errors.Is(err, ErrRoomLimit) {
			writeError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		log.Printf("❌ Room creation failed: %v", err)
		writeError(w, "room creation failed", http.StatusInternalServerError)
		return
	}

	log.Printf("🚪 Room %s created", shortToken(room.Token))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.describe(room))
}

func (h *routerHandlers) lookupRoom(w http.ResponseWriter, r *http.Request) (Room, bool) {
	token := chi.URLParam(r, "room")
	if !ValidRoomToken(token) {
		writeError(w, ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return Room{}, false
	}

	room, err := h.rooms.Get(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrRoomNotFound) {
			writeError(w, err.Error(), http.StatusNotFound)
			return Room{}, false
		}
		log.Printf("❌ Room lookup failed: %v", err)
		writeError(w, "room lookup failed", http.StatusInternalServerError)
		return Room{}, false
	}
	return room, true
}

func (h *routerHandlers) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.lookupRoom(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.describe(room))
}

// handleDeleteRoom closes registration. Seated players keep playing until
// they leave.
func (h *routerHandlers) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	room, ok := h.lookupRoom(w, r)
	if !ok {
		return
	}
	if err := h.rooms.Delete(r.Context(), room.Token); err != nil {
		log.Printf("❌ Room delete failed: %v", err)
		writeError(w, "room delete failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]interface{}{
		"rateLimit": h.rateLimiter.Stats(),
	}

	if n, err := h.rooms.Count(r.Context()); err == nil {
		stats["rooms"] = n
	} else {
		log.Printf("⚠️ Room count failed: %v", err)
	}
	if h.relay != nil {
		stats["relay"] = h.relay.Stats()
	}
	writeJSON(w, stats)
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
