package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"online-breakout/internal/api"
	"online-breakout/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", os.Getenv("BREAKOUT_CONFIG"), "optional TOML config file")
	flag.Parse()

	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  ONLINE BREAKOUT - RELAY")
	log.Println("🎮  Rooms + WebSocket relay")
	log.Println("🎮 ================================")

	appConfig, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	relayCfg := appConfig.Relay

	api.AllowedOrigins = append(api.AllowedOrigins, relayCfg.AllowedOrigins...)

	// Room store: Redis when configured so several relays can share rooms
	var rooms api.RoomStore
	if appConfig.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := api.ConnectRedis(ctx, appConfig.Redis.Addr, appConfig.Redis.Password, appConfig.Redis.DB)
		cancel()
		if err != nil {
			log.Fatalf("❌ Redis unavailable at %s: %v", appConfig.Redis.Addr, err)
		}
		defer rdb.Close()
		rooms = api.NewRedisRoomStore(rdb, relayCfg.RoomTTL, relayCfg.MaxRooms)
		log.Printf("🗄️  Rooms stored in Redis at %s (db %d)", appConfig.Redis.Addr, appConfig.Redis.DB)
	} else {
		rooms = api.NewMemoryRoomStore(relayCfg.RoomTTL, relayCfg.MaxRooms)
		log.Println("🗄️  Rooms stored in memory (set REDIS_ADDR to share them)")
	}
	log.Printf("🚪 Max rooms: %d, room TTL: %v", relayCfg.MaxRooms, relayCfg.RoomTTL)

	server := api.NewServer(api.ServerConfig{
		Rooms:       rooms,
		CORSOrigins: relayCfg.AllowedOrigins,
	})

	debugCfg := appConfig.Debug
	if err := api.StartDebugServer(api.ObservabilityConfig{
		Enabled:       debugCfg.Enabled,
		ListenAddr:    debugCfg.ListenAddr,
		BasicAuthUser: debugCfg.User,
		BasicAuthPass: debugCfg.Pass,
	}); err != nil {
		log.Printf("⚠️ Debug server: %v", err)
	}

	// Start API server in goroutine
	addr := ":" + strconv.Itoa(relayCfg.Port)
	go func() {
		log.Printf("🌐 Relay on http://localhost%s", addr)
		log.Printf("   - create room: POST http://localhost%s/api/rooms", addr)
		log.Printf("   - join:        ws://localhost%s/ws/{room}?role=host|client", addr)

		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Stats logging goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := server.Relay().Stats()
			log.Printf("📈 Relay: rooms=%v conns=%v forwarded=%v dropped=%v",
				stats["activeRooms"], stats["connections"], stats["forwarded"], stats["dropped"])
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Relay ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Shutdown: %v", err)
	}
	log.Println("👋 Goodbye!")
}
