package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// RoomTokenBytes of randomness give a 64-character hex token.
	RoomTokenBytes = 32

	DefaultRoomTTL  = 30 * time.Minute
	DefaultMaxRooms = 1000

	redisRoomPrefix = "breakout:room:"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomLimit     = errors.New("room limit reached")
	ErrInvalidRoomID = errors.New("invalid room token")
)

// Room is a registered meeting point for two players.
type Room struct {
	Token     string    `json:"room"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RoomStore keeps the room registry. Rooms expire after their TTL whether
// or not anyone joined.
type RoomStore interface {
	Create(ctx context.Context) (Room, error)
	Get(ctx context.Context, token string) (Room, error)
	Delete(ctx context.Context, token string) error
	Count(ctx context.Context) (int, error)
}

// NewRoomToken returns 64 lowercase hex characters from crypto/rand.
func NewRoomToken() (string, error) {
	b := make([]byte, RoomTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate room token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidRoomToken checks the shape of a token, not whether it exists.
func ValidRoomToken(token string) bool {
	if len(token) != 2*RoomTokenBytes {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// MemoryRoomStore is the single-instance registry.
type MemoryRoomStore struct {
	mu    sync.Mutex
	rooms map[string]Room
	ttl   time.Duration
	max   int
	now   func() time.Time
}

func NewMemoryRoomStore(ttl time.Duration, maxRooms int) *MemoryRoomStore {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	if maxRooms <= 0 {
		maxRooms = DefaultMaxRooms
	}
	return &MemoryRoomStore{
		rooms: make(map[string]Room),
		ttl:   ttl,
		max:   maxRooms,
		now:   time.Now,
	}
}

func (s *MemoryRoomStore) Create(ctx context.Context) (Room, error) {
	token, err := NewRoomToken()
	if err != nil {
		return Room{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()
	if len(s.rooms) >= s.max {
		return Room{}, ErrRoomLimit
	}

	now := s.now()
	room := Room{Token: token, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}
	s.rooms[token] = room
	return room, nil
}

func (s *MemoryRoomStore) Get(ctx context.Context, token string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[token]
	if !ok || !s.now().Before(room.ExpiresAt) {
		delete(s.rooms, token)
		return Room{}, ErrRoomNotFound
	}
	return room, nil
}

func (s *MemoryRoomStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	delete(s.rooms, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryRoomStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return len(s.rooms), nil
}

func (s *MemoryRoomStore) expireLocked() {
	now := s.now()
	for token, room := range s.rooms {
		if !now.Before(room.ExpiresAt) {
			delete(s.rooms, token)
		}
	}
}

// RedisRoomStore shares the registry between relay instances. Each room is
// one key whose Redis TTL is the room TTL.
type RedisRoomStore struct {
	rdb *redis.Client
	ttl time.Duration
	max int
}

func NewRedisRoomStore(rdb *redis.Client, ttl time.Duration, maxRooms int) *RedisRoomStore {
	if ttl <= 0 {
		ttl = DefaultRoomTTL
	}
	if maxRooms <= 0 {
		maxRooms = DefaultMaxRooms
	}
	return &RedisRoomStore{rdb: rdb, ttl: ttl, max: maxRooms}
}

// ConnectRedis opens a client and verifies it with a ping.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (s *RedisRoomStore) Create(ctx context.Context) (Room, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return Room{}, err
	}
	if n >= s.max {
		return Room{}, ErrRoomLimit
	}

	token, err := NewRoomToken()
	if err != nil {
		return Room{}, err
	}
	now := time.Now()
	room := Room{Token: token, CreatedAt: now, ExpiresAt: now.Add(s.ttl)}

	data, err := json.Marshal(room)
	if err != nil {
		return Room{}, err
	}
	ok, err := s.rdb.SetNX(ctx, redisRoomPrefix+token, data, s.ttl).Result()
	if err != nil {
		return Room{}, fmt.Errorf("store room: %w", err)
	}
	if !ok {
		return Room{}, fmt.Errorf("store room: token collision")
	}
	return room, nil
}

func (s *RedisRoomStore) Get(ctx context.Context, token string) (Room, error) {
	data, err := s.rdb.Get(ctx, redisRoomPrefix+token).Result()
	if err == redis.Nil {
		return Room{}, ErrRoomNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("load room: %w", err)
	}

	var room Room
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return Room{}, fmt.Errorf("decode room: %w", err)
	}
	return room, nil
}

func (s *RedisRoomStore) Delete(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, redisRoomPrefix+token).Err()
}

// Count scans the room keys.
func (s *RedisRoomStore) Count(ctx context.Context) (int, error) {
	n := 0
	iter := s.rdb.Scan(ctx, 0, redisRoomPrefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return n, nil
}
