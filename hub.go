package server

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"warbound/server/internal/config"
	"warbound/server/internal/content"
	"warbound/server/internal/game"
	"warbound/server/internal/telemetry"
)

// HubConfig bundles the shared dependencies rooms are assembled from.
type HubConfig struct {
	Sim         config.SimConfig
	Seed        uint64
	Collections *content.Collections
	Clock       telemetry.Clock
	Logger      telemetry.Logger
	Metrics     telemetry.Metrics
}

// Hub owns the live rooms. Each room runs its own loop goroutine; the hub
// only routes joins, lookups, and shutdown.
type Hub struct {
	cfg HubConfig

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewHub constructs an empty hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NopLogger{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.NopMetrics{}
	}
	if cfg.Clock == nil {
		cfg.Clock = telemetry.SystemClock{}
	}
	return &Hub{
		cfg:   cfg,
		rooms: make(map[string]*Room),
	}
}

// CreateRoom assembles a new room and starts its loop. With no configured
// seed the room id seeds the world, so a replay needs only the room id.
func (h *Hub) CreateRoom() (*Room, error) {
	id := uuid.NewString()
	seed := h.cfg.Seed
	if seed == 0 {
		seed = game.SeedFromString(id)
	}
	room, err := newRoom(roomConfig{
		id:          id,
		seed:        seed,
		sim:         h.cfg.Sim,
		collections: h.cfg.Collections,
		clock:       h.cfg.Clock,
		logger:      h.cfg.Logger,
		metrics:     h.cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.rooms[id] = room
	h.mu.Unlock()

	go room.Run()
	h.cfg.Logger.Infow("room created", "room", id, "seed", seed)
	return room, nil
}

// Room looks up a live room by id.
func (h *Hub) Room(id string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[id]
	return room, ok
}

// Join issues a session in the room and returns the bootstrap response.
func (h *Hub) Join(roomID string) (JoinResponse, error) {
	room, ok := h.Room(roomID)
	if !ok {
		return JoinResponse{}, fmt.Errorf("server: unknown room %s", roomID)
	}
	return room.join(uuid.NewString()), nil
}

// CloseRoom stops and removes one room.
func (h *Hub) CloseRoom(id string) {
	h.mu.Lock()
	room, ok := h.rooms[id]
	if ok {
		delete(h.rooms, id)
	}
	h.mu.Unlock()
	if ok {
		room.Close()
		h.cfg.Logger.Infow("room closed", "room", id)
	}
}

// Rooms returns diagnostics for every live room, ordered by id.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, room.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Shutdown closes every room.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	rooms := h.rooms
	h.rooms = make(map[string]*Room)
	h.mu.Unlock()
	for _, room := range rooms {
		room.Close()
	}
}
