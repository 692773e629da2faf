package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Gather/internal/bridge"
	"github.com/dkeye/Gather/internal/domain"
)

const (
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomCodeLen      = 6
)

var ErrRoomNotFound = errors.New("room not found")

// Options tunes every coordinator the registry creates.
type Options struct {
	HeartbeatInterval time.Duration
	LivenessTimeout   time.Duration
	AgentTimeout      time.Duration
	EmptyRoomTTL      time.Duration
	ChatHistoryLimit  int
}

// Registry maps room codes to coordinators. It is the only process-wide
// mutable state; each room's data is owned by its own coordinator.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomCode]*roomEntry
	agent   bridge.Agent
	opts    Options
	newCode func() (string, error)
}

type roomEntry struct {
	coord     *Coordinator
	createdAt time.Time
}

func NewRegistry(agent bridge.Agent, opts Options) *Registry {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 25 * time.Second
	}
	if opts.LivenessTimeout <= 0 {
		opts.LivenessTimeout = 2 * opts.HeartbeatInterval
	}
	if opts.AgentTimeout <= 0 {
		opts.AgentTimeout = 60 * time.Second
	}
	if opts.EmptyRoomTTL <= 0 {
		opts.EmptyRoomTTL = 5 * time.Minute
	}
	return &Registry{
		rooms: make(map[domain.RoomCode]*roomEntry),
		agent: agent,
		opts:  opts,
		newCode: func() (string, error) {
			return gonanoid.Generate(roomCodeAlphabet, roomCodeLen)
		},
	}
}

// CreateRoom allocates a collision-checked short code and starts an
// empty coordinator for it, populated on first join.
func (r *Registry) CreateRoom(name domain.RoomName) (*domain.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code domain.RoomCode
	for {
		raw, err := r.newCode()
		if err != nil {
			return nil, err
		}
		code = domain.RoomCode(raw)
		if _, taken := r.rooms[code]; !taken {
			break
		}
	}

	room := domain.NewRoom(code, name)
	r.rooms[code] = &roomEntry{
		coord:     newCoordinator(room, r.agent, r.opts, r.remove),
		createdAt: room.CreatedAt,
	}
	log.Info().Str("module", "app.registry").Str("code", string(code)).Str("name", string(room.Name)).Msg("room created")
	return room, nil
}

// Resolve looks a coordinator up by code, case-insensitively.
func (r *Registry) Resolve(code string) (*Coordinator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.rooms[canonical(code)]
	if !ok {
		return nil, false
	}
	return e.coord, true
}

// Delete force-closes a room regardless of members.
func (r *Registry) Delete(code string) bool {
	r.mu.RLock()
	e, ok := r.rooms[canonical(code)]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	// The coordinator calls back into remove as its final operation.
	e.coord.Stop()
	return true
}

// remove is the coordinator's on-empty callback.
func (r *Registry) remove(code domain.RoomCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	log.Info().Str("module", "app.registry").Str("code", string(code)).Msg("room removed")
}

func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// SweepLoop reaps rooms that were created but never joined. Rooms that
// had members destroy themselves the instant they empty; this loop only
// covers codes that were handed out and abandoned before any connect.
func (r *Registry) SweepLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	// Snapshot first: coordinator queries must not run under the
	// registry lock, or an on-empty callback could deadlock against us.
	r.mu.RLock()
	candidates := make([]*roomEntry, 0)
	for _, e := range r.rooms {
		if now.Sub(e.createdAt) > r.opts.EmptyRoomTTL {
			candidates = append(candidates, e)
		}
	}
	r.mu.RUnlock()

	for _, e := range candidates {
		e.coord.StopIfNeverJoined()
	}
}

func canonical(code string) domain.RoomCode {
	return domain.RoomCode(strings.ToUpper(strings.TrimSpace(code)))
}
