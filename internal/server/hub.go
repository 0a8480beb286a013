// Package server implements the room server: the websocket fan-out hub, the
// per-room authoritative playback state and the REST surface in front of it.
package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"together-sync/internal/config"
	"together-sync/internal/protocol"
	"together-sync/internal/store"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Hub owns every live room. Room state is only touched under the hub mutex,
// so individual rooms need no locking of their own.
type Hub struct {
	cfg   config.ServerConfig
	store *store.Store
	clock clockwork.Clock

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewHub(cfg config.ServerConfig, st *store.Store, clock clockwork.Clock) *Hub {
	return &Hub{
		cfg:   cfg,
		store: st,
		clock: clock,
		rooms: map[string]*Room{},
	}
}

// CreateRoom provisions an empty room seeded with videoID and returns its
// join code.
func (h *Hub) CreateRoom(ctx context.Context, videoID string) (string, error) {
	h.mu.Lock()
	var code string
	for {
		code = newRoomCode()
		if _, taken := h.rooms[code]; !taken {
			break
		}
	}
	h.rooms[code] = newRoom(h, code, videoID, h.clock)
	h.mu.Unlock()

	if h.store != nil {
		if _, err := h.store.RecordRoomCreated(ctx, code, videoID); err != nil {
			log.Warn().Err(err).Str("room", code).Msg("room persist failed")
		}
	}
	log.Info().Str("room", code).Str("video_id", videoID).Msg("room created")
	return code, nil
}

func (h *Hub) Exists(code string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.rooms[code]
	return ok
}

// dispatch routes one decoded client message. join-room attaches the client
// to a room; everything else requires an attached room.
func (h *Hub) dispatch(c *client, msg protocol.ClientMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if join, ok := msg.(protocol.JoinRoom); ok && c.room == nil {
		if join.Username == "" {
			c.sendMessage(protocol.JoinError{Message: "username required"})
			return
		}
		room, found := h.rooms[join.RoomCode]
		if !found {
			c.sendMessage(protocol.JoinError{Message: "room not found"})
			return
		}
		room.join(c, join.Username)
		return
	}
	if c.room == nil {
		c.sendMessage(protocol.ActionError{Message: "join a room first"})
		return
	}
	c.room.handle(c, msg)
}

// disconnect detaches a client that dropped without an explicit exit.
func (h *Hub) disconnect(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.room != nil {
		c.room.leave(c)
	}
}

// remove drops a room from the registry. Callers hold the hub mutex.
func (h *Hub) remove(code string) {
	delete(h.rooms, code)
	if h.store != nil {
		go func() {
			if err := h.store.RecordRoomClosed(context.Background(), code); err != nil {
				log.Warn().Err(err).Str("room", code).Msg("room close persist failed")
			}
		}()
	}
	log.Info().Str("room", code).Msg("room removed")
}

// Run drives the ambient sync broadcasts and empty-room reaping until ctx is
// cancelled.
func (h *Hub) Run(ctx context.Context) {
	ambient := h.clock.NewTicker(h.cfg.AmbientSyncInterval)
	defer ambient.Stop()
	reap := h.clock.NewTicker(h.cfg.EmptyRoomTTL / 2)
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ambient.Chan():
			h.ambientTick()
		case <-reap.Chan():
			h.reapEmptyRooms()
		}
	}
}

func (h *Hub) ambientTick() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		room.ambientTick()
	}
}

func (h *Hub) reapEmptyRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock.Now()
	for code, room := range h.rooms {
		if len(room.members) > 0 || room.emptySince.IsZero() {
			continue
		}
		if now.Sub(room.emptySince) >= h.cfg.EmptyRoomTTL {
			h.remove(code)
		}
	}
}

func newRoomCode() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = roomCodeAlphabet[int(b)%len(roomCodeAlphabet)]
	}
	return string(buf)
}
