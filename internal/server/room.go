package server

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"together-sync/internal/protocol"
	"together-sync/internal/store"
)

const chatHistoryCap = 50

// Room holds the authoritative playback state for one watch session and the
// set of connected members. All access goes through its mutex-free owner, the
// hub, except broadcast sends which use the clients' buffered channels.
type Room struct {
	code string
	hub  *Hub

	videoID string
	playing bool
	// position is the playhead in seconds as of basisAt; while playing the
	// current position extrapolates from it.
	position float64
	basisAt  time.Time

	ownerID string
	members map[string]*client
	chat    []protocol.ChatMessage

	emptySince time.Time
	clock      clockwork.Clock
}

func newRoom(hub *Hub, code, videoID string, clock clockwork.Clock) *Room {
	return &Room{
		code:       code,
		hub:        hub,
		videoID:    videoID,
		members:    map[string]*client{},
		emptySince: clock.Now(),
		clock:      clock,
	}
}

func (r *Room) currentPosition() float64 {
	if !r.playing {
		return r.position
	}
	return r.position + r.clock.Since(r.basisAt).Seconds()
}

func (r *Room) rebase(position float64, playing bool) {
	r.position = position
	r.playing = playing
	r.basisAt = r.clock.Now()
}

func (r *Room) serverNow() int64 {
	return r.clock.Now().UnixMilli()
}

func (r *Room) snapshot() protocol.StateSync {
	return protocol.StateSync{
		Playing:     r.playing,
		CurrentTime: r.currentPosition(),
		ServerNow:   r.serverNow(),
	}
}

// join registers the client and sends the full bootstrap state. The first
// member becomes the owner.
func (r *Room) join(c *client, username string) {
	c.username = username
	c.room = r
	r.members[c.id] = c
	r.emptySince = time.Time{}
	if r.ownerID == "" {
		r.ownerID = c.id
	}

	chat := make([]protocol.ChatMessage, len(r.chat))
	copy(chat, r.chat)
	c.sendMessage(protocol.RoomState{
		RoomCode:    r.code,
		ClientID:    c.id,
		IsHost:      c.id == r.ownerID,
		VideoID:     r.videoID,
		Playing:     r.playing,
		CurrentTime: r.currentPosition(),
		ServerNow:   r.serverNow(),
		Chat:        chat,
	})
	r.broadcastExcept(c, r.systemMessage(username+" joined"))
	log.Info().Str("room", r.code).Str("client_id", c.id).Str("username", username).Msg("member joined")
}

// leave removes the client. Ownership moves to an arbitrary remaining member;
// an empty room starts its reap clock.
func (r *Room) leave(c *client) {
	if _, ok := r.members[c.id]; !ok {
		return
	}
	delete(r.members, c.id)
	c.room = nil

	if len(r.members) == 0 {
		r.ownerID = ""
		r.emptySince = r.clock.Now()
		return
	}
	r.broadcast(r.systemMessage(c.username + " left"))
	if r.ownerID == c.id {
		for id := range r.members {
			r.ownerID = id
			break
		}
		r.broadcast(protocol.OwnerChanged{OwnerID: r.ownerID})
	}
}

// handle applies one inbound message from a joined member.
func (r *Room) handle(c *client, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.SetVideo:
		if m.VideoID == "" {
			c.sendMessage(protocol.ActionError{Message: "videoId required"})
			return
		}
		r.videoID = m.VideoID
		r.rebase(0, false)
		r.broadcastExcept(c, protocol.VideoChanged{VideoID: m.VideoID, By: c.username})
	case protocol.PlayEvent:
		r.rebase(m.CurrentTime, true)
		r.broadcastExcept(c, protocol.PlaySync{Playing: true, CurrentTime: m.CurrentTime, ServerNow: r.serverNow()})
	case protocol.PauseEvent:
		r.rebase(m.CurrentTime, false)
		r.broadcastExcept(c, protocol.PauseSync{Playing: false, CurrentTime: m.CurrentTime, ServerNow: r.serverNow()})
	case protocol.SeekEvent:
		r.rebase(m.CurrentTime, r.playing)
		r.broadcastExcept(c, protocol.SeekSync{Playing: r.playing, CurrentTime: m.CurrentTime, ServerNow: r.serverNow()})
	case protocol.ChatSend:
		if m.Text == "" {
			return
		}
		r.handleChat(c, m.Text)
	case protocol.ExitRoom:
		c.sendMessage(protocol.RoomExited{By: c.username})
		r.leave(c)
	case protocol.TerminateRoom:
		if c.id != r.ownerID {
			c.sendMessage(protocol.ActionError{Message: "only the host can end the room"})
			return
		}
		r.terminate(c.username)
	case protocol.JoinRoom:
		c.sendMessage(protocol.ActionError{Message: "already in a room"})
	}
}

func (r *Room) handleChat(c *client, text string) {
	msg := protocol.ChatMessage{ID: store.NewID(), Username: c.username, Text: text}
	r.chat = append(r.chat, msg)
	if len(r.chat) > chatHistoryCap {
		r.chat = r.chat[len(r.chat)-chatHistoryCap:]
	}
	if r.hub.store != nil {
		if _, err := r.hub.store.RecordChat(context.Background(), r.code, c.username, text); err != nil {
			log.Warn().Err(err).Str("room", r.code).Msg("chat persist failed")
		}
	}
	r.broadcast(msg)
}

func (r *Room) terminate(by string) {
	r.broadcast(protocol.RoomTerminated{By: by})
	for _, c := range r.members {
		c.room = nil
		c.close()
	}
	r.members = map[string]*client{}
	r.hub.remove(r.code)
}

func (r *Room) ambientTick() {
	if len(r.members) == 0 {
		return
	}
	r.broadcast(r.snapshot())
}

func (r *Room) systemMessage(text string) protocol.SystemMessage {
	return protocol.SystemMessage{ID: store.NewID(), Text: text}
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	for _, c := range r.members {
		c.sendMessage(msg)
	}
}

func (r *Room) broadcastExcept(skip *client, msg protocol.ServerMessage) {
	for _, c := range r.members {
		if c != skip {
			c.sendMessage(msg)
		}
	}
}
