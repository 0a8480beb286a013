package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"together-sync/internal/protocol"
	"together-sync/internal/store"
)

type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	username string
	room     *Room
}

func (c *client) sendMessage(msg protocol.ServerMessage) {
	raw, err := protocol.EncodeServer(msg)
	if err != nil {
		log.Error().Err(err).Str("kind", msg.ServerKind()).Msg("encode failed")
		return
	}
	safeSend(c.send, raw)
}

// close stops the writer. The write loop closes the conn once the queue is
// drained, so anything queued before close (a terminate notice) still
// reaches the peer.
func (c *client) close() {
	safeClose(c.send)
}

func safeClose(ch chan []byte) {
	defer func() { _ = recover() }()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() { _ = recover() }()
	select {
	case ch <- msg:
	default:
		// Slow consumer; drop rather than stall the room.
	}
}

// WSHandler upgrades the connection and runs the client loops. The first
// message must be join-room; everything else before it is rejected.
func (h *Hub) WSHandler() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if h.cfg.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == h.cfg.AllowedOrigin
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := &client{id: store.NewID(), conn: conn, send: make(chan []byte, 16)}
		go h.writeLoop(c)
		h.readLoop(c)
	}
}

func (h *Hub) writeLoop(c *client) {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) readLoop(c *client) {
	defer func() {
		h.disconnect(c)
		c.close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClient(raw)
		if err != nil {
			log.Warn().Err(err).Str("client_id", c.id).Msg("dropping undecodable frame")
			continue
		}
		h.dispatch(c, msg)
	}
}
