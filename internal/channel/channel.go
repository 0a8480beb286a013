// Package channel is the websocket client side of the room protocol. A Dialer
// opens one connection per room session; inbound frames are decoded and handed
// to the session's callback, and the first read failure reports a disconnect.
package channel

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"together-sync/internal/protocol"
	"together-sync/internal/session"
)

// Dialer connects to a room server websocket endpoint.
type Dialer struct {
	// URL is the ws:// or wss:// endpoint, e.g. ws://localhost:4000/ws.
	URL string
	// Header carries optional extra handshake headers.
	Header http.Header
}

func NewDialer(url string) *Dialer {
	return &Dialer{URL: url}
}

// Dial opens the connection and starts the read loop. onMessage receives every
// decoded server message in read order; onDisconnect fires once, after the
// read loop ends for any reason other than a local Close.
func (d *Dialer) Dial(ctx context.Context, onMessage func(protocol.ServerMessage), onDisconnect func(error)) (session.Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, d.Header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", d.URL, err)
	}
	c := &Conn{
		conn: conn,
		log:  log.With().Str("component", "channel").Logger(),
	}
	go c.readLoop(onMessage, onDisconnect)
	return c, nil
}

// Conn is one open websocket connection. Writes are serialized with a mutex;
// reads happen on the single readLoop goroutine as gorilla requires.
type Conn struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool

	log zerolog.Logger
}

func (c *Conn) Send(m protocol.ClientMessage) error {
	raw, err := protocol.EncodeClient(m)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("send %s: %w", m.ClientKind(), err)
	}
	return nil
}

// Close tears the connection down locally. The read loop unblocks with an
// error, but onDisconnect is not invoked for a local close.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *Conn) localClose() bool {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closed
}

func (c *Conn) readLoop(onMessage func(protocol.ServerMessage), onDisconnect func(error)) {
	defer func() { _ = c.conn.Close() }()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if !c.localClose() && onDisconnect != nil {
				onDisconnect(err)
			}
			return
		}
		msg, err := protocol.DecodeServer(raw)
		if err != nil {
			c.log.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}
		if onMessage != nil {
			onMessage(msg)
		}
	}
}
