// Package session implements the room join/create/exit/terminate state
// machine. It owns the channel to the server and gates the playback engine:
// the reconciler and observer only operate while a room is joined.
package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"together-sync/internal/config"
	"together-sync/internal/playback"
	"together-sync/internal/player"
	"together-sync/internal/protocol"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseCreating Phase = "creating"
	PhaseJoining  Phase = "joining"
	PhaseJoined   Phase = "joined"
)

type RoomSession struct {
	RoomCode string
	IsHost   bool
	Joined   bool
}

// HistoryEntry is one chat or system line in the room log.
type HistoryEntry struct {
	ID       string
	Username string
	Text     string
	System   bool
}

// Channel is the outbound half of an open server connection.
type Channel interface {
	Send(m protocol.ClientMessage) error
	Close() error
}

// Dialer opens the bidirectional channel. Inbound messages and the eventual
// disconnect are delivered through the callbacks.
type Dialer interface {
	Dial(ctx context.Context, onMessage func(protocol.ServerMessage), onDisconnect func(error)) (Channel, error)
}

// RoomAPI is the HTTP surface consulted before any channel is opened.
type RoomAPI interface {
	CreateRoom(ctx context.Context, videoID string) (string, error)
	RoomExists(ctx context.Context, code string) error
}

type Controller struct {
	cfg    config.SyncConfig
	clock  clockwork.Clock
	api    RoomAPI
	dialer Dialer
	target player.Adapter

	shared     *playback.SharedState
	reconciler *playback.Reconciler
	observer   *playback.Observer

	mu        sync.Mutex
	username  string
	video     protocol.VideoRef
	phase     Phase
	sess      RoomSession
	clientID  string
	status    string
	history   []HistoryEntry
	channel   Channel
	stop      context.CancelFunc
	sessCtx   context.Context
	log       zerolog.Logger
}

func NewController(cfg config.SyncConfig, clock clockwork.Clock, api RoomAPI, dialer Dialer, target player.Adapter) *Controller {
	c := &Controller{
		cfg:    cfg,
		clock:  clock,
		api:    api,
		dialer: dialer,
		target: target,
		phase:  PhaseIdle,
		status: "Search and select a video",
		log:    log.With().Str("component", "session").Logger(),
	}
	c.shared = playback.NewSharedState(clock)
	c.reconciler = playback.NewReconciler(cfg, clock, c.shared, target)
	c.observer = playback.NewObserver(cfg, clock, c.shared, target, c)
	return c
}

func (c *Controller) SetDisplayName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.username = strings.TrimSpace(name)
}

// SelectVideo loads the video locally and, when joined, broadcasts the
// selection to the room.
func (c *Controller) SelectVideo(v protocol.VideoRef) {
	if v.VideoID == "" {
		return
	}
	c.mu.Lock()
	c.video = v
	joined := c.sess.Joined
	ch := c.channel
	c.mu.Unlock()

	if c.target != nil {
		c.shared.Suppress(c.cfg.VideoChangeSettle)
		c.target.Load(v.VideoID, 0)
		c.bookkeepAfterLoad()
	}
	if joined && ch != nil {
		c.send(ch, protocol.SetVideo{VideoID: v.VideoID})
		c.setStatus("Video synced to room")
	}
}

// CreateRoom validates inputs, creates a room over HTTP and opens the channel
// with a join request. The session becomes Joined only when the server's
// room-state arrives.
func (c *Controller) CreateRoom(ctx context.Context) error {
	c.mu.Lock()
	name := c.username
	videoID := c.video.VideoID
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	if name == "" {
		c.status = "Enter username"
		c.mu.Unlock()
		return ErrNoDisplayName
	}
	if videoID == "" {
		c.status = "Select a video first"
		c.mu.Unlock()
		return ErrNoVideoSelected
	}
	c.phase = PhaseCreating
	c.status = "Creating room..."
	c.mu.Unlock()

	code, err := c.api.CreateRoom(ctx, videoID)
	if err != nil {
		c.abortPending("Failed to create room")
		return fmt.Errorf("create room: %w", err)
	}
	return c.openChannel(ctx, code, name)
}

// JoinRoom validates the code (upper-cased, 6 alphanumerics), confirms the
// room exists and opens the channel with a join request.
func (c *Controller) JoinRoom(ctx context.Context, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))

	c.mu.Lock()
	name := c.username
	if c.phase != PhaseIdle {
		c.mu.Unlock()
		return ErrNotIdle
	}
	if name == "" {
		c.status = "Enter username"
		c.mu.Unlock()
		return ErrNoDisplayName
	}
	if !roomCodePattern.MatchString(code) {
		c.status = "Room code must be 6 letters/numbers"
		c.mu.Unlock()
		return ErrBadRoomCode
	}
	c.phase = PhaseJoining
	c.status = "Joining room..."
	c.mu.Unlock()

	if err := c.api.RoomExists(ctx, code); err != nil {
		c.abortPending("Room not found")
		return fmt.Errorf("room lookup: %w", ErrRoomUnavailable)
	}
	return c.openChannel(ctx, code, name)
}

func (c *Controller) openChannel(ctx context.Context, code, name string) error {
	sessCtx, cancel := context.WithCancel(context.Background())
	ch, err := c.dialer.Dial(ctx, c.Handle, c.handleDisconnect)
	if err != nil {
		cancel()
		c.abortPending("Connection failed")
		return fmt.Errorf("dial channel: %w", err)
	}

	c.mu.Lock()
	c.channel = ch
	c.stop = cancel
	c.sessCtx = sessCtx
	c.sess.RoomCode = code
	c.mu.Unlock()

	c.send(ch, protocol.JoinRoom{RoomCode: code, Username: name})
	return nil
}

// Handle dispatches one inbound server message. It is the single entry point
// for the channel's read loop.
func (c *Controller) Handle(msg protocol.ServerMessage) {
	switch m := msg.(type) {
	case protocol.RoomState:
		c.handleRoomState(m)
	case protocol.PlaySync:
		c.applyForced(playback.Snapshot{Playing: m.Playing, CurrentTime: m.CurrentTime, ServerNow: m.ServerNow})
	case protocol.PauseSync:
		c.applyForced(playback.Snapshot{Playing: m.Playing, CurrentTime: m.CurrentTime, ServerNow: m.ServerNow})
	case protocol.SeekSync:
		c.applyForced(playback.Snapshot{Playing: m.Playing, CurrentTime: m.CurrentTime, ServerNow: m.ServerNow})
	case protocol.StateSync:
		if c.joined() {
			c.reconciler.ApplySnapshot(playback.Snapshot{Playing: m.Playing, CurrentTime: m.CurrentTime, ServerNow: m.ServerNow}, false, 0)
		}
	case protocol.VideoChanged:
		c.handleVideoChanged(m)
	case protocol.OwnerChanged:
		c.handleOwnerChanged(m)
	case protocol.RoomExited:
		c.reset("Left room")
	case protocol.RoomTerminated:
		c.reset("Room terminated by host")
	case protocol.JoinError:
		c.surfaceError(m.Message, "Join failed")
	case protocol.ActionError:
		c.surfaceError(m.Message, "Action failed")
	case protocol.ChatMessage:
		c.appendHistory(HistoryEntry{ID: m.ID, Username: m.Username, Text: m.Text})
	case protocol.SystemMessage:
		c.appendHistory(HistoryEntry{ID: m.ID, Text: m.Text, System: true})
	}
}

func (c *Controller) handleRoomState(m protocol.RoomState) {
	c.mu.Lock()
	c.sess = RoomSession{RoomCode: m.RoomCode, IsHost: m.IsHost, Joined: true}
	c.clientID = m.ClientID
	c.phase = PhaseJoined
	c.status = "Joined room"
	c.history = c.history[:0]
	for _, chat := range m.Chat {
		c.history = append(c.history, HistoryEntry{ID: chat.ID, Username: chat.Username, Text: chat.Text})
	}
	if m.VideoID != "" && m.VideoID != c.video.VideoID {
		c.video = protocol.VideoRef{VideoID: m.VideoID}
	}
	sessCtx := c.sessCtx
	c.mu.Unlock()

	snap := playback.Snapshot{Playing: m.Playing, CurrentTime: m.CurrentTime, ServerNow: m.ServerNow}

	// Suppress before the video even starts loading: everything the player
	// does from here until the join settle window closes is on our command.
	c.shared.Suppress(c.cfg.JoinSettle)
	if c.target != nil && m.VideoID != "" {
		c.target.Load(m.VideoID, 0)
	}
	c.applyAfterLoad(sessCtx, snap)

	if sessCtx != nil {
		go c.observer.Run(sessCtx)
	}
	c.log.Info().Str("room", m.RoomCode).Bool("host", m.IsHost).Msg("joined room")
}

// applyAfterLoad runs the forced join reconciliation once the player has had
// LoadDelay to pick up the video. The wait is tied to the session context so
// leaving the room cancels it.
func (c *Controller) applyAfterLoad(sessCtx context.Context, snap playback.Snapshot) {
	if c.cfg.LoadDelay <= 0 || sessCtx == nil {
		c.reconciler.ApplySnapshot(snap, true, c.cfg.JoinSettle)
		return
	}
	go func() {
		select {
		case <-c.clock.After(c.cfg.LoadDelay):
			c.reconciler.ApplySnapshot(snap, true, c.cfg.JoinSettle)
		case <-sessCtx.Done():
		}
	}()
}

func (c *Controller) handleVideoChanged(m protocol.VideoChanged) {
	if m.VideoID == "" {
		return
	}
	c.mu.Lock()
	c.video = protocol.VideoRef{VideoID: m.VideoID}
	c.mu.Unlock()

	if c.target != nil {
		c.shared.Suppress(c.cfg.VideoChangeSettle)
		c.target.Load(m.VideoID, 0)
		c.bookkeepAfterLoad()
	}
	by := m.By
	if by == "" {
		by = "someone"
	}
	c.appendHistory(HistoryEntry{Text: fmt.Sprintf("Video changed by %s", by), System: true})
}

func (c *Controller) handleOwnerChanged(m protocol.OwnerChanged) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sess.Joined {
		return
	}
	wasHost := c.sess.IsHost
	c.sess.IsHost = m.OwnerID != "" && m.OwnerID == c.clientID
	if c.sess.IsHost && !wasHost {
		c.status = "You are now the host"
	}
}

// Exit leaves the room. The server confirms with room-exited, but the local
// reset does not wait for it: a dead channel must not trap the user.
func (c *Controller) Exit() error {
	c.mu.Lock()
	ch := c.channel
	joined := c.sess.Joined
	c.mu.Unlock()
	if !joined || ch == nil {
		return ErrNotJoined
	}
	c.send(ch, protocol.ExitRoom{})
	c.reset("Left room")
	return nil
}

// Terminate closes the room for everyone. Client-side host gating is a UX
// convenience; the server enforces it regardless.
func (c *Controller) Terminate() error {
	c.mu.Lock()
	ch := c.channel
	joined := c.sess.Joined
	isHost := c.sess.IsHost
	c.mu.Unlock()
	if !joined || ch == nil {
		return ErrNotJoined
	}
	if !isHost {
		c.setStatus("Only the host can end the room")
		return ErrNotHost
	}
	c.send(ch, protocol.TerminateRoom{})
	return nil
}

func (c *Controller) SendChat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	c.mu.Lock()
	ch := c.channel
	joined := c.sess.Joined
	c.mu.Unlock()
	if !joined || ch == nil {
		return ErrNotJoined
	}
	c.send(ch, protocol.ChatSend{Text: text})
	return nil
}

// EmitPlay, EmitPause and EmitSeek satisfy playback.Emitter: observer
// verdicts become outbound channel events while a room is joined.
func (c *Controller) EmitPlay(currentTime float64) {
	if ch := c.joinedChannel(); ch != nil {
		c.send(ch, protocol.PlayEvent{CurrentTime: currentTime})
	}
}

func (c *Controller) EmitPause(currentTime float64) {
	if ch := c.joinedChannel(); ch != nil {
		c.send(ch, protocol.PauseEvent{CurrentTime: currentTime})
	}
}

func (c *Controller) EmitSeek(currentTime float64) {
	if ch := c.joinedChannel(); ch != nil {
		c.send(ch, protocol.SeekEvent{CurrentTime: currentTime})
	}
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) Session() RoomSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Controller) CurrentVideo() protocol.VideoRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.video
}

func (c *Controller) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Controller) handleDisconnect(err error) {
	if err != nil {
		c.log.Warn().Err(err).Msg("channel disconnected")
	}
	c.reset("Disconnected")
}

func (c *Controller) joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Joined
}

func (c *Controller) joinedChannel() Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sess.Joined {
		return nil
	}
	return c.channel
}

func (c *Controller) applyForced(snap playback.Snapshot) {
	if !c.joined() {
		return
	}
	c.reconciler.ApplySnapshot(snap, true, c.cfg.AuthoritativeSettle)
}

// bookkeepAfterLoad seeds the shared state with the post-load player reality
// so the observer doesn't read the load as a user seek.
func (c *Controller) bookkeepAfterLoad() {
	c.shared.SetSample(playback.Sample{Time: 0, CapturedAt: c.clock.Now(), State: player.StatePaused})
	c.shared.SetReportedState(player.StatePaused)
}

func (c *Controller) appendHistory(entry HistoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, entry)
}

func (c *Controller) setStatus(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// surfaceError shows the server's message. A joined session keeps its state;
// an error during a pending create/join tears the half-open connection down
// so a retry dials fresh instead of stacking a second one on the leak.
func (c *Controller) surfaceError(msg, fallback string) {
	if msg == "" {
		msg = fallback
	}
	if c.joined() {
		c.setStatus(msg)
		return
	}
	c.abortPending(msg)
}

// abortPending rolls a failed create/join back to idle and closes any
// half-open channel.
func (c *Controller) abortPending(status string) {
	c.mu.Lock()
	c.phase = PhaseIdle
	c.status = status
	c.sess = RoomSession{}
	ch := c.channel
	c.channel = nil
	stop := c.stop
	c.stop = nil
	c.sessCtx = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if ch != nil {
		_ = ch.Close()
	}
}

// reset tears the session down to idle: observer stopped, channel closed,
// session and history cleared, engine state wiped.
func (c *Controller) reset(status string) {
	c.mu.Lock()
	alreadyIdle := c.phase == PhaseIdle && c.channel == nil
	c.phase = PhaseIdle
	c.status = status
	c.sess = RoomSession{}
	c.clientID = ""
	c.history = nil
	ch := c.channel
	c.channel = nil
	stop := c.stop
	c.stop = nil
	c.sessCtx = nil
	c.mu.Unlock()

	if alreadyIdle {
		return
	}
	if stop != nil {
		stop()
	}
	if ch != nil {
		_ = ch.Close()
	}
	c.shared.Reset()
	c.log.Info().Str("status", status).Msg("session reset")
}

func (c *Controller) send(ch Channel, m protocol.ClientMessage) {
	if err := ch.Send(m); err != nil {
		c.log.Warn().Err(err).Str("kind", m.ClientKind()).Msg("channel send failed")
	}
}
