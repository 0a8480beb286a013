package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"together-sync/internal/protocol"
	"together-sync/internal/store"
)

type stubSearcher struct {
	results []protocol.VideoRef
	err     error
}

func (s *stubSearcher) Search(_ context.Context, _ string, _ int) ([]protocol.VideoRef, error) {
	return s.results, s.err
}

func (s *stubSearcher) Related(_ context.Context, _ string, _ int) ([]protocol.VideoRef, error) {
	return s.results, s.err
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(testServerConfig(t), nil, clockwork.NewRealClock())
	searcher := &stubSearcher{results: []protocol.VideoRef{{VideoID: "v1", Title: "First"}}}
	router := NewRouter(hub, NewHandlers(hub, nil, searcher), nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, hub
}

func createRoomHTTP(t *testing.T, srv *httptest.Server, videoID string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"videoId": videoID})
	res, err := http.Post(srv.URL+"/api/rooms/create", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create room status = %d", res.StatusCode)
	}
	var out struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return out.RoomCode
}

func dialAndJoin(t *testing.T, srv *httptest.Server, code, username string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	sendWS(t, conn, protocol.JoinRoom{RoomCode: code, Username: username})
	return conn
}

func sendWS(t *testing.T, conn *websocket.Conn, msg protocol.ClientMessage) {
	t.Helper()
	raw, err := protocol.EncodeClient(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readWS(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := protocol.DecodeServer(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

// readWSUntil skips interleaved messages (join notices etc.) until one decodes
// to the wanted kind.
func readWSUntil(t *testing.T, conn *websocket.Conn, kind string) protocol.ServerMessage {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := readWS(t, conn)
		if msg.ServerKind() == kind {
			return msg
		}
	}
	t.Fatalf("no %s message within 10 reads", kind)
	return nil
}

func TestEndToEndPlaySync(t *testing.T) {
	srv, _ := newTestServer(t)
	code := createRoomHTTP(t, srv, "vid-1")

	alice := dialAndJoin(t, srv, code, "alice")
	state, ok := readWS(t, alice).(protocol.RoomState)
	if !ok || !state.IsHost || state.VideoID != "vid-1" {
		t.Fatalf("alice state = %+v", state)
	}

	bob := dialAndJoin(t, srv, code, "bob")
	if state, ok := readWS(t, bob).(protocol.RoomState); !ok || state.IsHost {
		t.Fatalf("bob state = %+v", state)
	}

	sendWS(t, alice, protocol.PlayEvent{CurrentTime: 12.5})

	msg := readWSUntil(t, bob, protocol.KindSyncPlay)
	sync := msg.(protocol.PlaySync)
	if !sync.Playing || sync.CurrentTime != 12.5 || sync.ServerNow == 0 {
		t.Fatalf("sync = %+v", sync)
	}
}

func TestEndToEndChat(t *testing.T) {
	srv, _ := newTestServer(t)
	code := createRoomHTTP(t, srv, "vid-1")

	alice := dialAndJoin(t, srv, code, "alice")
	readWS(t, alice)
	bob := dialAndJoin(t, srv, code, "bob")
	readWS(t, bob)

	sendWS(t, bob, protocol.ChatSend{Text: "hello"})

	msg := readWSUntil(t, alice, protocol.KindChatMessage)
	chat := msg.(protocol.ChatMessage)
	if chat.Username != "bob" || chat.Text != "hello" || chat.ID == "" {
		t.Fatalf("chat = %+v", chat)
	}
}

func TestEndToEndTerminate(t *testing.T) {
	srv, hub := newTestServer(t)
	code := createRoomHTTP(t, srv, "vid-1")

	alice := dialAndJoin(t, srv, code, "alice")
	readWS(t, alice)
	bob := dialAndJoin(t, srv, code, "bob")
	readWS(t, bob)

	sendWS(t, alice, protocol.TerminateRoom{})

	msg := readWSUntil(t, bob, protocol.KindRoomTerminated)
	if term := msg.(protocol.RoomTerminated); term.By != "alice" {
		t.Fatalf("terminated = %+v", term)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Exists(code) {
		if time.Now().After(deadline) {
			t.Fatal("room still registered after terminate")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRoomExistsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	code := createRoomHTTP(t, srv, "vid-1")

	res, err := http.Get(srv.URL + "/api/rooms/" + code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}

	res, err = http.Get(srv.URL + "/api/rooms/ZZZZZZ")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestRoomHistoryEndpoint(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	hub := NewHub(testServerConfig(t), st, clockwork.NewRealClock())
	router := NewRouter(hub, NewHandlers(hub, st, &stubSearcher{}), nil)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	if _, err := st.RecordRoomCreated(ctx, "AB12C3", "vid-1"); err != nil {
		t.Fatalf("RecordRoomCreated: %v", err)
	}
	if _, err := st.RecordChat(ctx, "AB12C3", "alice", "hello"); err != nil {
		t.Fatalf("RecordChat: %v", err)
	}

	res, err := http.Get(srv.URL + "/api/rooms/AB12C3/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
	var msgs []struct {
		Username string `json:"username"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(res.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Username != "alice" || msgs[0].Text != "hello" {
		t.Fatalf("msgs = %+v", msgs)
	}

	res, err = http.Get(srv.URL + "/api/rooms/ZZZZZZ/history")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown room status = %d, want 404", res.StatusCode)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := http.Get(srv.URL + "/api/youtube/search?q=test")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer res.Body.Close()
	var refs []protocol.VideoRef
	if err := json.NewDecoder(res.Body).Decode(&refs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(refs) != 1 || refs[0].VideoID != "v1" {
		t.Fatalf("refs = %+v", refs)
	}

	res, err = http.Get(srv.URL + "/api/youtube/search")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing q status = %d, want 400", res.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", res.StatusCode)
	}
}
