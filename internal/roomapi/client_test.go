package roomapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateRoom(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/rooms/create" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"roomCode": "XK93F2"})
	}))
	defer srv.Close()

	code, err := NewClient(srv.URL).CreateRoom(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if code != "XK93F2" {
		t.Fatalf("code = %q, want XK93F2", code)
	}
	if gotBody["videoId"] != "vid-1" {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestCreateRoomSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "videoId required"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateRoom(context.Background(), "")
	if err == nil {
		t.Fatal("expected error from 400 response")
	}
}

func TestRoomExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/rooms/AB12C3" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	if err := client.RoomExists(context.Background(), "AB12C3"); err != nil {
		t.Fatalf("RoomExists(AB12C3): %v", err)
	}
	if err := client.RoomExists(context.Background(), "ZZZZZZ"); err == nil {
		t.Fatal("RoomExists(ZZZZZZ) should fail")
	}
}

func TestSearchDecodesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "lofi beats" {
			t.Errorf("q = %q, want lofi beats", got)
		}
		_, _ = w.Write([]byte(`[{"videoId":"v1","title":"Lofi"},{"videoId":"v2","title":"Beats"}]`))
	}))
	defer srv.Close()

	results, err := NewClient(srv.URL).Search(context.Background(), "lofi beats")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 || results[0].VideoID != "v1" || results[1].Title != "Beats" {
		t.Fatalf("results = %+v", results)
	}
}

func TestRelatedPassesVideoID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("videoId"); got != "v1" {
			t.Errorf("videoId = %q, want v1", got)
		}
		_, _ = w.Write([]byte(`[{"videoId":"v3"}]`))
	}))
	defer srv.Close()

	results, err := NewClient(srv.URL).Related(context.Background(), "v1")
	if err != nil {
		t.Fatalf("Related: %v", err)
	}
	if len(results) != 1 || results[0].VideoID != "v3" {
		t.Fatalf("results = %+v", results)
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:4000", "ws://localhost:4000/ws"},
		{"https://sync.example.com", "wss://sync.example.com/ws"},
		{"http://localhost:4000/", "ws://localhost:4000/ws"},
	}
	for _, tt := range tests {
		if got := NewClient(tt.base).SocketURL(); got != tt.want {
			t.Fatalf("SocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
