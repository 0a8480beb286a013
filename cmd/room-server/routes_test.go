package main

import (
	"net/http"
	"sort"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"together-sync/internal/config"
	"together-sync/internal/server"
	"together-sync/internal/youtube"
)

func TestRegisteredRoutes(t *testing.T) {
	cfg, err := config.LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	hub := server.NewHub(cfg, nil, clockwork.NewFakeClock())
	handlers := server.NewHandlers(hub, nil, youtube.NewClient(""))
	r := server.NewRouter(hub, handlers, apiLogMiddleware())

	got := []string{}
	err = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+route)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	sort.Strings(got)

	want := []string{
		"GET /api/rooms/{code}",
		"GET /api/rooms/{code}/history",
		"GET /api/youtube/related",
		"GET /api/youtube/search",
		"GET /healthz",
		"GET /ws",
		"POST /api/rooms/create",
	}
	if len(got) != len(want) {
		t.Fatalf("routes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("route[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
