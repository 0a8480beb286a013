package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter wires the REST and websocket surfaces. apiLog is the request
// logging middleware; pass nil to disable (tests).
func NewRouter(hub *Hub, handlers *Handlers, apiLog func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	withLog := func(r chi.Router) chi.Router {
		if apiLog != nil {
			return r.With(apiLog)
		}
		return r
	}

	withLog(r).Get("/healthz", handlers.Health())
	r.Get("/ws", hub.WSHandler())

	r.Route("/api", func(r chi.Router) {
		if apiLog != nil {
			r.Use(apiLog)
		}
		r.Post("/rooms/create", handlers.CreateRoom())
		r.Get("/rooms/{code}", handlers.RoomExists())
		r.Get("/rooms/{code}/history", handlers.RoomHistory())
		r.Get("/youtube/search", handlers.Search())
		r.Get("/youtube/related", handlers.Related())
	})

	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 16)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
