package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"together-sync/internal/protocol"
	"together-sync/internal/store"
)

// VideoSearcher is the YouTube proxy dependency of the REST handlers.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]protocol.VideoRef, error)
	Related(ctx context.Context, videoID string, maxResults int) ([]protocol.VideoRef, error)
}

// Handlers bundles the REST surface around the hub.
type Handlers struct {
	hub     *Hub
	store   *store.Store
	youtube VideoSearcher
}

func NewHandlers(hub *Hub, st *store.Store, yt VideoSearcher) *Handlers {
	return &Handlers{hub: hub, store: st, youtube: yt}
}

func (h *Handlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *Handlers) CreateRoom() http.HandlerFunc {
	type request struct {
		VideoID string `json:"videoId"`
	}
	type response struct {
		RoomCode string `json:"roomCode"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		if req.VideoID == "" {
			writeHTTPError(w, http.StatusBadRequest, "videoId required")
			return
		}
		code, err := h.hub.CreateRoom(r.Context(), req.VideoID)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "create failed")
			return
		}
		writeJSON(w, http.StatusOK, response{RoomCode: code})
	}
}

func (h *Handlers) RoomExists() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if !h.hub.Exists(code) {
			writeHTTPError(w, http.StatusNotFound, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"roomCode": code})
	}
}

// RoomHistory serves persisted chat for a room, live or not. Codes the store
// has never seen get a 404 rather than an empty list.
func (h *Handlers) RoomHistory() http.HandlerFunc {
	type message struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Text     string `json:"text"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			writeHTTPError(w, http.StatusNotFound, "history disabled")
			return
		}
		code := chi.URLParam(r, "code")
		if _, err := h.store.LatestRoom(r.Context(), code); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeHTTPError(w, http.StatusNotFound, "room not found")
				return
			}
			writeHTTPError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}
		records, err := h.store.RecentChat(r.Context(), code, chatHistoryCap)
		if err != nil {
			writeHTTPError(w, http.StatusInternalServerError, "history lookup failed")
			return
		}
		out := make([]message, 0, len(records))
		for _, rec := range records {
			out = append(out, message{ID: rec.ID, Username: rec.Username, Text: rec.Body})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *Handlers) Search() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			writeHTTPError(w, http.StatusBadRequest, "q required")
			return
		}
		refs, err := h.youtube.Search(r.Context(), query, 12)
		if err != nil {
			writeHTTPError(w, http.StatusBadGateway, "search failed")
			return
		}
		writeJSON(w, http.StatusOK, refs)
	}
}

func (h *Handlers) Related() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("videoId")
		if videoID == "" {
			writeHTTPError(w, http.StatusBadRequest, "videoId required")
			return
		}
		refs, err := h.youtube.Related(r.Context(), videoID, 12)
		if err != nil {
			writeHTTPError(w, http.StatusBadGateway, "related lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, refs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeHTTPError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": code})
}
