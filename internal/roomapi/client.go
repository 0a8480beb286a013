// Package roomapi is the HTTP client for the room server's REST surface:
// room creation and existence checks before a websocket channel is opened,
// and the YouTube search proxy.
package roomapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"together-sync/internal/protocol"
)

// Client talks to one room server. BaseURL has no trailing slash,
// e.g. http://localhost:4000.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createRoomRequest struct {
	VideoID string `json:"videoId"`
}

type createRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CreateRoom provisions a room seeded with videoID and returns its join code.
func (c *Client) CreateRoom(ctx context.Context, videoID string) (string, error) {
	body, err := json.Marshal(createRoomRequest{VideoID: videoID})
	if err != nil {
		return "", fmt.Errorf("encode create request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/rooms/create", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var out createRoomResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("create room: %w", err)
	}
	if out.RoomCode == "" {
		return "", fmt.Errorf("create room: empty room code in response")
	}
	return out.RoomCode, nil
}

// RoomExists returns nil when the code names a live room.
func (c *Client) RoomExists(ctx context.Context, code string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/rooms/"+url.PathEscape(code), nil)
	if err != nil {
		return err
	}
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("room lookup: %w", err)
	}
	return nil
}

// Search proxies a YouTube search through the room server.
func (c *Client) Search(ctx context.Context, query string) ([]protocol.VideoRef, error) {
	u := c.baseURL + "/api/youtube/search?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []protocol.VideoRef
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return out, nil
}

// Related fetches videos related to videoID, used to seed the picker after a
// video is already playing.
func (c *Client) Related(ctx context.Context, videoID string) ([]protocol.VideoRef, error) {
	u := c.baseURL + "/api/youtube/related?videoId=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	var out []protocol.VideoRef
	if err := c.do(req, &out); err != nil {
		return nil, fmt.Errorf("related: %w", err)
	}
	return out, nil
}

// SocketURL derives the websocket endpoint from the HTTP base URL.
func (c *Client) SocketURL() string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + "/ws"
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + "/ws"
	default:
		return c.baseURL + "/ws"
	}
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var apiErr errorResponse
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", res.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", res.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
