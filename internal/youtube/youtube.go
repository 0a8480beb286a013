// Package youtube is a thin client for the YouTube Data API v3 search
// endpoint. The room server proxies through it so browser clients never see
// the API key.
package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"together-sync/internal/protocol"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

var ErrNoAPIKey = errors.New("youtube api key not configured")

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search runs a video search and returns up to maxResults refs.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]protocol.VideoRef, error) {
	params := url.Values{}
	params.Set("q", query)
	return c.search(ctx, params, maxResults)
}

// Related searches for videos similar to the given one. The Data API retired
// relatedToVideoId, so this reuses plain search keyed on the video id.
func (c *Client) Related(ctx context.Context, videoID string, maxResults int) ([]protocol.VideoRef, error) {
	params := url.Values{}
	params.Set("q", videoID)
	return c.search(ctx, params, maxResults)
}

func (c *Client) search(ctx context.Context, params url.Values, maxResults int) ([]protocol.VideoRef, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	if maxResults <= 0 {
		maxResults = 12
	}
	params.Set("part", "snippet")
	params.Set("type", "video")
	params.Set("maxResults", fmt.Sprintf("%d", maxResults))
	params.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("youtube search: decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("youtube search: api error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube search: unexpected status %s", res.Status)
	}

	refs := make([]protocol.VideoRef, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.ID.VideoID == "" {
			continue
		}
		refs = append(refs, protocol.VideoRef{
			VideoID:      item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			Thumbnail:    item.Snippet.Thumbnails.Medium.URL,
		})
	}
	return refs, nil
}
