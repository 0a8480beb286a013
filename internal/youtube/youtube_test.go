package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleResponse = `{
  "items": [
    {
      "id": {"videoId": "abc123"},
      "snippet": {
        "title": "First Video",
        "channelId": "ch1",
        "channelTitle": "Channel One",
        "thumbnails": {"medium": {"url": "https://i.ytimg.com/abc123.jpg"}}
      }
    },
    {
      "id": {},
      "snippet": {"title": "A channel result, no videoId"}
    },
    {
      "id": {"videoId": "def456"},
      "snippet": {"title": "Second Video"}
    }
  ]
}`

func TestSearchParsesAndFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "lofi" || q.Get("key") != "test-key" || q.Get("type") != "video" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	refs, err := NewClient("test-key").WithBaseURL(srv.URL).Search(context.Background(), "lofi", 12)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("len = %d, want 2 (entry without videoId dropped)", len(refs))
	}
	first := refs[0]
	if first.VideoID != "abc123" || first.Title != "First Video" || first.Thumbnail != "https://i.ytimg.com/abc123.jpg" {
		t.Fatalf("first = %+v", first)
	}
}

func TestSearchSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("test-key").WithBaseURL(srv.URL).Search(context.Background(), "lofi", 12)
	if err == nil {
		t.Fatal("expected quota error")
	}
}

func TestSearchWithoutKeyFailsFast(t *testing.T) {
	_, err := NewClient("").Search(context.Background(), "lofi", 12)
	if !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}
