package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchSendsQueryAndSize(t *testing.T) {
	var got SearchRequest
	var requestID, accept string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		requestID = r.Header.Get(RequestIDHeader)
		accept = r.Header.Get("Accept")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": []map[string]any{
				{"title": "MacBook Air", "abstract": "thin", "keywords": []string{"apple", "laptop"}, "content": "/docs/air", "score": 1.5},
				{"title": "MacBook Pro", "abstract": "fast", "content": "/docs/pro"},
			},
		})
	})

	results, err := c.Search(context.Background(), "macbook", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if got.Query != "macbook" || got.Size != 10 {
		t.Errorf("request body = %+v", got)
	}
	if requestID == "" {
		t.Errorf("expected %s header", RequestIDHeader)
	}
	if accept != "application/json" {
		t.Errorf("accept header = %q", accept)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "MacBook Air" || len(results[0].Keywords) != 2 || results[0].Content != "/docs/air" {
		t.Errorf("unexpected first result %+v", results[0])
	}
	if results[0].Score == nil || *results[0].Score != 1.5 {
		t.Errorf("expected score to be decoded")
	}
	if results[1].Keywords != nil || results[1].Score != nil {
		t.Errorf("optional fields should stay empty: %+v", results[1])
	}
}

func TestSearchErrorDetail(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{name: "detail field", status: 400, body: `{"detail":"bad request"}`, wantDetail: "bad request"},
		{name: "no detail", status: 500, body: `{}`, wantDetail: ""},
		{name: "non json body", status: 502, body: `<html>bad gateway</html>`, wantDetail: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Search(context.Background(), "x", 10)
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", apiErr.Detail, tt.wantDetail)
			}
		})
	}
}

func TestSearchMissingResultsField(t *testing.T) {
	for _, body := range []string{`{}`, `{"results": null}`, `{"items": []}`} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})

		_, err := c.Search(context.Background(), "x", 10)
		if !errors.Is(err, ErrMissingResults) {
			t.Errorf("body %s: expected ErrMissingResults, got %v", body, err)
		}
	}
}

func TestSearchEmptyResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
	})

	results, err := c.Search(context.Background(), "nothing", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil results, got %#v", results)
	}
}

func TestSearchGzipResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(`{"results":[{"title":"zipped","abstract":"","content":"/z"}]}`))
		_ = zw.Close()

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	})

	results, err := c.Search(context.Background(), "zip", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "zipped" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestSuggestions(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/suggestions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query")
		writeJSON(w, http.StatusOK, map[string]any{
			"suggestions": []map[string]any{
				{"text": "mac mini", "count": 12, "trending": true},
				{"text": "macbook", "count": 40, "trending": false},
			},
		})
	})

	suggestions, err := c.Suggestions(context.Background(), "mac & cheese")
	if err != nil {
		t.Fatalf("Suggestions: %v", err)
	}
	if gotQuery != "mac & cheese" {
		t.Errorf("query param = %q, expected it to be escaped and round trip", gotQuery)
	}
	want := []Suggestion{{Text: "mac mini", Count: 12, Trending: true}, {Text: "macbook", Count: 40}}
	if len(suggestions) != len(want) {
		t.Fatalf("got %d suggestions", len(suggestions))
	}
	for i := range want {
		if suggestions[i] != want[i] {
			t.Errorf("suggestion %d = %+v, want %+v", i, suggestions[i], want[i])
		}
	}
}

func TestSuggestionsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "index down"})
	})

	_, err := c.Suggestions(context.Background(), "mac")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Detail != "index down" {
		t.Fatalf("expected api error with detail, got %v", err)
	}
}

func TestReconfigureSwitchesBackend(t *testing.T) {
	hit := make(chan string, 2)
	handler := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			hit <- name
			writeJSON(w, http.StatusOK, map[string]any{"suggestions": []any{}})
		}
	}
	first := httptest.NewServer(handler("first"))
	defer first.Close()
	second := httptest.NewServer(handler("second"))
	defer second.Close()

	c := NewClient(Options{BaseURL: first.URL})
	if _, err := c.Suggestions(context.Background(), "ab"); err != nil {
		t.Fatal(err)
	}
	c.Reconfigure(Options{BaseURL: second.URL})
	if c.BaseURL() != second.URL {
		t.Fatalf("base url = %q", c.BaseURL())
	}
	if _, err := c.Suggestions(context.Background(), "ab"); err != nil {
		t.Fatal(err)
	}

	if a, b := <-hit, <-hit; a != "first" || b != "second" {
		t.Fatalf("requests went to %s then %s", a, b)
	}
}

func TestSearchContextCanceled(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Search(ctx, "x", 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
