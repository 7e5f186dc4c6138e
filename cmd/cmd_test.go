package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/config"
	"github.com/rubiojr/indexify/pkg/debounce"
	"github.com/rubiojr/indexify/pkg/page"
	"github.com/rubiojr/indexify/pkg/store"
	"github.com/rubiojr/indexify/pkg/suggest"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/search":
			var req api.SearchRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			switch req.Query {
			case "broken":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail": "bad request"}`))
			case "nothing":
				_, _ = w.Write([]byte(`{"results": []}`))
			default:
				results := make([]api.SearchResult, 3)
				for i := range results {
					results[i] = api.SearchResult{
						Title:    fmt.Sprintf("%s %d", req.Query, i+1),
						Abstract: "about " + req.Query,
						Keywords: []string{"laptop"},
						Content:  fmt.Sprintf("https://example.com/%d", i+1),
					}
				}
				_ = json.NewEncoder(w).Encode(map[string]any{"results": results})
			}
		case "/api/suggestions":
			q := r.URL.Query().Get("query")
			_ = json.NewEncoder(w).Encode(map[string]any{"suggestions": []api.Suggestion{
				{Text: q + " pro", Count: 12, Trending: true},
				{Text: q + " air", Count: 3},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, backendURL string) (configPath, storageDir string) {
	t.Helper()
	dir := t.TempDir()
	storageDir = filepath.Join(dir, "data")
	if err := os.MkdirAll(storageDir, 0755); err != nil {
		t.Fatal(err)
	}
	configPath = filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("storage_dir = %q\n\n[backend]\nurl = %q\ntimeout = \"5s\"\n", storageDir, backendURL)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath, storageDir
}

type testShell struct {
	*shell
	out   *bytes.Buffer
	clock *debounce.ManualClock
	store *store.Store
}

func newTestShell(t *testing.T, clearResults bool) *testShell {
	t.Helper()
	srv := newBackend(t)
	client := api.NewClient(api.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	clock := debounce.NewManualClock()
	st := store.New(store.NewMemoryBackend())
	p := page.New(page.Options{
		SearchClient:  client,
		SuggestClient: client,
		Store:         st,
		ClearResults:  clearResults,
		Suggest:       suggest.Options{Scheduler: clock.Schedule},
	})
	t.Cleanup(p.Close)

	out := &bytes.Buffer{}
	// Run background work inline so assertions see its effects.
	sh := newShell(p, out, func(f func()) { f() })
	return &testShell{shell: sh, out: out, clock: clock, store: st}
}

func (ts *testShell) do(t *testing.T, lines ...string) {
	t.Helper()
	for _, line := range lines {
		if err := ts.handle(context.Background(), line); err != nil {
			t.Fatalf("handle(%q): %v", line, err)
		}
	}
}

func TestShellTypeAndSearch(t *testing.T) {
	ts := newTestShell(t, false)

	ts.do(t, "macbook", "")

	st := ts.page.State()
	if len(st.Results) != 3 || st.Location != "?q=macbook" {
		t.Fatalf("state = %+v", st)
	}
	snap, _ := ts.store.Load()
	if snap.Query != "macbook" {
		t.Fatalf("persisted query = %q", snap.Query)
	}
}

func TestShellEnterAcceptsTopSuggestion(t *testing.T) {
	ts := newTestShell(t, false)

	ts.do(t, ":focus", "mac")
	ts.clock.Advance(suggest.DefaultDebounce)
	ts.render()
	if !strings.Contains(ts.out.String(), "mac pro") {
		t.Fatalf("suggestions not rendered:\n%s", ts.out.String())
	}

	ts.do(t, ":enter")

	st := ts.page.State()
	if st.Query != "mac pro" || st.ShowSuggestions || len(st.Results) != 3 {
		t.Fatalf("state = %+v", st)
	}
}

func TestShellPickSuggestionAndHistory(t *testing.T) {
	ts := newTestShell(t, false)

	ts.do(t, ":focus", "ipad")
	ts.clock.Advance(suggest.DefaultDebounce)
	ts.do(t, ":s 2")
	if q := ts.page.State().Query; q != "ipad air" {
		t.Fatalf("query = %q", q)
	}

	ts.do(t, "first", "", "second", "")
	ts.do(t, ":h 2")
	st := ts.page.State()
	if st.Query != "first" || st.History[0] != "first" {
		t.Fatalf("state = %+v", st)
	}
}

func TestShellErrors(t *testing.T) {
	ts := newTestShell(t, false)

	tests := []struct {
		line string
		want string
	}{
		{line: ":s 1", want: "no suggestion 1"},
		{line: ":h x", want: "expected a recent search number"},
		{line: ":open 1", want: "no result 1"},
		{line: ":bogus", want: "unknown command"},
	}
	for _, tt := range tests {
		err := ts.handle(context.Background(), tt.line)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("handle(%q) = %v, want error containing %q", tt.line, err, tt.want)
		}
	}

	if err := ts.handle(context.Background(), ":quit"); err != errQuit {
		t.Fatalf(":quit = %v", err)
	}
}

func TestShellBackendErrorShown(t *testing.T) {
	ts := newTestShell(t, false)

	ts.do(t, "broken", "")
	ts.render()

	if !strings.Contains(ts.out.String(), "bad request") {
		t.Fatalf("backend detail not rendered:\n%s", ts.out.String())
	}
}

func TestShellOpenPrintsLink(t *testing.T) {
	ts := newTestShell(t, false)

	ts.do(t, "macbook", "", ":open 2")

	if !strings.Contains(ts.out.String(), "https://example.com/2") {
		t.Fatalf("link not printed:\n%s", ts.out.String())
	}
}

func TestShellClear(t *testing.T) {
	for _, clearResults := range []bool{false, true} {
		t.Run(fmt.Sprintf("clear_results=%v", clearResults), func(t *testing.T) {
			ts := newTestShell(t, clearResults)
			ts.do(t, "macbook", "", ":clear")

			st := ts.page.State()
			if st.Query != "" {
				t.Fatalf("query = %q", st.Query)
			}
			if got := len(st.Results) == 0; got != clearResults {
				t.Fatalf("results cleared = %v, want %v", got, clearResults)
			}
			if !st.ShowHistory() {
				t.Fatal("history dropdown should show with an empty box")
			}
		})
	}
}

func TestShellLiteralColon(t *testing.T) {
	ts := newTestShell(t, false)
	ts.do(t, "::help")
	if q := ts.page.State().Query; q != ":help" {
		t.Fatalf("query = %q", q)
	}
}

func TestRenderOnlyWhenChanged(t *testing.T) {
	ts := newTestShell(t, false)

	ts.render()
	first := ts.out.Len()
	ts.render()
	if ts.out.Len() != first {
		t.Fatal("unchanged view should not be printed twice")
	}
}

func TestRenderState(t *testing.T) {
	view := renderState(page.State{
		Query:   "mac",
		Results: []api.SearchResult{{Title: "MacBook", Abstract: "laptop", Content: "/mac"}},
		Error:   page.SearchError{Message: "results shown but not saved: disk full", Show: true},
		Suggestions: []api.Suggestion{
			{Text: "mac pro", Trending: true},
		},
		ShowSuggestions: true,
		History:         []string{"old"},
		Location:        "?q=mac",
	})

	for _, want := range []string{"mac pro", "trending", "MacBook", "/mac", "disk full", "?q=mac"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
	if strings.Contains(view, "old") {
		t.Errorf("history should be hidden while suggestions show:\n%s", view)
	}
}

func TestShellLocation(t *testing.T) {
	loc, err := shellLocation("ignored", "indexify:/?q=macbook")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Query() != "macbook" {
		t.Fatalf("location query = %q", loc.Query())
	}

	loc, err = shellLocation("ipad", "")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Query() != "ipad" {
		t.Fatalf("location query = %q", loc.Query())
	}
}

func TestSearchOncePersists(t *testing.T) {
	srv := newBackend(t)
	configPath, _ := writeConfig(t, srv.URL)
	opts := sessionOptions{configPath: configPath}

	var out bytes.Buffer
	if err := searchOnce(context.Background(), &out, opts, "macbook", false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "macbook 1") {
		t.Fatalf("output:\n%s", out.String())
	}

	st, err := openStoreFromConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	defer closeStore(st)

	out.Reset()
	if err := printLast(&out, st); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "macbook") || !strings.Contains(out.String(), "https://example.com/3") {
		t.Fatalf("last output:\n%s", out.String())
	}

	out.Reset()
	if err := printHistory(&out, st); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "macbook") {
		t.Fatalf("history output:\n%s", out.String())
	}
}

func TestSearchOnceJSON(t *testing.T) {
	srv := newBackend(t)
	configPath, _ := writeConfig(t, srv.URL)

	var out bytes.Buffer
	opts := sessionOptions{configPath: configPath, ephemeral: true}
	if err := searchOnce(context.Background(), &out, opts, "ipad", true); err != nil {
		t.Fatal(err)
	}

	var results []api.SearchResult
	if err := json.Unmarshal(out.Bytes(), &results); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if len(results) != 3 || results[0].Title != "ipad 1" {
		t.Fatalf("results = %+v", results)
	}
}

func TestSearchOnceOutcomes(t *testing.T) {
	srv := newBackend(t)
	configPath, _ := writeConfig(t, srv.URL)
	opts := sessionOptions{configPath: configPath, ephemeral: true}

	var out bytes.Buffer
	err := searchOnce(context.Background(), &out, opts, "broken", false)
	if err == nil || err.Error() != "bad request" {
		t.Fatalf("err = %v, want bad request", err)
	}

	out.Reset()
	if err := searchOnce(context.Background(), &out, opts, "nothing", false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), page.MsgNoResults) {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestSuggestOnce(t *testing.T) {
	srv := newBackend(t)
	client := api.NewClient(api.Options{BaseURL: srv.URL})

	var out bytes.Buffer
	// A single character still fetches: there is no minimum length here.
	if err := suggestOnce(context.Background(), &out, client, "m"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "m pro") || !strings.Contains(out.String(), "trending") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestHistoryEmpty(t *testing.T) {
	var out bytes.Buffer
	if err := printHistory(&out, store.New(store.NewMemoryBackend())); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "No recent searches") {
		t.Fatalf("output:\n%s", out.String())
	}
}

func TestSessionReload(t *testing.T) {
	first := newBackend(t)
	second := newBackend(t)
	configPath, storageDir := writeConfig(t, first.URL)

	sess, err := openSession(sessionOptions{configPath: configPath, ephemeral: true})
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()

	changed := *sess.cfg
	changed.StorageDir = storageDir
	changed.Backend.URL = second.URL
	changed.Search.Size = 5
	changed.Suggest.MinChars = 4
	if err := changed.SaveConfig(configPath); err != nil {
		t.Fatal(err)
	}
	if err := sess.reload(configPath); err != nil {
		t.Fatal(err)
	}
	if got := sess.client.BaseURL(); got != second.URL {
		t.Fatalf("base URL = %q, want %q", got, second.URL)
	}
	if sess.cfg.Search.Size != 5 || sess.cfg.Suggest.MinChars != 4 {
		t.Fatalf("reloaded config = %+v", sess.cfg)
	}
}

func TestSearchOnceSendsNoSuggestionRequest(t *testing.T) {
	var mu sync.Mutex
	suggestionHits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/search":
			// Longer than the suggestion debounce.
			time.Sleep(2 * suggest.DefaultDebounce)
			_, _ = w.Write([]byte(`{"results": [{"title": "MacBook", "abstract": "", "content": "/mac"}]}`))
		case "/api/suggestions":
			mu.Lock()
			suggestionHits++
			mu.Unlock()
			_, _ = w.Write([]byte(`{"suggestions": []}`))
		}
	}))
	defer srv.Close()
	configPath, _ := writeConfig(t, srv.URL)

	var out bytes.Buffer
	opts := sessionOptions{configPath: configPath, ephemeral: true}
	if err := searchOnce(context.Background(), &out, opts, "macbook", false); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if suggestionHits != 0 {
		t.Fatalf("one-shot search issued %d suggestion requests", suggestionHits)
	}
}

func TestSuggestOptionsCacheSize(t *testing.T) {
	tests := []struct {
		name      string
		cacheSize string
		want      int
	}{
		{name: "unset", cacheSize: "", want: config.DefaultCacheSize},
		{name: "zero picks default", cacheSize: "cache_size = 0\n", want: config.DefaultCacheSize},
		{name: "explicit", cacheSize: "cache_size = 16\n", want: 16},
		{name: "negative disables", cacheSize: "cache_size = -1\n", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			content := fmt.Sprintf("storage_dir = %q\n\n[suggest]\n%s", t.TempDir(), tt.cacheSize)
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := config.LoadConfig(path)
			if err != nil {
				t.Fatal(err)
			}
			if got := suggestOptions(cfg).CacheSize; got != tt.want {
				t.Fatalf("CacheSize = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := initConfig(path, false); err != nil {
		t.Fatal(err)
	}
	if err := initConfig(path, false); err == nil {
		t.Fatal("expected error for existing config")
	}
	if err := initConfig(path, true); err != nil {
		t.Fatal(err)
	}
}

func TestMigrateStatusAndApply(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "indexify.db")

	var out bytes.Buffer
	if err := runMigrations(&out, dbPath, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Pending migrations: 1") || !strings.Contains(out.String(), "kv_store") {
		t.Fatalf("status output:\n%s", out.String())
	}

	out.Reset()
	if err := runMigrations(&out, dbPath, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Applied 1 migrations") {
		t.Fatalf("apply output:\n%s", out.String())
	}

	out.Reset()
	if err := runMigrations(&out, dbPath, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "up to date") {
		t.Fatalf("status output:\n%s", out.String())
	}
}
