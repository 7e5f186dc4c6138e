// Package page implements a search page session: the query box, the result
// list, the error slot and the history and suggestion dropdowns, together
// with the rules that tie them to the backend and to persisted state.
//
// A Page is built once per session with its collaborators injected (search
// client, suggestion client, store, location) and is driven by event
// methods (SetQuery, Submit, SelectSuggestion, SelectHistory, Clear, Focus,
// Blur). Renderers read State and are told about changes through OnChange.
package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/log"
	"github.com/rubiojr/indexify/pkg/store"
	"github.com/rubiojr/indexify/pkg/suggest"
)

// DefaultSize is the number of results requested per search.
const DefaultSize = 10

// SearchClient runs searches. *api.Client implements it.
type SearchClient interface {
	Search(ctx context.Context, query string, size int) ([]api.SearchResult, error)
}

// Store persists the last query, its results and the history.
// *store.Store implements it.
type Store interface {
	Load() (store.Snapshot, error)
	Save(results []api.SearchResult, query string) error
	AppendHistory(query string) ([]string, error)
}

// Options configures a Page.
type Options struct {
	SearchClient  SearchClient
	SuggestClient suggest.Client
	Store         Store
	// Location defaults to an empty URLLocation.
	Location Location
	// Size is the number of results requested, DefaultSize when zero.
	Size int
	// ClearResults makes Clear drop the displayed results as well.
	ClearResults bool
	// Suggest configures the suggestion fetcher. Its OnChange is replaced.
	Suggest suggest.Options
	// OnChange is called after any state change, outside the page lock.
	OnChange func()
}

// Page is the search page session.
type Page struct {
	client   SearchClient
	store    Store
	location Location
	suggest  *suggest.Fetcher
	onChange func()
	logger   *log.Logger

	mu           sync.Mutex
	size         int
	clearResults bool
	query        string
	results      []api.SearchResult
	loading      bool
	err          SearchError
	history      []string

	// gen identifies the latest search; responses of older searches are
	// discarded.
	gen          uint64
	cancelSearch context.CancelFunc
}

// New builds a page session. Call Init to restore persisted state.
func New(opts Options) *Page {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.Location == nil {
		opts.Location = NewLocation("")
	}

	p := &Page{
		client:       opts.SearchClient,
		store:        opts.Store,
		location:     opts.Location,
		onChange:     opts.OnChange,
		logger:       log.ForService("page"),
		size:         opts.Size,
		clearResults: opts.ClearResults,
	}

	suggestOpts := opts.Suggest
	suggestOpts.OnChange = p.notify
	p.suggest = suggest.New(opts.SuggestClient, suggestOpts)
	return p
}

// Init restores persisted state. When the location carries a query that
// differs from the persisted one, that query replaces it and is searched
// afresh instead of showing the persisted results.
func (p *Page) Init(ctx context.Context) error {
	snap, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("loading persisted state: %w", err)
	}

	p.mu.Lock()
	if snap.HasResults {
		p.results = snap.Results
		// Text typed while state was loading wins over the persisted query.
		if p.query == "" {
			p.query = snap.Query
		}
	}
	p.history = snap.History
	p.mu.Unlock()
	p.notify()

	if q := p.location.Query(); q != "" && q != snap.Query {
		p.logger.Debugf("location query %q overrides persisted %q", q, snap.Query)
		p.SetQuery(q)
		p.Search(ctx, q)
	}
	return nil
}

// SetQuery updates the text of the search box.
func (p *Page) SetQuery(text string) {
	p.mu.Lock()
	p.query = text
	p.mu.Unlock()
	p.suggest.OnQueryChange(text)
	p.notify()
}

// FillQuery sets the text of the search box without treating it as typing:
// no suggestion fetch is scheduled.
func (p *Page) FillQuery(text string) {
	p.mu.Lock()
	p.query = text
	p.mu.Unlock()
	p.notify()
}

// Query returns the current text of the search box.
func (p *Page) Query() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

// Search runs query against the backend and applies the outcome. It blocks
// until the request completes; run it on its own goroutine to keep a UI
// responsive. Starting a new search cancels the previous one, and a
// response that is no longer the latest is discarded.
func (p *Page) Search(ctx context.Context, query string) {
	if strings.TrimSpace(query) == "" {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancelSearch != nil {
		p.cancelSearch()
	}
	p.gen++
	gen := p.gen
	p.cancelSearch = cancel
	p.loading = true
	p.err = SearchError{}
	size := p.size
	p.mu.Unlock()
	p.notify()

	defer func() {
		cancel()
		p.mu.Lock()
		if gen == p.gen {
			p.loading = false
			p.cancelSearch = nil
		}
		p.mu.Unlock()
		p.notify()
	}()

	results, err := p.client.Search(ctx, query, size)

	p.mu.Lock()
	defer p.mu.Unlock()

	if gen != p.gen {
		p.logger.Debugf("discarding stale response for %q", query)
		return
	}

	switch {
	case err != nil && ctx.Err() != nil:
		p.logger.Debugf("search for %q cancelled", query)
	case err != nil:
		p.logger.Errorf("searching %q: %v", query, err)
		p.err = SearchError{Message: errorMessage(err), Show: true}
	case len(results) == 0:
		p.results = []api.SearchResult{}
		p.err = SearchError{Message: MsgNoResults, Show: true, Soft: true}
	default:
		p.applyResultsLocked(query, results)
	}
}

// applyResultsLocked shows results and persists them with their query,
// updates the history and the location. Persisting happens under the page
// lock so storage always matches what is displayed.
func (p *Page) applyResultsLocked(query string, results []api.SearchResult) {
	p.results = results

	if err := p.store.Save(results, query); err != nil {
		p.logger.Errorf("persisting results: %v", err)
		p.err = SearchError{Message: fmt.Sprintf(MsgSaveFailedFmt, err), Show: true}
	}

	history, err := p.store.AppendHistory(query)
	if err != nil {
		p.logger.Warnf("updating history: %v", err)
		history = store.PushHistory(p.history, query, store.HistoryLimit)
	}
	p.history = history

	p.location.SetQuery(query)
}

func errorMessage(err error) string {
	var apiErr *api.Error
	switch {
	case errors.As(err, &apiErr) && apiErr.Detail != "":
		return apiErr.Detail
	case errors.Is(err, api.ErrMissingResults):
		return MsgMissingResults
	default:
		return MsgSearchFailed
	}
}

// Submit is the Enter key: it accepts the top suggestion when the panel is
// open and has entries, and searches the current query otherwise.
func (p *Page) Submit(ctx context.Context) {
	if p.suggest.Visible() {
		if top, ok := p.suggest.Top(); ok {
			p.acceptSuggestion(ctx, top)
			return
		}
	}
	p.Search(ctx, p.Query())
}

// SelectSuggestion clicks the suggestion at index i.
func (p *Page) SelectSuggestion(ctx context.Context, i int) error {
	suggestions := p.suggest.Suggestions()
	if i < 0 || i >= len(suggestions) {
		return fmt.Errorf("no suggestion %d", i+1)
	}
	p.acceptSuggestion(ctx, suggestions[i])
	return nil
}

func (p *Page) acceptSuggestion(ctx context.Context, s api.Suggestion) {
	p.SetQuery(s.Text)
	p.suggest.SetVisible(false)
	p.Search(ctx, s.Text)
}

// SelectHistory clicks the history entry at index i.
func (p *Page) SelectHistory(ctx context.Context, i int) error {
	p.mu.Lock()
	if i < 0 || i >= len(p.history) {
		p.mu.Unlock()
		return fmt.Errorf("no history entry %d", i+1)
	}
	query := p.history[i]
	p.mu.Unlock()

	p.SetQuery(query)
	p.Search(ctx, query)
	return nil
}

// Clear empties the search box and the error slot. Persisted state is never
// touched; displayed results are dropped only when configured to.
func (p *Page) Clear() {
	p.mu.Lock()
	p.query = ""
	p.err = SearchError{}
	if p.clearResults {
		p.results = nil
	}
	p.mu.Unlock()
	p.suggest.OnQueryChange("")
	p.notify()
}

// Focus opens the suggestion panel.
func (p *Page) Focus() {
	p.suggest.SetVisible(true)
}

// Blur closes the suggestion panel.
func (p *Page) Blur() {
	p.suggest.SetVisible(false)
}

// Configure applies settings that may change while the session runs.
func (p *Page) Configure(size int, clearResults bool) {
	if size <= 0 {
		size = DefaultSize
	}
	p.mu.Lock()
	p.size = size
	p.clearResults = clearResults
	p.mu.Unlock()
}

// ConfigureSuggest changes the suggestion debounce delay and minimum length
// for subsequent typing.
func (p *Page) ConfigureSuggest(delay time.Duration, minChars int) {
	p.suggest.Configure(delay, minChars)
}

// State returns a copy of the page state.
func (p *Page) State() State {
	suggestions := p.suggest.Suggestions()
	visible := p.suggest.Visible()

	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Query:           p.query,
		Results:         append([]api.SearchResult(nil), p.results...),
		Loading:         p.loading,
		Error:           p.err,
		History:         append([]string(nil), p.history...),
		Suggestions:     suggestions,
		ShowSuggestions: visible,
		Location:        p.location.String(),
	}
}

// Close cancels the in-flight search and suggestion fetch.
func (p *Page) Close() {
	p.suggest.Close()
	p.mu.Lock()
	if p.cancelSearch != nil {
		p.cancelSearch()
	}
	p.mu.Unlock()
}

func (p *Page) notify() {
	if p.onChange != nil {
		p.onChange()
	}
}
