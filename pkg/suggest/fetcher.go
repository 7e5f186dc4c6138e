// Package suggest keeps the autocomplete list of a search box in sync with
// the text being typed.
//
// Text shorter than the minimum length clears the list immediately. Longer
// text is fetched once typing has been quiet for the debounce delay; a newer
// change cancels the pending fetch, so only the latest text ever reaches the
// backend. Fetch failures keep the previous list and are only logged.
package suggest

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/debounce"
	"github.com/rubiojr/indexify/pkg/log"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultMinChars = 2
)

// Client fetches suggestions. *api.Client implements it.
type Client interface {
	Suggestions(ctx context.Context, text string) ([]api.Suggestion, error)
}

// Logger receives fetch failures. *log.Logger implements it.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Options configures a Fetcher. Zero values pick the defaults.
type Options struct {
	Debounce time.Duration
	MinChars int
	// CacheSize > 0 enables an LRU of recent responses kept for CacheTTL.
	CacheSize int
	CacheTTL  time.Duration
	Scheduler debounce.Scheduler
	Logger    Logger
	// OnChange is called after the list or its visibility changed. It runs
	// on whichever goroutine made the change and must not block.
	OnChange func()
}

// Fetcher owns the suggestion list and the visibility of the panel.
type Fetcher struct {
	client    Client
	debouncer *debounce.Debouncer
	cache     *expirable.LRU[string, []api.Suggestion]
	minChars  int
	logger    Logger
	onChange  func()

	mu          sync.Mutex
	text        string
	suggestions []api.Suggestion
	visible     bool
	cancel      context.CancelFunc
	closed      bool
}

// New returns a Fetcher for client.
func New(client Client, opts Options) *Fetcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MinChars <= 0 {
		opts.MinChars = DefaultMinChars
	}
	if opts.Logger == nil {
		opts.Logger = log.ForService("suggest")
	}

	f := &Fetcher{
		client:    client,
		debouncer: debounce.New(opts.Debounce, opts.Scheduler),
		minChars:  opts.MinChars,
		logger:    opts.Logger,
		onChange:  opts.OnChange,
	}
	if opts.CacheSize > 0 {
		f.cache = expirable.NewLRU[string, []api.Suggestion](opts.CacheSize, nil, opts.CacheTTL)
	}
	return f
}

// Configure changes the debounce delay and the minimum length. A fetch that
// is already pending keeps its original delay.
func (f *Fetcher) Configure(delay time.Duration, minChars int) {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	f.debouncer.SetDelay(delay)
	f.mu.Lock()
	f.minChars = minChars
	f.mu.Unlock()
}

// OnQueryChange reacts to a new value of the search box.
func (f *Fetcher) OnQueryChange(text string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.text = text
	f.cancelInflightLocked()

	if utf8.RuneCountInString(strings.TrimSpace(text)) < f.minChars {
		f.debouncer.Cancel()
		changed := len(f.suggestions) > 0
		f.suggestions = nil
		f.mu.Unlock()
		if changed {
			f.notify()
		}
		return
	}
	f.mu.Unlock()

	f.debouncer.Trigger(func() { f.fetch(text) })
}

func (f *Fetcher) fetch(text string) {
	if cached, ok := f.cacheGet(text); ok {
		f.logger.Debugf("cache hit for %q", text)
		f.apply(text, cached)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.mu.Lock()
	if f.closed || f.text != text {
		f.mu.Unlock()
		cancel()
		return
	}
	f.cancel = cancel
	f.mu.Unlock()
	defer cancel()

	suggestions, err := f.client.Suggestions(ctx, text)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warnf("fetching suggestions for %q: %v", text, err)
		}
		return
	}
	if f.cache != nil {
		f.cache.Add(text, suggestions)
	}
	f.apply(text, suggestions)
}

func (f *Fetcher) cacheGet(text string) ([]api.Suggestion, bool) {
	if f.cache == nil {
		return nil, false
	}
	return f.cache.Get(text)
}

// apply installs a response unless the text moved on while it was in flight.
func (f *Fetcher) apply(text string, suggestions []api.Suggestion) {
	f.mu.Lock()
	if f.closed || f.text != text {
		f.mu.Unlock()
		f.logger.Debugf("dropping stale suggestions for %q", text)
		return
	}
	f.suggestions = suggestions
	f.mu.Unlock()
	f.notify()
}

// Suggestions returns a copy of the current list.
func (f *Fetcher) Suggestions() []api.Suggestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]api.Suggestion, len(f.suggestions))
	copy(out, f.suggestions)
	return out
}

// Top returns the first suggestion, if any.
func (f *Fetcher) Top() (api.Suggestion, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.suggestions) == 0 {
		return api.Suggestion{}, false
	}
	return f.suggestions[0], true
}

// Visible reports whether the suggestion panel is open. It is independent of
// whether there is anything to show.
func (f *Fetcher) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

// SetVisible opens or closes the suggestion panel.
func (f *Fetcher) SetVisible(visible bool) {
	f.mu.Lock()
	changed := f.visible != visible
	f.visible = visible
	f.mu.Unlock()
	if changed {
		f.notify()
	}
}

// Pending reports whether a debounced fetch is waiting to run.
func (f *Fetcher) Pending() bool {
	return f.debouncer.Pending()
}

// Close cancels the pending fetch and any request in flight.
func (f *Fetcher) Close() {
	f.debouncer.Cancel()
	f.mu.Lock()
	f.closed = true
	f.cancelInflightLocked()
	f.mu.Unlock()
}

func (f *Fetcher) cancelInflightLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *Fetcher) notify() {
	if f.onChange != nil {
		f.onChange()
	}
}
