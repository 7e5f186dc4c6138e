package cmd

import (
	"fmt"

	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/config"
	"github.com/rubiojr/indexify/pkg/log"
	"github.com/rubiojr/indexify/pkg/page"
	"github.com/rubiojr/indexify/pkg/store"
	"github.com/rubiojr/indexify/pkg/suggest"
)

// session bundles everything a command needs to drive a search page.
type session struct {
	cfg    *config.Config
	client *api.Client
	store  *store.Store
	page   *page.Page
}

type sessionOptions struct {
	configPath string
	// ephemeral keeps page state in memory instead of the SQLite file.
	ephemeral bool
	location  page.Location
	onChange  func()
}

// openSession loads the configuration and wires the backend client, the
// store and the page together.
func openSession(opts sessionOptions) (*session, error) {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := openStore(cfg, opts.ephemeral)
	if err != nil {
		return nil, err
	}

	client := api.NewClient(clientOptions(cfg))
	p := page.New(page.Options{
		SearchClient:  client,
		SuggestClient: client,
		Store:         st,
		Location:      opts.location,
		Size:          cfg.Search.Size,
		ClearResults:  cfg.Page.ClearResults,
		Suggest:       suggestOptions(cfg),
		OnChange:      opts.onChange,
	})

	return &session{cfg: cfg, client: client, store: st, page: p}, nil
}

func openStore(cfg *config.Config, ephemeral bool) (*store.Store, error) {
	if ephemeral {
		return store.New(store.NewMemoryBackend()), nil
	}
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func clientOptions(cfg *config.Config) api.Options {
	return api.Options{BaseURL: cfg.Backend.URL, Timeout: cfg.Backend.Timeout.Duration}
}

func suggestOptions(cfg *config.Config) suggest.Options {
	opts := suggest.Options{
		Debounce: cfg.Suggest.Debounce.Duration,
		MinChars: cfg.Suggest.MinChars,
		CacheTTL: cfg.Suggest.CacheTTL.Duration,
	}
	if cfg.Suggest.CacheSize > 0 {
		opts.CacheSize = cfg.Suggest.CacheSize
	}
	return opts
}

func (s *session) Close() {
	s.page.Close()
	if err := s.store.Close(); err != nil {
		log.ForService("cmd").Warnf("failed to close store: %v", err)
	}
}

// reload re-reads the configuration and applies it to the running session.
// The storage directory and the suggestion cache keep their startup values.
func (s *session) reload(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading new config: %w", err)
	}
	s.client.Reconfigure(clientOptions(cfg))
	s.page.Configure(cfg.Search.Size, cfg.Page.ClearResults)
	s.page.ConfigureSuggest(cfg.Suggest.Debounce.Duration, cfg.Suggest.MinChars)
	s.cfg = cfg
	return nil
}
