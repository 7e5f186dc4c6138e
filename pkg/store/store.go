// Package store persists the state a search session restores on the next
// start: the last query, the results it produced and the recent-query list.
//
// Items are kept under the same keys a browser page would use in local
// storage:
//
//	searchResults  JSON array of results
//	lastQuery      the query that produced searchResults
//	searchHistory  JSON array of up to five queries, most recent first
//
// searchResults and lastQuery are always written in one transaction and only
// returned by Load when both are present.
package store

import (
	"encoding/json"
	"fmt"

	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/log"
	"golang.org/x/text/unicode/norm"
)

const (
	KeyResults   = "searchResults"
	KeyLastQuery = "lastQuery"
	KeyHistory   = "searchHistory"

	// HistoryLimit is the number of recent queries kept.
	HistoryLimit = 5
)

// Snapshot is the persisted state read at session start.
type Snapshot struct {
	// HasResults is true when both results and query were persisted.
	HasResults bool
	Results    []api.SearchResult
	Query      string
	History    []string
}

// Store reads and writes persisted session state through a Backend.
type Store struct {
	backend Backend
	logger  *log.Logger
}

// New returns a Store on top of backend.
func New(backend Backend) *Store {
	return &Store{backend: backend, logger: log.ForService("store")}
}

// Open returns a Store backed by the SQLite file at dbPath.
func Open(dbPath string) (*Store, error) {
	backend, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return New(backend), nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Load reads the persisted snapshot. Items that fail to decode are ignored
// with a warning, the same way a corrupt local storage entry would be.
func (s *Store) Load() (Snapshot, error) {
	var snap Snapshot

	rawResults, hasResults, err := s.backend.GetItem(KeyResults)
	if err != nil {
		return snap, err
	}
	query, hasQuery, err := s.backend.GetItem(KeyLastQuery)
	if err != nil {
		return snap, err
	}

	if hasResults && hasQuery {
		var results []api.SearchResult
		if err := json.Unmarshal([]byte(rawResults), &results); err != nil {
			s.logger.Warnf("ignoring unreadable %s: %v", KeyResults, err)
		} else {
			snap.HasResults = true
			snap.Results = results
			snap.Query = query
		}
	}

	history, err := s.History()
	if err != nil {
		return snap, err
	}
	snap.History = history
	return snap, nil
}

// Save persists results together with the query that produced them.
func (s *Store) Save(results []api.SearchResult, query string) error {
	if results == nil {
		results = []api.SearchResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if err := s.backend.SetItems(map[string]string{
		KeyResults:   string(data),
		KeyLastQuery: query,
	}); err != nil {
		return fmt.Errorf("saving results for %q: %w", query, err)
	}
	return nil
}

// History returns the persisted recent queries, most recent first.
func (s *Store) History() ([]string, error) {
	raw, ok, err := s.backend.GetItem(KeyHistory)
	if err != nil || !ok {
		return nil, err
	}

	var history []string
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		s.logger.Warnf("ignoring unreadable %s: %v", KeyHistory, err)
		return nil, nil
	}
	if len(history) > HistoryLimit {
		history = history[:HistoryLimit]
	}
	return history, nil
}

// AppendHistory moves query to the front of the persisted history and
// returns the updated list.
func (s *Store) AppendHistory(query string) ([]string, error) {
	current, err := s.History()
	if err != nil {
		return nil, err
	}

	updated := PushHistory(current, query, HistoryLimit)
	data, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}
	if err := s.backend.SetItems(map[string]string{KeyHistory: string(data)}); err != nil {
		return nil, fmt.Errorf("saving history: %w", err)
	}
	return updated, nil
}

// ClearHistory removes the persisted history. The last query and results
// are kept.
func (s *Store) ClearHistory() error {
	return s.backend.RemoveItems(KeyHistory)
}

// PushHistory returns a new list with query first, any earlier occurrence
// removed and the length capped at limit. Queries are compared after NFC
// normalization so visually identical input collapses to one entry.
func PushHistory(history []string, query string, limit int) []string {
	key := norm.NFC.String(query)

	updated := make([]string, 0, limit)
	updated = append(updated, query)
	for _, q := range history {
		if len(updated) == limit {
			break
		}
		if norm.NFC.String(q) == key {
			continue
		}
		updated = append(updated, q)
	}
	return updated
}
