package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/rubiojr/indexify/pkg/db"
)

// Backend is a string key/value store in the spirit of browser local
// storage. SetItems must apply all items or none.
type Backend interface {
	GetItem(key string) (value string, ok bool, err error)
	SetItems(items map[string]string) error
	RemoveItems(keys ...string) error
	Close() error
}

// SQLiteBackend keeps items in the kv table of a SQLite file.
type SQLiteBackend struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// the schema migrations.
func OpenSQLite(dbPath string) (*SQLiteBackend, error) {
	conn, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.InitializeDatabase(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &SQLiteBackend{db: conn}, nil
}

func (b *SQLiteBackend) GetItem(key string) (string, bool, error) {
	var value string
	err := b.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

func (b *SQLiteBackend) SetItems(items map[string]string) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				fmt.Printf("Warning: failed to rollback transaction: %v\n", err)
			}
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			fmt.Printf("Warning: failed to close statement: %v\n", err)
		}
	}()

	for key, value := range items {
		if _, err := stmt.Exec(key, value); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	committed = true
	return nil
}

func (b *SQLiteBackend) RemoveItems(keys ...string) error {
	for _, key := range keys {
		if _, err := b.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

// MemoryBackend is an in-process Backend, used by tests and by one-shot
// commands run with --ephemeral.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]string
	// FailWrites makes SetItems fail, to exercise storage error paths.
	FailWrites bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]string)}
}

func (b *MemoryBackend) GetItem(key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.items[key]
	return v, ok, nil
}

func (b *MemoryBackend) SetItems(items map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailWrites {
		return fmt.Errorf("memory backend: writes disabled")
	}
	for k, v := range items {
		b.items[k] = v
	}
	return nil
}

func (b *MemoryBackend) RemoveItems(keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.items, k)
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	return nil
}
