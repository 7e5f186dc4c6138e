package db

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is a single versioned schema change.
type Migration struct {
	Version   int
	Name      string
	SQL       string
	AppliedAt *time.Time
}

// MigrationStatus lists applied and pending migrations.
type MigrationStatus struct {
	Applied []Migration
	Pending []Migration
}

// Open opens (creating if needed) the SQLite file at dbPath. The schema is
// left untouched; see InitializeDatabase.
func Open(dbPath string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	return conn, nil
}

// MigrationManager applies the embedded migrations to a database.
type MigrationManager struct {
	db *sql.DB
}

func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureMigrationsTable creates the bookkeeping table if it doesn't exist.
func (m *MigrationManager) EnsureMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

// GetAppliedMigrations returns applied versions and when they were applied.
func (m *MigrationManager) GetAppliedMigrations() (map[int]time.Time, error) {
	applied := make(map[int]time.Time)

	rows, err := m.db.Query("SELECT version, applied_at FROM migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			fmt.Printf("Warning: failed to close rows: %v\n", err)
		}
	}()

	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied[version] = appliedAt
	}

	return applied, rows.Err()
}

// GetEmbeddedMigrations returns the migrations compiled into the binary,
// sorted by version. Files are named NNN_name.sql.
func GetEmbeddedMigrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}

		content, err := migrationsFS.ReadFile(path.Join("migrations", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading migration file %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version: version,
			Name:    strings.TrimSuffix(parts[1], ".sql"),
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet.
func (m *MigrationManager) GetPendingMigrations() ([]Migration, error) {
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, err
	}

	available, err := GetEmbeddedMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range available {
		if _, exists := applied[migration.Version]; !exists {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// GetMigrationStatus reports which embedded migrations have been applied.
func (m *MigrationManager) GetMigrationStatus() (*MigrationStatus, error) {
	if err := m.EnsureMigrationsTable(); err != nil {
		return nil, fmt.Errorf("ensuring migrations table: %w", err)
	}

	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return nil, err
	}

	available, err := GetEmbeddedMigrations()
	if err != nil {
		return nil, err
	}

	status := &MigrationStatus{}
	for _, migration := range available {
		if appliedAt, ok := applied[migration.Version]; ok {
			migration.AppliedAt = &appliedAt
			status.Applied = append(status.Applied, migration)
		} else {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

// ApplyMigration runs one migration and records it in the same transaction.
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				fmt.Printf("Warning: failed to rollback migration transaction: %v\n", err)
			}
		}
	}()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("executing migration %d: %w", migration.Version, err)
	}

	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", migration.Version); err != nil {
		return fmt.Errorf("recording migration %d: %w", migration.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing migration %d: %w", migration.Version, err)
	}

	committed = true
	return nil
}

// ApplyPendingMigrations brings the schema up to date and returns how many
// migrations were applied.
func (m *MigrationManager) ApplyPendingMigrations() (int, error) {
	if err := m.EnsureMigrationsTable(); err != nil {
		return 0, fmt.Errorf("ensuring migrations table: %w", err)
	}

	pending, err := m.GetPendingMigrations()
	if err != nil {
		return 0, fmt.Errorf("getting pending migrations: %w", err)
	}

	for _, migration := range pending {
		if err := m.ApplyMigration(migration); err != nil {
			return 0, fmt.Errorf("applying migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}
	return len(pending), nil
}

// InitializeDatabase applies every pending embedded migration.
func InitializeDatabase(db *sql.DB) error {
	if _, err := NewMigrationManager(db).ApplyPendingMigrations(); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
