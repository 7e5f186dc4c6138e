package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/indexify/pkg/config"
	"github.com/rubiojr/indexify/pkg/db"
	"github.com/urfave/cli/v3"
)

// MigrateCommand creates the migrate command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations on the local state database",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show migration status without applying migrations",
				Value: false,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runMigrations(os.Stdout, cfg.DBPath(), c.Bool("status"))
		},
	}
}

func runMigrations(out io.Writer, dbPath string, statusOnly bool) error {
	conn, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			fmt.Printf("Warning: failed to close database: %v\n", err)
		}
	}()

	manager := db.NewMigrationManager(conn)
	if statusOnly {
		return showMigrationStatus(out, manager)
	}

	applied, err := manager.ApplyPendingMigrations()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Applied %d migrations to %s\n", applied, dbPath)
	return nil
}

// showMigrationStatus displays the current migration status
func showMigrationStatus(out io.Writer, manager *db.MigrationManager) error {
	status, err := manager.GetMigrationStatus()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Applied migrations: %d\n", len(status.Applied))
	for _, migration := range status.Applied {
		appliedTime := "unknown"
		if migration.AppliedAt != nil {
			appliedTime = migration.AppliedAt.Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "  ✓ %03d: %s (applied: %s)\n", migration.Version, migration.Name, appliedTime)
	}

	fmt.Fprintf(out, "Pending migrations: %d\n", len(status.Pending))
	for _, migration := range status.Pending {
		fmt.Fprintf(out, "  • %03d: %s\n", migration.Version, migration.Name)
	}
	if len(status.Pending) == 0 {
		fmt.Fprintln(out, "  (none - database is up to date)")
	}
	return nil
}
