package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rubiojr/indexify/pkg/config"
	"github.com/rubiojr/indexify/pkg/store"
	"github.com/urfave/cli/v3"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent searches",
		Action: func(ctx context.Context, c *cli.Command) error {
			st, err := openStoreFromConfig(c.String("config"))
			if err != nil {
				return err
			}
			defer closeStore(st)
			return printHistory(os.Stdout, st)
		},
		Commands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "Forget recent searches (the last results are kept)",
				Action: func(ctx context.Context, c *cli.Command) error {
					st, err := openStoreFromConfig(c.String("config"))
					if err != nil {
						return err
					}
					defer closeStore(st)
					if err := st.ClearHistory(); err != nil {
						return fmt.Errorf("clearing history: %w", err)
					}
					fmt.Println("History cleared")
					return nil
				},
			},
		},
	}
}

func openStoreFromConfig(configPath string) (*store.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return openStore(cfg, false)
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		fmt.Printf("Warning: failed to close store: %v\n", err)
	}
}

func printHistory(out io.Writer, st *store.Store) error {
	history, err := st.History()
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}
	if len(history) == 0 {
		fmt.Fprintln(out, "No recent searches")
		return nil
	}

	rows := make([][]string, len(history))
	for i, q := range history {
		rows[i] = []string{strconv.Itoa(i + 1), q}
	}
	return renderTable(out, []string{"#", "Query"}, rows)
}

// renderTable prints rows as a borderless, left aligned table.
func renderTable(out io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewTable(out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header(header)
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("building table: %w", err)
	}
	return table.Render()
}
