package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rubiojr/indexify/pkg/store"
	"github.com/urfave/cli/v3"
)

// LastCommand creates the last command
func LastCommand() *cli.Command {
	return &cli.Command{
		Name:  "last",
		Usage: "Show the last successful search and its results",
		Action: func(ctx context.Context, c *cli.Command) error {
			st, err := openStoreFromConfig(c.String("config"))
			if err != nil {
				return err
			}
			defer closeStore(st)
			return printLast(os.Stdout, st)
		},
	}
}

func printLast(out io.Writer, st *store.Store) error {
	snap, err := st.Load()
	if err != nil {
		return fmt.Errorf("loading persisted state: %w", err)
	}
	if !snap.HasResults {
		fmt.Fprintln(out, "No saved search yet")
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", promptStyle.Render("Last query:"), snap.Query)
	fmt.Fprint(out, renderResults(snap.Results))
	return nil
}
