package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a single search, remembering it like the page would",
		ArgsUsage: "QUERY",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the results as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(query) == "" {
				return errors.New("a search query is required")
			}
			return searchOnce(ctx, os.Stdout, sessionOptions{
				configPath: c.String("config"),
				ephemeral:  c.Bool("ephemeral"),
			}, query, c.Bool("json"))
		},
	}
}

// searchOnce runs query through a page session, so a successful search is
// persisted and enters the history exactly as in the shell.
func searchOnce(ctx context.Context, out io.Writer, opts sessionOptions, query string, asJSON bool) error {
	sess, err := openSession(opts)
	if err != nil {
		return err
	}
	defer sess.Close()

	sess.page.FillQuery(query)
	sess.page.Search(ctx, query)
	st := sess.page.State()

	if st.Error.Show && !st.Error.Soft && len(st.Results) == 0 {
		return errors.New(st.Error.Message)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(st.Results)
	}

	if st.Error.Show {
		if st.Error.Soft {
			fmt.Fprintln(out, softStyle.Render(st.Error.Message))
			return nil
		}
		fmt.Fprintln(out, errorStyle.Render(st.Error.Message))
	}
	fmt.Fprint(out, renderResults(st.Results))
	return nil
}
