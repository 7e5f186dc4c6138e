package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rubiojr/indexify/pkg/api"
	"github.com/rubiojr/indexify/pkg/config"
	"github.com/urfave/cli/v3"
)

// SuggestCommand creates the suggest command
func SuggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Fetch autocomplete suggestions for some text",
		ArgsUsage: "TEXT",
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return errors.New("some text is required")
			}
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return suggestOnce(ctx, os.Stdout, api.NewClient(clientOptions(cfg)), text)
		},
	}
}

// suggestOnce fetches suggestions right away, without the typing debounce
// or the minimum length the page applies.
func suggestOnce(ctx context.Context, out io.Writer, client *api.Client, text string) error {
	suggestions, err := client.Suggestions(ctx, text)
	if err != nil {
		return err
	}
	if len(suggestions) == 0 {
		fmt.Fprintln(out, softStyle.Render("no suggestions"))
		return nil
	}
	fmt.Fprint(out, renderSuggestions(suggestions))
	return nil
}
