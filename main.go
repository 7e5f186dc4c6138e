package main

import (
	"context"
	stdlog "log"
	"os"

	"github.com/rubiojr/indexify/cmd"
	"github.com/rubiojr/indexify/pkg/config"
	"github.com/rubiojr/indexify/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "indexify",
		Usage: "Search page client for an indexify backend",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
			&cli.BoolFlag{
				Name:  "ephemeral",
				Usage: "Keep the last search and history in memory only",
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			log.SetGlobalDebug(c.Bool("debug"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ShellCommand(),
			cmd.SearchCommand(),
			cmd.SuggestCommand(),
			cmd.HistoryCommand(),
			cmd.LastCommand(),
			cmd.MigrateCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		stdlog.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		stdlog.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
