package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/indexify/pkg/log"
	"github.com/rubiojr/indexify/pkg/page"
	"github.com/urfave/cli/v3"
)

const shellHelp = `Type to edit the search box. Control lines:
  <empty> or :enter  accept the top suggestion, or search
  :s N               pick suggestion N
  :h N               pick recent search N
  :open N            print the link of result N
  :clear             clear the search box
  :focus / :blur     open or close the suggestion panel
  ::text             set the box to ":text"
  :help              show this help
  :quit              leave`

var errQuit = errors.New("quit")

// ShellCommand creates the interactive shell command
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Interactive search page",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "q",
				Usage: "Initial query, as if the page was opened with ?q=",
			},
			&cli.StringFlag{
				Name:  "location",
				Usage: "Page location to start from (e.g. \"?q=macbook\")",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runShell(ctx, c.String("config"), c.Bool("ephemeral"), c.String("q"), c.String("location"))
		},
	}
}

func shellLocation(q, raw string) (page.Location, error) {
	if raw != "" {
		return page.ParseLocation(raw)
	}
	return page.NewLocation(q), nil
}

// shell turns input lines into page events and prints the page view.
type shell struct {
	page *page.Page
	out  io.Writer
	// run executes work that may block on the network.
	run func(func())

	mu       sync.Mutex
	lastView string
}

func newShell(p *page.Page, out io.Writer, run func(func())) *shell {
	return &shell{page: p, out: out, run: run}
}

// render prints the page view when it changed since the last print.
func (sh *shell) render() {
	view := renderState(sh.page.State())

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if view == sh.lastView {
		return
	}
	sh.lastView = view
	fmt.Fprintln(sh.out, view)
}

func (sh *shell) printf(format string, args ...any) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}

// handle applies one input line. It returns errQuit when the user leaves.
func (sh *shell) handle(ctx context.Context, line string) error {
	trimmed := strings.TrimSpace(line)

	switch {
	case trimmed == "":
		sh.run(func() { sh.page.Submit(ctx) })
		return nil
	case strings.HasPrefix(trimmed, "::"):
		sh.page.SetQuery(strings.TrimPrefix(strings.TrimLeft(line, " \t"), ":"))
		return nil
	case !strings.HasPrefix(trimmed, ":"):
		sh.page.SetQuery(line)
		return nil
	}

	name, arg, _ := strings.Cut(trimmed[1:], " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "enter":
		sh.run(func() { sh.page.Submit(ctx) })
	case "s":
		n, err := parseIndex(arg, len(sh.page.State().Suggestions), "suggestion")
		if err != nil {
			return err
		}
		sh.run(func() {
			if err := sh.page.SelectSuggestion(ctx, n); err != nil {
				sh.printf("%s\n", errorStyle.Render(err.Error()))
			}
		})
	case "h":
		n, err := parseIndex(arg, len(sh.page.State().History), "recent search")
		if err != nil {
			return err
		}
		sh.run(func() {
			if err := sh.page.SelectHistory(ctx, n); err != nil {
				sh.printf("%s\n", errorStyle.Render(err.Error()))
			}
		})
	case "open":
		results := sh.page.State().Results
		n, err := parseIndex(arg, len(results), "result")
		if err != nil {
			return err
		}
		sh.printf("%s\n", linkStyle.Render(results[n].Content))
	case "clear":
		sh.page.Clear()
	case "focus":
		sh.page.Focus()
	case "blur":
		sh.page.Blur()
	case "help":
		sh.printf("%s\n", shellHelp)
	case "quit", "q":
		return errQuit
	default:
		return fmt.Errorf("unknown command :%s (try :help)", name)
	}
	return nil
}

// parseIndex converts a 1-based position typed by the user into an index.
func parseIndex(arg string, count int, what string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("expected a %s number, got %q", what, arg)
	}
	if n < 1 || n > count {
		return 0, fmt.Errorf("no %s %d", what, n)
	}
	return n - 1, nil
}

func runShell(ctx context.Context, configPath string, ephemeral bool, q, rawLocation string) error {
	loc, err := shellLocation(q, rawLocation)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	redraw := make(chan struct{}, 1)
	sess, err := openSession(sessionOptions{
		configPath: configPath,
		ephemeral:  ephemeral,
		location:   loc,
		onChange: func() {
			select {
			case redraw <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		return err
	}

	// Log lines would interleave with the view.
	logFile, err := os.OpenFile(sess.cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("Warning: logging to stderr, failed to open %s: %v\n", sess.cfg.LogPath(), err)
	} else {
		prevOutput := log.Output()
		log.SetOutput(logFile)
		defer func() {
			log.SetOutput(prevOutput)
			if err := logFile.Close(); err != nil {
				fmt.Printf("Warning: failed to close log file: %v\n", err)
			}
		}()
	}
	logger := log.ForService("shell")

	var wg sync.WaitGroup
	sh := newShell(sess.page, os.Stdout, func(f func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f()
		}()
	})
	defer func() {
		sess.page.Close()
		wg.Wait()
		sess.Close()
	}()

	fmt.Println(shellHelp)
	// Restore before reading input so typed text is never replaced.
	if err := sess.page.Init(ctx); err != nil {
		logger.Errorf("restoring page: %v", err)
	}
	sh.render()

	// Set up filesystem watcher for config file
	var events <-chan fsnotify.Event
	var watchErrors <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
			events = watcher.Events
			watchErrors = watcher.Errors
		}
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case <-redraw:
			sh.render()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := sh.handle(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				sh.printf("%s\n", errorStyle.Render(err.Error()))
			}
			sh.render()
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file instead of writing it in place.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Infof("config file changed: %s (event: %s), reloading", event.Name, event.Op.String())
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			if err := sess.reload(configPath); err != nil {
				logger.Errorf("failed to reload configuration: %v", err)
				continue
			}
			logger.Infof("configuration reloaded, backend %s", sess.client.BaseURL())
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}
