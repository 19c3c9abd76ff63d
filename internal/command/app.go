// Package command builds the agentdesk terminal client.
package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"agentdesk/internal/agent"
	"agentdesk/internal/config"
	"agentdesk/internal/core"
	"agentdesk/internal/logging"
	"agentdesk/internal/render"
)

const defaultAgentURL = "http://localhost:3000"

// Deps are the process streams and the HTTP client used by the app.
type Deps struct {
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	HTTPClient *http.Client
	// ExitErrHandler replaces the default, which exits the process on cli.Exit errors.
	ExitErrHandler cli.ExitErrHandlerFunc
}

// BuildApp assembles the CLI.
func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:      "agentdesk",
		Usage:     "submit tasks to an agent service from the terminal",
		Reader:    deps.Stdin,
		Writer:    deps.Stdout,
		ErrWriter: deps.Stderr,

		ExitErrHandler: deps.ExitErrHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "agent-url",
				Value:   defaultAgentURL,
				Usage:   "base URL of the agent service",
				EnvVars: []string{"AGENTDESK_AGENT_URL"},
			},
			&cli.StringFlag{
				Name:    "state-dir",
				Usage:   "directory holding quick_tasks.toml",
				EnvVars: []string{"AGENTDESK_STATE_DIR"},
			},
			&cli.DurationFlag{
				Name:    "run-timeout",
				Value:   10 * time.Minute,
				Usage:   "upper bound for one submission (0 disables)",
				EnvVars: []string{"AGENTDESK_RUN_TIMEOUT"},
			},
			&cli.BoolFlag{
				Name:    "utc",
				Usage:   "render timestamps in UTC",
				EnvVars: []string{"AGENTDESK_USE_UTC"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "log level (debug, info, warn, error)",
				EnvVars: []string{"AGENTDESK_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "probe the agent service",
				Action: func(c *cli.Context) error {
					session, err := newSession(c, deps)
					if err != nil {
						return err
					}
					status := session.Probe(c.Context)
					render.Status(c.App.Writer, status)
					if status == core.StatusDisconnected {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "submit a task and print its outcome",
				ArgsUsage: "[task...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "quick", Aliases: []string{"q"}, Usage: "run a quick task by id"},
				},
				Action: func(c *cli.Context) error {
					session, err := newSession(c, deps)
					if err != nil {
						return err
					}
					task := strings.Join(c.Args().Slice(), " ")
					if id := c.String("quick"); id != "" {
						qt, ok := session.QuickTask(id)
						if !ok {
							return cli.Exit(fmt.Sprintf("unknown quick task %q", id), 2)
						}
						task = qt.Text
					}
					outcome, err := session.SubmitText(c.Context, task)
					if err != nil {
						return cli.Exit(err.Error(), 2)
					}
					render.View(c.App.Writer, session.View(location(c)))
					if _, failed := outcome.(*core.TaskError); failed {
						return cli.Exit("", 1)
					}
					return nil
				},
			},
			{
				Name:  "quick",
				Usage: "list quick tasks",
				Action: func(c *cli.Context) error {
					tasks, err := quickTasks(c)
					if err != nil {
						return err
					}
					render.QuickTasks(c.App.Writer, tasks)
					return nil
				},
			},
			{
				Name:  "watch",
				Usage: "read tasks from stdin, one per line, and submit each",
				Action: func(c *cli.Context) error {
					session, err := newSession(c, deps)
					if err != nil {
						return err
					}
					return watch(c.Context, session, c.App.Reader, c.App.Writer, location(c))
				},
			},
		},
	}
}

// watch submits every line as if Enter had been pressed in the task input.
func watch(ctx context.Context, session *core.Session, in io.Reader, out io.Writer, loc *time.Location) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	failures := 0
	for scanner.Scan() {
		handled, err := session.HandleKeyText(ctx, core.KeyEvent{Key: "Enter"}, scanner.Text())
		if err != nil {
			if errors.Is(err, core.ErrEmptyTask) {
				continue
			}
			return err
		}
		if !handled {
			continue
		}
		session.Wait()
		v := session.View(loc)
		render.View(out, v)
		fmt.Fprintln(out)
		if v.Error != nil {
			failures++
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read tasks: %w", err)
	}
	if failures > 0 {
		return cli.Exit(fmt.Sprintf("%d task(s) failed", failures), 1)
	}
	return nil
}

func newSession(c *cli.Context, deps Deps) (*core.Session, error) {
	client, err := agent.NewClient(c.String("agent-url"), deps.HTTPClient)
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	tasks, err := quickTasks(c)
	if err != nil {
		return nil, err
	}
	return core.NewSession(client,
		core.WithLogger(logger(c)),
		core.WithQuickTasks(tasks),
		core.WithRunTimeout(c.Duration("run-timeout")),
		core.WithProbeTimeout(5*time.Second),
	)
}

func quickTasks(c *cli.Context) ([]core.QuickTask, error) {
	dir := c.String("state-dir")
	if dir == "" {
		return core.DefaultQuickTasks(), nil
	}
	return config.LoadQuickTasks(dir)
}

func logger(c *cli.Context) *slog.Logger {
	return logging.New(c.String("log-level"), c.App.ErrWriter)
}

func location(c *cli.Context) *time.Location {
	if c.Bool("utc") {
		return time.UTC
	}
	return time.Local
}
