// Package cli implements PulseBot's command-line surface: run, serve,
// chat, setup, init, and task subcommands over the shared bootstrap
// wiring in bootstrap.go.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	channelcli "github.com/timeplus-io/pulsebot/pkg/channel/cli"
	"github.com/timeplus-io/pulsebot/pkg/channel/httpapi"
	clicfg "github.com/timeplus-io/pulsebot/pkg/cli/config"
	"github.com/timeplus-io/pulsebot/pkg/config"
	"github.com/timeplus-io/pulsebot/pkg/stream/schema"
	"github.com/timeplus-io/pulsebot/pkg/utils/logging"
)

// Run builds and executes the pulsebot command-line app.
func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg clicfg.Logging
	var configPath string
	var closer func()

	app := &cli.Command{
		Name:    "pulsebot",
		Usage:   "a stream-mediated AI agent",
		Version: version,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Usage:       "path to the pulsebot YAML config file",
				Value:       "pulsebot.yaml",
				Sources:     cli.EnvVars("PULSEBOT_CONFIG"),
				Destination: &configPath,
			},
		}, loggerCfg.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f
			logging.Default().Info("starting pulsebot", "version", version)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdRun(&configPath),
			cmdServe(&configPath),
			cmdChat(&configPath),
			cmdSetup(&configPath),
			cmdInit(&configPath),
			cmdTask(&configPath),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("pulsebot exited with error", "error", err)
		return err
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load config", goerr.V("path", path))
	}
	return cfg, nil
}

// withSignalHandling returns a context canceled on SIGINT/SIGTERM.
func withSignalHandling(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func cmdRun(configPath *string) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the agent loop and any configured scheduled producers/channels",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			runCtx, cancel := withSignalHandling(ctx)
			defer cancel()

			a, err := newApp(runCtx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.stream.Close(); err != nil {
					logging.Default().Error("failed to close stream client", "error", err)
				}
			}()

			loop := a.buildLoop()
			sched := a.buildScheduler()
			channels, err := a.buildChannels()
			if err != nil {
				return err
			}

			errCh := make(chan error, 2+len(channels))
			go func() { errCh <- loop.Run(runCtx) }()
			go func() { errCh <- sched.Run(runCtx) }()
			for _, ch := range channels {
				ch := ch
				go func() { errCh <- ch.Run(runCtx) }()
			}

			select {
			case <-runCtx.Done():
				return nil
			case err := <-errCh:
				return err
			}
		},
	}
}

func cmdServe(configPath *string) *cli.Command {
	var addr string
	return &cli.Command{
		Name:  "serve",
		Usage: "start the HTTP/WebSocket façade alongside the agent loop",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "HTTP server address",
				Value:       ":8080",
				Sources:     cli.EnvVars("PULSEBOT_ADDR"),
				Destination: &addr,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			runCtx, cancel := withSignalHandling(ctx)
			defer cancel()

			a, err := newApp(runCtx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.stream.Close(); err != nil {
					logging.Default().Error("failed to close stream client", "error", err)
				}
			}()

			loop := a.buildLoop()
			sched := a.buildScheduler()
			facade := httpapi.New(a.stream)

			errCh := make(chan error, 3)
			go func() { errCh <- loop.Run(runCtx) }()
			go func() { errCh <- sched.Run(runCtx) }()
			go func() { errCh <- httpapi.Serve(runCtx, addr, facade.Mux()) }()

			select {
			case <-runCtx.Done():
				return nil
			case err := <-errCh:
				return err
			}
		},
	}
}

func cmdChat(configPath *string) *cli.Command {
	var userID string
	return &cli.Command{
		Name:  "chat",
		Usage: "open an interactive terminal chat session with the agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Usage:       "local operator identity recorded on every message",
				Value:       "local",
				Destination: &userID,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			runCtx, cancel := withSignalHandling(ctx)
			defer cancel()

			a, err := newApp(runCtx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.stream.Close(); err != nil {
					logging.Default().Error("failed to close stream client", "error", err)
				}
			}()

			loop := a.buildLoop()
			go func() {
				if err := loop.Run(runCtx); err != nil {
					logging.Default().Error("agent loop stopped", "error", err)
				}
			}()

			model := channelcli.New(a.stream, userID, cfg.Agent.Name)
			program := tea.NewProgram(model)
			_, err = program.Run()
			return err
		},
	}
}

func cmdSetup(configPath *string) *cli.Command {
	var verify bool
	return &cli.Command{
		Name:  "setup",
		Usage: "create (or verify) the five core streams the agent depends on",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "check that the streams exist and have the expected columns instead of creating them",
				Destination: &verify,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.stream.Close(); err != nil {
					logging.Default().Error("failed to close stream client", "error", err)
				}
			}()

			if verify {
				results, err := schema.VerifyStreams(ctx, a.stream)
				if err != nil {
					return err
				}
				var failed bool
				for name, verr := range results {
					if verr != nil {
						failed = true
						fmt.Printf("%-16s FAIL: %s\n", name, verr.Error())
						continue
					}
					fmt.Printf("%-16s OK\n", name)
				}
				if failed {
					return goerr.New("one or more streams failed verification")
				}
				return nil
			}

			return schema.CreateStreams(ctx, a.stream)
		},
	}
}

func cmdInit(configPath *string) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write a default pulsebot.yaml config file",
		Action: func(ctx context.Context, c *cli.Command) error {
			if _, err := os.Stat(*configPath); err == nil {
				return goerr.New("config file already exists, refusing to overwrite", goerr.V("path", *configPath))
			}
			if err := config.Write(*configPath, config.Default()); err != nil {
				return err
			}
			fmt.Printf("wrote default config to %s\n", *configPath)
			return nil
		},
	}
}

func cmdTask(configPath *string) *cli.Command {
	return &cli.Command{
		Name:  "task",
		Usage: "inspect configured scheduled tasks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list every scheduled task and whether it is enabled",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig(*configPath)
					if err != nil {
						return err
					}
					for name, task := range cfg.ScheduledTasks {
						schedule := task.Interval
						if task.Cron != "" {
							schedule = task.Cron
						}
						status := "disabled"
						if task.Enabled {
							status = "enabled"
						}
						fmt.Printf("%-16s %-10s %s\n", name, status, schedule)
					}
					return nil
				},
			},
		},
	}
}
