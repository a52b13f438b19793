package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/perfgo/chaosplay/config"
	"github.com/perfgo/chaosplay/model"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "chaosplay"

// Served by Mux for player testing; any playable URL works.
const defaultSource = "https://test-streams.mux.dev/x36xhzz/x36xhzz.m3u8"

type App struct {
	logger zerolog.Logger
	out    io.Writer
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		out:    os.Stdout,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Run simulated playback reliability tests under injected faults",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "YAML file with session settings",
					EnvVars: []string{"CHAOSPLAY_CONFIG"},
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "run",
		Usage:  "Create test runs and follow them until they finish",
		Action: app.runSession,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "preset",
				Aliases: []string{"p"},
				Usage:   "Preset to run (can be specified multiple times)",
				Value:   cli.NewStringSlice(model.PresetBaseline),
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Media source URI every run plays",
				Value:   defaultSource,
			},
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Display name prefix (default: the preset name)",
			},
			&cli.DurationFlag{
				Name:    "duration",
				Aliases: []string{"d"},
				Usage:   "Nominal playback length of each run (overrides the config)",
			},
			&cli.DurationFlag{
				Name:  "refresh",
				Usage: "Interval between dashboard redraws",
				Value: time.Second,
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Print the final metrics in Prometheus text format",
			},
			&cli.BoolFlag{
				Name:  "command",
				Usage: "Print a command line that reproduces this session",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "presets",
		Usage:  "List the available chaos presets",
		Action: app.presets,
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		if len(commit) > 8 {
			commit = commit[:8]
		}
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	}
}

// loadConfig reads --config and applies its log level unless --verbose
// already raised it.
func (a *App) loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg, err := config.Load(ctx.String("config"))
	if err != nil {
		return config.Config{}, err
	}
	if !ctx.Bool("verbose") {
		level, err := cfg.Level()
		if err != nil {
			return config.Config{}, err
		}
		zerolog.SetGlobalLevel(level)
	}
	return cfg, nil
}
