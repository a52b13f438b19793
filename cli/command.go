package cli

// command.go contains utilities for building reproducible run commands.

import (
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
)

// RunOptions describes a run session on the command line.
type RunOptions struct {
	Config   string        // Config file passed with --config
	Presets  []string      // Presets, one run each
	Source   string        // Media source URI
	Name     string        // Display name prefix
	Duration time.Duration // Duration override, zero keeps the config value
}

// BuildRunArgs builds the arguments of a run session, without the program
// name.
func BuildRunArgs(opts RunOptions) []string {
	var args []string

	// Global flags come before the command
	if opts.Config != "" {
		args = append(args, "--config", opts.Config)
	}
	args = append(args, "run")

	for _, preset := range opts.Presets {
		args = append(args, "--preset", strings.TrimSpace(preset))
	}
	if opts.Source != "" {
		args = append(args, "--source", opts.Source)
	}
	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.Duration > 0 {
		args = append(args, "--duration", opts.Duration.String())
	}

	return args
}

// BuildRunCommand builds the command string for a run session.
// It reuses BuildRunArgs and joins the arguments with proper shell escaping.
func BuildRunCommand(opts RunOptions) string {
	args := BuildRunArgs(opts)

	// Build command with proper shell escaping
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, AppName)

	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}

	return strings.Join(parts, " ")
}
