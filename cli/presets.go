package cli

// This file contains the presets command for listing the chaos presets.

import (
	"fmt"
	"io"

	"github.com/perfgo/chaosplay/model"
	"github.com/urfave/cli/v2"
)

func (a *App) presets(ctx *cli.Context) error {
	renderPresets(a.out, model.Presets())
	return nil
}

func renderPresets(w io.Writer, presets []model.Preset) {
	fmt.Fprintf(w, "\n=== Presets (%d total) ===\n\n", len(presets))

	for _, p := range presets {
		// Chaos indicator
		marker := " "
		if p.Category.Injects() {
			marker = "⚡"
		}

		fmt.Fprintf(w, "%s %-12s %s\n", marker, p.Key, p.Name)
		if p.Description != "" {
			fmt.Fprintf(w, "   %s\n", p.Description)
		}
		fmt.Fprintf(w, "   Startup delay: %s\n", p.StartupDelay)
		if p.Category.Injects() {
			fmt.Fprintf(w, "   Chaos: %s, fault probability %.0f%%\n", p.Category, p.FaultProbability*100)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Run a preset: %s run --preset <key>\n", AppName)
}
