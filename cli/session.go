package cli

// This file contains the run command, which drives a dashboard session on
// the real-time event loop.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/perfgo/chaosplay/dashboard"
	"github.com/perfgo/chaosplay/eventloop"
	"github.com/perfgo/chaosplay/media"
	"github.com/perfgo/chaosplay/media/sim"
	"github.com/perfgo/chaosplay/metric"
	"github.com/perfgo/chaosplay/model"
	"github.com/urfave/cli/v2"
)

func (a *App) runSession(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	if d := ctx.Duration("duration"); d > 0 {
		cfg.TotalDuration = d
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	presets := ctx.StringSlice("preset")
	source := ctx.String("source")
	refresh := ctx.Duration("refresh")
	if refresh <= 0 {
		refresh = time.Second
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt)
	defer stop()

	loop := eventloop.New(a.logger)
	loopErr := make(chan error, 1)
	go func() {
		loopErr <- loop.Run(runCtx)
	}()

	simOpts := cfg.Sim()
	d := dashboard.New(a.logger, loop, func(run model.Run) media.Element {
		return sim.New(a.logger.With().Str("run", run.ID).Logger(), loop, simOpts)
	}, cfg.Lifecycle())

	requests := buildRequests(presets, source, ctx.String("name"))
	var createErr error
	if err := loop.Do(runCtx, func() {
		for _, req := range requests {
			if _, err := d.CreateRun(req); err != nil {
				createErr = err
				return
			}
		}
	}); err != nil {
		return fmt.Errorf("failed to create runs: %w", err)
	}
	if createErr != nil {
		stop()
		<-loopErr
		d.Close()
		return createErr
	}

	a.logger.Info().
		Int("runs", len(requests)).
		Dur("duration", cfg.TotalDuration).
		Msg("Session started")

	interrupted := a.follow(runCtx, loop, d, refresh)

	// The loop is stopped before teardown so no callback races with it.
	stop()
	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Warn().Err(err).Msg("Event loop stopped unexpectedly")
	}
	d.Close()

	runs := d.Runs()
	if interrupted {
		a.logger.Warn().Msg("Session interrupted, summary is partial")
	}
	renderSummary(a.out, runs)

	if ctx.Bool("metrics") {
		reg, err := metric.NewRegistry(d)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out)
		if err := metric.WriteText(a.out, reg); err != nil {
			return err
		}
	}

	if ctx.Bool("command") {
		fmt.Fprintf(a.out, "\nReproduce: %s\n", BuildRunCommand(RunOptions{
			Config:   ctx.String("config"),
			Presets:  presets,
			Source:   source,
			Name:     ctx.String("name"),
			Duration: ctx.Duration("duration"),
		}))
	}
	return nil
}

// follow redraws the dashboard until every run settled. It reports whether
// the session was interrupted first.
func (a *App) follow(ctx context.Context, loop *eventloop.Loop, d *dashboard.Dashboard, refresh time.Duration) bool {
	ticker := time.NewTicker(refresh)
	defer ticker.Stop()

	for {
		var listing dashboard.Listing
		var settled bool
		if err := loop.Do(ctx, func() {
			listing = d.ListRuns()
			settled = d.Settled()
		}); err != nil {
			return true
		}

		renderDashboard(a.out, listing, time.Now())
		if settled {
			return false
		}

		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
		}
	}
}

// buildRequests creates one request per preset. A name prefix is suffixed
// with the preset key so runs stay distinguishable.
func buildRequests(presets []string, source, name string) []dashboard.RunRequest {
	if len(presets) == 0 {
		presets = []string{model.PresetBaseline}
	}
	requests := make([]dashboard.RunRequest, 0, len(presets))
	for _, key := range presets {
		req := dashboard.RunRequest{SourceURI: source, PresetKey: key}
		if name != "" {
			req.DisplayName = name
			if len(presets) > 1 {
				req.DisplayName = fmt.Sprintf("%s (%s)", name, key)
			}
		}
		requests = append(requests, req)
	}
	return requests
}
