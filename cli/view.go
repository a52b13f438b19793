package cli

// This file renders the dashboard and the end-of-session summary.

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/perfgo/chaosplay/dashboard"
	"github.com/perfgo/chaosplay/model"
)

const progressWidth = 20

func statusBadge(st model.Status) string {
	switch st {
	case model.StatusPending:
		return "… pending"
	case model.StatusRunning:
		return "▶ running"
	case model.StatusCompleted:
		return "✓ completed"
	case model.StatusFailed:
		return "✗ failed"
	default:
		return "? " + string(st)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTTFF(ttff *time.Duration) string {
	if ttff == nil {
		return "-"
	}
	return ttff.Round(time.Millisecond).String()
}

func progressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// elapsed is the run's wall time so far, or its final duration once cleaned
// up.
func elapsed(run model.Run, now time.Time) time.Duration {
	if run.StartTime.IsZero() {
		return 0
	}
	end := now
	if !run.EndTime.IsZero() {
		end = run.EndTime
	}
	return end.Sub(run.StartTime).Round(100 * time.Millisecond)
}

func renderDashboard(w io.Writer, listing dashboard.Listing, now time.Time) {
	total := len(listing.Pinned) + len(listing.Active)
	fmt.Fprintf(w, "\n=== Dashboard (%d runs) %s ===\n\n", total, now.Format("15:04:05"))

	if total == 0 {
		fmt.Fprintln(w, "No runs")
		return
	}

	if len(listing.Pinned) > 0 {
		chips := make([]string, 0, len(listing.Pinned))
		for _, run := range listing.Pinned {
			chips = append(chips, fmt.Sprintf("[%s %s]", statusBadge(run.Status), run.Config.Name))
		}
		fmt.Fprintf(w, "Pinned: %s\n\n", strings.Join(chips, " "))
	}

	for _, run := range listing.Active {
		m := run.Metrics
		fmt.Fprintf(w, "%-12s %s  id=%s  preset=%s\n", statusBadge(run.Status), run.Config.Name, shortID(run.ID), run.Config.Preset.Key)
		fmt.Fprintf(w, "   Source: %s\n", run.Config.SourceURI)
		fmt.Fprintf(w, "   TTFF: %s  Rebuffers: %d (%.1fs)  Errors: %d\n",
			formatTTFF(m.TTFF), m.RebufferCount, m.RebufferSeconds(), m.ErrorCount)
		fmt.Fprintf(w, "   Progress: %s %5.1f%%  Elapsed: %s\n",
			progressBar(m.PlaybackPercent, progressWidth), m.PlaybackPercent, elapsed(run, now))
		fmt.Fprintln(w)
	}
}

func renderSummary(w io.Writer, runs []model.Run) {
	counts := map[model.Status]int{}
	for _, run := range runs {
		counts[run.Status]++
	}

	fmt.Fprintf(w, "\n=== Summary (%d runs) ===\n\n", len(runs))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tNAME\tPRESET\tTTFF\tREBUFFERS\tREBUFFER TIME\tERRORS\tPROGRESS")
	for _, run := range runs {
		m := run.Metrics
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.1fs\t%d\t%.1f%%\n",
			statusBadge(run.Status), run.Config.Name, run.Config.Preset.Key,
			formatTTFF(m.TTFF), m.RebufferCount, m.RebufferSeconds(), m.ErrorCount, m.PlaybackPercent)
	}
	tw.Flush()

	fmt.Fprintf(w, "\ncompleted=%d failed=%d unfinished=%d\n",
		counts[model.StatusCompleted], counts[model.StatusFailed],
		counts[model.StatusPending]+counts[model.StatusRunning])
}
