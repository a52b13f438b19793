// Package metric exposes dashboard runs as Prometheus metrics.
package metric

import (
	"bytes"
	"fmt"
	"io"

	"github.com/perfgo/chaosplay/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

const namespace = "chaosplay"

// Source lists the runs to report.
type Source interface {
	Runs() []model.Run
}

var runLabels = []string{"run_id", "name", "preset"}

// Collector reads the run list on every scrape, so removed runs disappear
// without bookkeeping.
type Collector struct {
	source Source

	ttff         *prometheus.Desc
	rebuffers    *prometheus.Desc
	rebufferSecs *prometheus.Desc
	errors       *prometheus.Desc
	playback     *prometheus.Desc
	status       *prometheus.Desc
	durationSecs *prometheus.Desc
	runsByStatus *prometheus.Desc
}

func NewCollector(source Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "run", name), help, labels, nil)
	}
	return &Collector{
		source:       source,
		ttff:         desc("ttff_seconds", "Time from activation to first rendered frame.", runLabels...),
		rebuffers:    desc("rebuffers", "Number of rebuffer events.", runLabels...),
		rebufferSecs: desc("rebuffer_seconds", "Accumulated time spent rebuffering.", runLabels...),
		errors:       desc("errors", "Number of media errors.", runLabels...),
		playback:     desc("playback_percent", "Playback progress against the nominal duration.", runLabels...),
		status:       desc("status", "Current lifecycle status, 1 for the active status.", "run_id", "name", "preset", "status"),
		durationSecs: desc("duration_seconds", "Wall time between start and cleanup of finished runs.", runLabels...),
		runsByStatus: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "runs"), "Number of runs per status.", []string{"status"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.ttff
	ch <- c.rebuffers
	ch <- c.rebufferSecs
	ch <- c.errors
	ch <- c.playback
	ch <- c.status
	ch <- c.durationSecs
	ch <- c.runsByStatus
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	counts := map[model.Status]int{}
	for _, st := range model.Statuses() {
		counts[st] = 0
	}

	for _, run := range c.source.Runs() {
		counts[run.Status]++
		gauge := func(d *prometheus.Desc, v float64, extra ...string) {
			labels := append([]string{run.ID, run.Config.Name, run.Config.Preset.Key}, extra...)
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
		}

		m := run.Metrics
		if m.TTFF != nil {
			gauge(c.ttff, m.TTFF.Seconds())
		}
		gauge(c.rebuffers, float64(m.RebufferCount))
		gauge(c.rebufferSecs, m.RebufferSeconds())
		gauge(c.errors, float64(m.ErrorCount))
		gauge(c.playback, m.PlaybackPercent)
		for _, st := range model.Statuses() {
			v := 0.0
			if run.Status == st {
				v = 1
			}
			gauge(c.status, v, string(st))
		}
		if !run.StartTime.IsZero() && !run.EndTime.IsZero() {
			gauge(c.durationSecs, run.EndTime.Sub(run.StartTime).Seconds())
		}
	}

	for _, st := range model.Statuses() {
		ch <- prometheus.MustNewConstMetric(c.runsByStatus, prometheus.GaugeValue, float64(counts[st]), string(st))
	}
}

// WriteText gathers g and writes it in the Prometheus text exposition
// format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("failed to encode metric family %s: %w", mf.GetName(), err)
		}
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// NewRegistry returns a registry holding only the run collector.
func NewRegistry(source Source) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(source)); err != nil {
		return nil, fmt.Errorf("failed to register run collector: %w", err)
	}
	return reg, nil
}
