// Package metrics exports per-run gauges in the node_exporter textfile format,
// which suits a tool that is started by cron and exits.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the gauges of one process.
type Recorder struct {
	reg            *prometheus.Registry
	lastRun        prometheus.Gauge
	lastChange     prometheus.Gauge
	changed        prometheus.Gauge
	success        prometheus.Gauge
	clauses        prometheus.Gauge
	candidates     prometheus.Gauge
	skipped        *prometheus.GaugeVec
	denyAllClauses prometheus.Gauge
}

// Run is the outcome of one sync cycle.
type Run struct {
	Time             time.Time
	Success          bool
	Changed          bool
	Candidates       int
	Clauses          int
	MissingAddress   int
	MissingMapping   int
	EmptyPrefixUsers int
}

// New registers the peerlab_bird_* gauges on a private registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_last_run_timestamp_seconds", Help: "Unix time of the last sync cycle.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_last_change_timestamp_seconds", Help: "Unix time the output file was last replaced by this process.",
		}),
		changed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_config_changed", Help: "1 if the last cycle replaced the output file.",
		}),
		success: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_last_run_success", Help: "1 if the last cycle completed without a fatal error.",
		}),
		clauses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_policy_clauses", Help: "Per-user clauses in the generated policy.",
		}),
		candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_candidate_nodes", Help: "Nodes bound to a user with an email.",
		}),
		skipped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "peerlab_bird_skipped_nodes", Help: "Candidate nodes without a clause, by reason.",
		}, []string{"reason"}),
		denyAllClauses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "peerlab_bird_deny_all_clauses", Help: "Clauses for users without authorized prefixes.",
		}),
	}
	r.reg.MustRegister(r.lastRun, r.lastChange, r.changed, r.success, r.clauses, r.candidates, r.skipped, r.denyAllClauses)
	return r
}

// Observe updates the gauges from run.
func (r *Recorder) Observe(run Run) {
	r.lastRun.Set(float64(run.Time.Unix()))
	r.success.Set(boolGauge(run.Success))
	if !run.Success {
		return
	}
	r.changed.Set(boolGauge(run.Changed))
	if run.Changed {
		r.lastChange.Set(float64(run.Time.Unix()))
	}
	r.candidates.Set(float64(run.Candidates))
	r.clauses.Set(float64(run.Clauses))
	r.skipped.WithLabelValues("no_address").Set(float64(run.MissingAddress))
	r.skipped.WithLabelValues("no_mapping").Set(float64(run.MissingMapping))
	r.denyAllClauses.Set(float64(run.EmptyPrefixUsers))
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile atomically writes the registry to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
