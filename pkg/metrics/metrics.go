package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// HistogramBuckets are in milliseconds. Lifecycle steps shell out to git and
// pg_dump, so the upper end reaches the command timeout.
var HistogramBuckets = []float64{
	// --- HTTP and metadata queries (0 - 500ms) ---
	25, 50, 100, 200, 300, 500,

	// --- DDL and file copies (500ms - 10s) ---
	1000, 2000, 3000, 5000, 7500, 10000,

	// --- git push, hosting API, dumps (10s - 5m) ---
	15000, 30000, 60000, 120000, 180000, 300000,
}

// Metric describes one collector; Type is counter_vec, histogram_vec or
// summary_vec.
type Metric struct {
	Name        string
	Description string
	Type        string
	Args        []string
}

// NewMetric builds the collector described by m.
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "histogram_vec":
		return prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "summary_vec":
		return prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	}
	panic(fmt.Sprintf("metrics: unsupported type %q for %s", m.Type, m.Name))
}

// MetricsBusinessProcess times lifecycle steps; type is the operation
// (provision, plan_change, delete...), subtype the step.
var MetricsBusinessProcess = &Metric{
	Name:        "bp_dur",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

// MetricsProvisionTotal counts finished lifecycle operations by outcome.
var MetricsProvisionTotal = &Metric{
	Name:        "provision_total",
	Description: "How many lifecycle operations finished, partitioned by kind and outcome.",
	Type:        "counter_vec",
	Args:        []string{"kind", "outcome"},
}

const (
	RefererKey = "X-Referer"
)
