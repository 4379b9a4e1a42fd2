package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the counters of one burstkit process. Each instance owns its
// registry so tests and the server never collide on global registration.
type Metrics struct {
	Registry *prometheus.Registry

	Files               prometheus.Counter
	Lines               *prometheus.CounterVec
	BurstsWritten       prometheus.Counter
	RowsRead            prometheus.Counter
	AnnotationsDeleted  prometheus.Counter
	AnnotationsInserted prometheus.Counter
	RunDuration         *prometheus.GaugeVec
	Requests            *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Files: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstkit_files_total",
			Help: "Burst window files processed",
		}),
		Lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstkit_lines_total",
				Help: "Burst window lines scanned, by parse result",
			},
			[]string{"result"},
		),
		BurstsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstkit_bursts_written_total",
			Help: "Burst rows written to CSV",
		}),
		RowsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstkit_annotation_rows_read_total",
			Help: "Annotation rows read from input files",
		}),
		AnnotationsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstkit_annotations_deleted_total",
			Help: "Annotations removed when replacing a series",
		}),
		AnnotationsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "burstkit_annotations_inserted_total",
			Help: "Annotations inserted when replacing a series",
		}),
		RunDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "burstkit_run_duration_seconds",
				Help: "Wall time of the last run",
			},
			[]string{"job"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "burstkit_http_requests_total",
				Help: "HTTP requests served, by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.Registry.MustRegister(
		m.Files,
		m.Lines,
		m.BurstsWritten,
		m.RowsRead,
		m.AnnotationsDeleted,
		m.AnnotationsInserted,
		m.RunDuration,
		m.Requests,
	)
	return m
}

// RegisterRuntime adds the Go runtime and process collectors. Only the
// long-running server calls it; pushed job metrics stay free of them.
func (m *Metrics) RegisterRuntime() error {
	if err := m.Registry.Register(collectors.NewGoCollector()); err != nil {
		return fmt.Errorf("registering go collector: %w", err)
	}
	if err := m.Registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return fmt.Errorf("registering process collector: %w", err)
	}
	return nil
}

// ObserveLines adds one parsed file's line counts.
func (m *Metrics) ObserveLines(matched, skipped int) {
	m.Files.Inc()
	m.Lines.WithLabelValues("matched").Add(float64(matched))
	m.Lines.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveRun records how long a job took.
func (m *Metrics) ObserveRun(job string, d time.Duration) {
	m.RunDuration.WithLabelValues(job).Set(d.Seconds())
}

// Push sends the registry to a Prometheus Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(m.Registry).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
