package sinks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mwhittaker87/clearcrawl/internal/progress"
)

// Prometheus exposes crawl counters and timings on a registry.
type Prometheus struct {
	cycles      prometheus.Counter
	zipOutcomes *prometheus.CounterVec
	rows        *prometheus.CounterVec
	quarantined *prometheus.CounterVec
	alerts      *prometheus.CounterVec
	zipDuration prometheus.Histogram
}

// NewPrometheus registers the crawl metrics on reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	s := &Prometheus{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clearcrawl",
			Name:      "cycles_total",
			Help:      "Completed crawl cycles.",
		}),
		zipOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearcrawl",
			Name:      "zip_outcomes_total",
			Help:      "Per-ZIP crawl outcomes by reason.",
		}, []string{"outcome", "reason"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearcrawl",
			Name:      "rows_harvested_total",
			Help:      "Product rows harvested per ZIP.",
		}, []string{"zip"}),
		quarantined: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearcrawl",
			Name:      "quarantined_total",
			Help:      "Harvested rows rejected by validation, by reason.",
		}, []string{"reason"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clearcrawl",
			Name:      "alerts_total",
			Help:      "Alerts fired by the transition rules, by type.",
		}, []string{"type"}),
		zipDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clearcrawl",
			Name:      "zip_duration_seconds",
			Help:      "Wall time to crawl one ZIP.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
	}
	reg.MustRegister(s.cycles, s.zipOutcomes, s.rows, s.quarantined, s.alerts, s.zipDuration)
	return s
}

// Observe implements progress.Sink.
func (s *Prometheus) Observe(ev progress.Event) {
	switch ev.Stage {
	case progress.StageCycleDone:
		s.cycles.Inc()
	case progress.StageZipDone:
		s.zipOutcomes.WithLabelValues("ok", "").Inc()
		s.zipDuration.Observe(ev.Dur.Seconds())
	case progress.StageZipError:
		s.zipOutcomes.WithLabelValues("error", ev.Reason).Inc()
		s.zipDuration.Observe(ev.Dur.Seconds())
	case progress.StageHarvestDone:
		s.rows.WithLabelValues(ev.Zip).Add(float64(ev.Rows))
	case progress.StageQuarantined:
		s.quarantined.WithLabelValues(ev.Reason).Inc()
	case progress.StageAlertEmitted:
		s.alerts.WithLabelValues(ev.Reason).Inc()
	}
}
