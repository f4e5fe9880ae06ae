package sinks

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mwhittaker87/clearcrawl/internal/progress"
)

func TestPrometheusSinkCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewPrometheus(reg)

	s.Observe(progress.Event{Stage: progress.StageZipDone, Dur: 30 * time.Second})
	s.Observe(progress.Event{Stage: progress.StageZipError, Reason: "store_context", Dur: 5 * time.Second})
	s.Observe(progress.Event{Stage: progress.StageHarvestDone, Zip: "97301", Rows: 42})
	s.Observe(progress.Event{Stage: progress.StageQuarantined, Reason: "invalid_price_format"})
	s.Observe(progress.Event{Stage: progress.StageAlertEmitted, Reason: "new_clearance"})
	s.Observe(progress.Event{Stage: progress.StageAlertEmitted, Reason: "price_drop"})
	s.Observe(progress.Event{Stage: progress.StageCycleDone})

	assert.Equal(t, 1.0, testutil.ToFloat64(s.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.zipOutcomes.WithLabelValues("ok", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.zipOutcomes.WithLabelValues("error", "store_context")))
	assert.Equal(t, 42.0, testutil.ToFloat64(s.rows.WithLabelValues("97301")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.quarantined.WithLabelValues("invalid_price_format")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.alerts.WithLabelValues("new_clearance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.alerts.WithLabelValues("price_drop")))
}

func TestLogSinkLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	s := NewLog(zap.New(core))

	s.Observe(progress.Event{Stage: progress.StageZipDone, Zip: "97301", Rows: 7})
	s.Observe(progress.Event{Stage: progress.StageZipError, Zip: "98501", Reason: "page_load"})

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, "98501", entries[1].ContextMap()["zip"])
	assert.Equal(t, "page_load", entries[1].ContextMap()["reason"])
}
