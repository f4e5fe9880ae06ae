// Package sinks provides the stock progress.Sink implementations.
package sinks

import (
	"go.uber.org/zap"

	"github.com/mwhittaker87/clearcrawl/internal/progress"
)

// Log writes every event as a structured log line.
type Log struct {
	log *zap.Logger
}

// NewLog constructs a Log sink.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("progress")}
}

// Observe implements progress.Sink.
func (s *Log) Observe(ev progress.Event) {
	fields := []zap.Field{
		zap.String("cycle_id", ev.CycleID.String()),
		zap.String("stage", string(ev.Stage)),
	}
	if ev.Zip != "" {
		fields = append(fields, zap.String("zip", ev.Zip))
	}
	if ev.Category != "" {
		fields = append(fields, zap.String("category", ev.Category))
	}
	if ev.Rows > 0 {
		fields = append(fields, zap.Int("rows", ev.Rows))
	}
	if ev.Dur > 0 {
		fields = append(fields, zap.Duration("dur", ev.Dur))
	}
	if ev.Reason != "" {
		fields = append(fields, zap.String("reason", ev.Reason))
	}
	if ev.Note != "" {
		fields = append(fields, zap.String("note", ev.Note))
	}

	if ev.Stage == progress.StageZipError {
		s.log.Warn("crawl progress", fields...)
		return
	}
	s.log.Info("crawl progress", fields...)
}
