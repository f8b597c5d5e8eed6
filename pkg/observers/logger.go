package observers

import (
	"context"
	"log/slog"

	"github.com/harunnryd/signbridge/pkg/metrics"
)

// LoggerObserver turns session events into log records named after the event.
// Transport and device failures are warnings; the rest is debug chatter.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (o *LoggerObserver) RecordEvent(ev metrics.MetricsEvent) {
	level := slog.LevelDebug
	if ev.IsError() {
		level = slog.LevelWarn
	}
	ctx := context.Background()
	if !o.log.Enabled(ctx, level) {
		return
	}
	attrs := []slog.Attr{slog.Time("at", ev.Time)}
	if ev.Value != 0 {
		attrs = append(attrs, slog.Float64("value", ev.Value))
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range redactFields(ev.Fields) {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.log.LogAttrs(ctx, level, ev.Name, attrs...)
}

// MultiObserver fans one event out to every member in order. It is built once
// before events flow and is not safe for Add during RecordEvent.
type MultiObserver []metrics.Observer

func NewMultiObserver(list ...metrics.Observer) *MultiObserver {
	m := MultiObserver{}
	for _, obs := range list {
		m.Add(obs)
	}
	return &m
}

func (m *MultiObserver) Add(obs metrics.Observer) {
	if obs != nil {
		*m = append(*m, obs)
	}
}

func (m *MultiObserver) RecordEvent(ev metrics.MetricsEvent) {
	for _, obs := range *m {
		obs.RecordEvent(ev)
	}
}
