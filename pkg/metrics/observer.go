// Package metrics carries session telemetry as a stream of events that
// observers fan out to logs, timelines and Prometheus.
package metrics

import "time"

// Event names emitted by a session.
const (
	EventSessionStarted = "session_started"
	EventSessionStopped = "session_stopped"
	EventTransportOpen  = "transport_open"
	EventFrameOut       = "frame_out"
	EventFrameSkipped   = "frame_skipped"
	EventInbound        = "inbound"
	EventInboundDropped = "inbound_dropped"
	EventTransportError = "transport_error"
	EventDeviceError    = "device_error"
)

// Tag keys.
const (
	TagSessionID = "session_id"
	TagMode      = "mode"
	TagKind      = "kind"
	TagReason    = "reason"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// NewEvent stamps an event for one session.
func NewEvent(name, sessionID, mode string) MetricsEvent {
	return MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{TagSessionID: sessionID, TagMode: mode},
	}
}

// With returns ev with an extra tag.
func (ev MetricsEvent) With(key, value string) MetricsEvent {
	tags := make(map[string]string, len(ev.Tags)+1)
	for k, v := range ev.Tags {
		tags[k] = v
	}
	tags[key] = value
	ev.Tags = tags
	return ev
}

// IsError reports whether the event describes a failure.
func (ev MetricsEvent) IsError() bool {
	switch ev.Name {
	case EventTransportError, EventDeviceError, EventInboundDropped:
		return true
	}
	return false
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

// NoopObserver discards events.
type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
