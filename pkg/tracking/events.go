package tracking

import (
	"log/slog"
	"time"
)

// EventKind identifies a lifecycle or diagnostic event.
type EventKind string

// Event kinds.
const (
	EventStarted              EventKind = "started"
	EventStopped              EventKind = "stopped"
	EventInitializationFailed EventKind = "initialization_failed"
	EventCaptureFailed        EventKind = "capture_failed"
	EventEstimationFailed     EventKind = "estimation_failed"
)

// Event is reported for every session transition and failure.
type Event struct {
	Kind    EventKind `json:"kind"`
	Session string    `json:"session,omitempty"`
	Variant string    `json:"variant,omitempty"`
	Err     error     `json:"-"`
	Time    time.Time `json:"time"`
}

// Message returns the error text, or "" for events without an error.
func (e Event) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Reporter receives tracking events. Report is called synchronously from
// the goroutine that produced the event and must not block.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report calls f(e).
func (f ReporterFunc) Report(e Event) { f(e) }

// LogReporter writes events to a slog logger.
type LogReporter struct {
	Logger *slog.Logger
}

// Report logs e. Estimation failures go to debug; they are expected noise.
func (r LogReporter) Report(e Event) {
	args := []any{"session", e.Session, "variant", e.Variant}
	if e.Err != nil {
		args = append(args, "error", e.Err)
	}
	switch e.Kind {
	case EventStarted:
		r.Logger.Info("pose tracking started", args...)
	case EventStopped:
		r.Logger.Info("pose tracking stopped", args...)
	case EventInitializationFailed:
		r.Logger.Error("pose model initialization failed", args...)
	case EventCaptureFailed:
		r.Logger.Error("camera capture failed", args...)
	case EventEstimationFailed:
		r.Logger.Debug("pose estimation failed", args...)
	}
}
