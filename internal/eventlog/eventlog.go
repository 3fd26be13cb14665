// Package eventlog records an audit trail of the mutations the core performs
// against the scheduling backend. Recording never fails the caller: a sink
// that cannot write logs the problem and moves on.
package eventlog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Event struct {
	Type          string
	AppointmentID string
	ActorID       string
	Payload       map[string]any
	CreatedAt     time.Time
}

type Sink interface {
	Record(ctx context.Context, ev Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}

// LogSink writes events as structured log lines.
type LogSink struct {
	log *logrus.Logger
}

func NewLogSink(log *logrus.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Record(_ context.Context, ev Event) {
	fields := logrus.Fields{"event_type": ev.Type}
	if ev.AppointmentID != "" {
		fields["appointment_id"] = ev.AppointmentID
	}
	if ev.ActorID != "" {
		fields["actor_id"] = ev.ActorID
	}
	for k, v := range ev.Payload {
		fields[k] = v
	}
	s.log.WithFields(fields).Info("core event")
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Record(ctx context.Context, ev Event) {
	for _, s := range m {
		s.Record(ctx, ev)
	}
}
