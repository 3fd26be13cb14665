// Package readiness decides whether a participant may join a video call. The
// evaluation is a pure function of its inputs; the Watcher re-runs it on a
// timer and whenever a room notification arrives.
package readiness

import (
	"context"
	"time"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
)

type State string

const (
	StateNotOnline      State = "NOT_ONLINE"
	StateTooEarly       State = "TOO_EARLY"
	StateWaitingForHost State = "WAITING_FOR_HOST"
	StateReady          State = "READY"
)

const DefaultJoinWindow = 5 * time.Minute

// RoomExistenceProbe answers whether the host has opened the call room.
type RoomExistenceProbe interface {
	RoomExists(ctx context.Context, appointmentID string) (bool, error)
}

// RoomNotifier pushes a signal when a room is created. The channel closes
// when ctx ends or the subscription fails.
type RoomNotifier interface {
	RoomCreated(ctx context.Context, appointmentID string) (<-chan struct{}, error)
}

type Input struct {
	Modality    appointment.Modality
	ScheduledAt time.Time
	RoomExists  bool
}

type Result struct {
	State             State `json:"state"`
	MinutesUntilStart int   `json:"minutesUntilStart,omitempty"`
	CanJoin           bool  `json:"canJoin"`
}

// Terminal reports whether no later evaluation can change the outcome.
func (r Result) Terminal() bool {
	return r.State == StateNotOnline || r.State == StateReady
}

type Evaluator struct {
	JoinWindow time.Duration
}

func Evaluate(in Input, now time.Time) Result {
	return Evaluator{JoinWindow: DefaultJoinWindow}.Evaluate(in, now)
}

func (e Evaluator) Evaluate(in Input, now time.Time) Result {
	if !in.Modality.IsOnline() {
		return Result{State: StateNotOnline}
	}
	if in.RoomExists {
		return Result{State: StateReady, CanJoin: true}
	}

	window := e.JoinWindow
	if window <= 0 {
		window = DefaultJoinWindow
	}
	if now.Before(in.ScheduledAt.Add(-window)) {
		return Result{State: StateTooEarly, MinutesUntilStart: ceilMinutes(in.ScheduledAt.Sub(now))}
	}
	return Result{State: StateWaitingForHost}
}

func ceilMinutes(d time.Duration) int {
	m := int(d / time.Minute)
	if d%time.Minute > 0 {
		m++
	}
	return m
}

// ForAppointment builds the evaluator input from a loaded appointment.
func ForAppointment(a appointment.Appointment, roomExists bool) Input {
	return Input{Modality: a.Modality, ScheduledAt: a.ScheduledAt, RoomExists: roomExists}
}
