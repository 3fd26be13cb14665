package readiness

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/fence"
)

const DefaultPollInterval = 15 * time.Second

// Watcher re-evaluates readiness for one appointment at a time. Retargeting
// with Watch discards any in-flight probe result for the previous target.
type Watcher struct {
	probe     RoomExistenceProbe
	notifier  RoomNotifier
	evaluator Evaluator
	interval  time.Duration
	now       func() time.Time
	log       *logrus.Logger

	fence fence.Fence
	mu    sync.Mutex
	last  Result
}

type WatcherConfig struct {
	Probe      RoomExistenceProbe
	Notifier   RoomNotifier // optional
	JoinWindow time.Duration
	Interval   time.Duration
	Now        func() time.Time
	Log        *logrus.Logger
}

func NewWatcher(cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Watcher{
		probe:     cfg.Probe,
		notifier:  cfg.Notifier,
		evaluator: Evaluator{JoinWindow: cfg.JoinWindow},
		interval:  cfg.Interval,
		now:       cfg.Now,
		log:       cfg.Log,
	}
}

// Check probes once and evaluates. An appointment that already carries a
// video room id skips the probe. A probe error is returned alongside a
// result computed as if the room did not exist yet.
func (w *Watcher) Check(ctx context.Context, a appointment.Appointment) (Result, error) {
	if !a.Modality.IsOnline() {
		return w.evaluator.Evaluate(ForAppointment(a, false), w.now()), nil
	}
	if a.VideoRoomID != "" {
		return w.evaluator.Evaluate(ForAppointment(a, true), w.now()), nil
	}
	exists, err := w.probe.RoomExists(ctx, a.ID)
	return w.evaluator.Evaluate(ForAppointment(a, exists), w.now()), err
}

// Watch evaluates a immediately, then on every tick and room notification,
// calling onChange whenever the result differs from the previous one. It
// returns when the state is terminal, ctx ends, or a newer Watch call
// supersedes this one.
func (w *Watcher) Watch(ctx context.Context, a appointment.Appointment, onChange func(Result)) error {
	token := w.fence.Next()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var notify <-chan struct{}
	if w.notifier != nil && a.Modality.IsOnline() {
		ch, err := w.notifier.RoomCreated(ctx, a.ID)
		if err != nil {
			w.log.WithError(err).WithField("appointment_id", a.ID).Warn("room notifications unavailable, polling only")
		} else {
			notify = ch
		}
	}

	var (
		last    Result
		emitted bool
	)
	step := func() bool {
		res, err := w.Check(ctx, a)
		if err != nil {
			w.log.WithError(err).WithField("appointment_id", a.ID).Warn("room probe failed")
			if ctx.Err() != nil {
				return true
			}
		}
		if !w.fence.Current(token) {
			return true
		}
		if !emitted || res != last {
			last, emitted = res, true
			w.setLast(res)
			onChange(res)
		}
		return res.Terminal()
	}

	if step() {
		return ctx.Err()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case _, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
		}
		if step() {
			return ctx.Err()
		}
	}
}

// Last returns the most recent result any Watch call emitted.
func (w *Watcher) Last() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Watcher) setLast(r Result) {
	w.mu.Lock()
	w.last = r
	w.mu.Unlock()
}
