package readiness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/appointment"
)

type stubProbe struct {
	mu     sync.Mutex
	exists bool
	err    error
	calls  atomic.Int32
}

func (p *stubProbe) RoomExists(context.Context, string) (bool, error) {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exists, p.err
}

func (p *stubProbe) set(exists bool, err error) {
	p.mu.Lock()
	p.exists, p.err = exists, err
	p.mu.Unlock()
}

type chanNotifier struct{ ch chan struct{} }

func (n chanNotifier) RoomCreated(context.Context, string) (<-chan struct{}, error) {
	return n.ch, nil
}

func onlineAppt() appointment.Appointment {
	return appointment.Appointment{ID: "appt-1", Modality: appointment.ModalityOnline, ScheduledAt: start}
}

func TestWatchNotOnlineReturnsImmediately(t *testing.T) {
	probe := &stubProbe{}
	log, _ := test.NewNullLogger()
	w := NewWatcher(WatcherConfig{Probe: probe, Log: log, Now: func() time.Time { return start }})

	var got []Result
	a := appointment.Appointment{ID: "appt-2", Modality: appointment.ModalityPhone, ScheduledAt: start}
	err := w.Watch(context.Background(), a, func(r Result) { got = append(got, r) })

	require.NoError(t, err)
	assert.Equal(t, []Result{{State: StateNotOnline}}, got)
	assert.Zero(t, probe.calls.Load())
}

func TestWatchPollsUntilReady(t *testing.T) {
	probe := &stubProbe{}
	log, _ := test.NewNullLogger()
	w := NewWatcher(WatcherConfig{
		Probe:    probe,
		Log:      log,
		Interval: 5 * time.Millisecond,
		Now:      func() time.Time { return start.Add(-2 * time.Minute) },
	})

	var (
		mu  sync.Mutex
		got []State
	)
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(context.Background(), onlineAppt(), func(r Result) {
			mu.Lock()
			got = append(got, r.State)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool { return probe.calls.Load() >= 3 }, time.Second, time.Millisecond)
	probe.set(true, nil)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not finish after room appeared")
	}

	mu.Lock()
	defer mu.Unlock()
	// repeated WAITING_FOR_HOST ticks are not re-emitted
	assert.Equal(t, []State{StateWaitingForHost, StateReady}, got)
	assert.Equal(t, StateReady, w.Last().State)
}

func TestWatchNotificationTriggersImmediateCheck(t *testing.T) {
	probe := &stubProbe{}
	notifier := chanNotifier{ch: make(chan struct{}, 1)}
	log, _ := test.NewNullLogger()
	w := NewWatcher(WatcherConfig{
		Probe:    probe,
		Notifier: notifier,
		Log:      log,
		Interval: time.Hour,
		Now:      func() time.Time { return start.Add(-time.Minute) },
	})

	done := make(chan error, 1)
	go func() { done <- w.Watch(context.Background(), onlineAppt(), func(Result) {}) }()

	require.Eventually(t, func() bool { return probe.calls.Load() == 1 }, time.Second, time.Millisecond)
	probe.set(true, nil)
	notifier.ch <- struct{}{}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("notification did not trigger a re-check")
	}
}

func TestWatchProbeErrorsAreLoggedNotFatal(t *testing.T) {
	probe := &stubProbe{err: errors.New("backend timeout")}
	log, hook := test.NewNullLogger()
	w := NewWatcher(WatcherConfig{
		Probe:    probe,
		Log:      log,
		Interval: 5 * time.Millisecond,
		Now:      func() time.Time { return start.Add(-time.Hour) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	var first Result
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, onlineAppt(), func(r Result) { once.Do(func() { first = r }) })
	}()

	require.Eventually(t, func() bool { return probe.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Result{State: StateTooEarly, MinutesUntilStart: 60}, first)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "room probe failed", hook.LastEntry().Message)
}

func TestWatchSupersededByNewerTarget(t *testing.T) {
	probe := &stubProbe{}
	log, _ := test.NewNullLogger()
	w := NewWatcher(WatcherConfig{
		Probe:    probe,
		Log:      log,
		Interval: 5 * time.Millisecond,
		Now:      func() time.Time { return start.Add(-time.Minute) },
	})

	var oldCalls atomic.Int32
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- w.Watch(context.Background(), onlineAppt(), func(Result) { oldCalls.Add(1) })
	}()
	require.Eventually(t, func() bool { return oldCalls.Load() == 1 }, time.Second, time.Millisecond)

	other := appointment.Appointment{ID: "appt-9", Modality: appointment.ModalityInPerson}
	require.NoError(t, w.Watch(context.Background(), other, func(Result) {}))

	select {
	case err := <-firstDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("superseded watch kept running")
	}
	assert.Equal(t, int32(1), oldCalls.Load())
	assert.Equal(t, StateNotOnline, w.Last().State)
}

func TestCheck(t *testing.T) {
	probe := &stubProbe{exists: true}
	w := NewWatcher(WatcherConfig{Probe: probe, Now: func() time.Time { return start.Add(-time.Hour) }})

	res, err := w.Check(context.Background(), onlineAppt())
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
}

func TestCheckKnownRoomSkipsProbe(t *testing.T) {
	probe := &stubProbe{err: errors.New("probe down")}
	w := NewWatcher(WatcherConfig{Probe: probe, Now: func() time.Time { return start.Add(-time.Hour) }})

	a := onlineAppt()
	a.VideoRoomID = "room-42"
	res, err := w.Check(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, StateReady, res.State)
	assert.True(t, res.CanJoin)
	assert.Zero(t, probe.calls.Load())
}
