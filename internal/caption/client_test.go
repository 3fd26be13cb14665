package caption

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
)

type fakeFeed struct {
	sessionID string
	lang      string
	frames    chan []byte
	fail      chan error
	stream    *frameStream
}

func (f *fakeFeed) send(s string) { f.frames <- []byte(s) }

type fakeTransport struct {
	mu      sync.Mutex
	feeds   []*fakeFeed
	openErr error
}

func (f *fakeTransport) Open(ctx context.Context, sessionID, lang string) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}

	feed := &fakeFeed{sessionID: sessionID, lang: lang, frames: make(chan []byte, 16), fail: make(chan error, 1)}
	s := newFrameStream(nil)
	go s.run(func() error {
		for {
			select {
			case fr := <-feed.frames:
				if !s.push(fr) {
					return nil
				}
			case err := <-feed.fail:
				return err
			case <-s.quit:
				return nil
			}
		}
	})
	s.follow(ctx)
	feed.stream = s
	f.feeds = append(f.feeds, feed)
	return s, nil
}

func (f *fakeTransport) opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.feeds)
}

func (f *fakeTransport) feed(i int) *fakeFeed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feeds[i]
}

func newTestClient(t *testing.T, maxItems int) (*Client, *fakeTransport, *test.Hook, *prometheus.Registry) {
	t.Helper()
	tr := &fakeTransport{}
	log, hook := test.NewNullLogger()
	reg := prometheus.NewRegistry()
	m := metrics.NewCaptionMetrics(reg)
	c := NewClient(Options{
		Transports: map[Kind]Transport{KindPush: tr, KindSocket: tr},
		MaxItems:   maxItems,
		Log:        log,
		Metrics:    m,
	})
	t.Cleanup(c.Disconnect)
	return c, tr, hook, reg
}

func droppedFrames(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "telehealth_captions_dropped_frames_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func waitCaptions(t *testing.T, c *Client, n int) []Chunk {
	t.Helper()
	require.Eventually(t, func() bool { return len(c.Captions()) == n }, 2*time.Second, time.Millisecond)
	return c.Captions()
}

func TestClientSubscribeAndNormalize(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 0)

	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "es", KindPush))
	assert.True(t, c.Connected())
	assert.NoError(t, c.Err())

	feed := tr.feed(0)
	feed.send(`{"text":"hola","seq":1}`)
	feed.send(`{"caption":"que tal","seq":2,"speaker":"PATIENT"}`)
	feed.send(`{"transcript":"bien","seq":3}`)

	got := waitCaptions(t, c, 3)
	assert.Equal(t, []string{"hola", "que tal", "bien"}, []string{got[0].Text, got[1].Text, got[2].Text})
	assert.Equal(t, "es", got[0].Lang)
	assert.Equal(t, SpeakerPatient, got[1].Speaker)
}

func TestClientDropsMalformedFramesAndLogs(t *testing.T) {
	c, tr, hook, reg := newTestClient(t, 0)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "es", KindSocket))

	feed := tr.feed(0)
	feed.send(`not json`)
	feed.send(`{"lang":"es"}`)
	feed.send(`{"text":"ok"}`)

	got := waitCaptions(t, c, 1)
	assert.Equal(t, "ok", got[0].Text)
	assert.True(t, c.Connected())
	assert.NoError(t, c.Err())

	var dropped int
	for _, e := range hook.AllEntries() {
		if e.Message == "dropping malformed caption frame" {
			dropped++
			assert.Equal(t, logrus.WarnLevel, e.Level)
		}
	}
	assert.Equal(t, 2, dropped)
	assert.Equal(t, 1.0, droppedFrames(t, reg, "invalid_frame"))
	assert.Equal(t, 1.0, droppedFrames(t, reg, "missing_text"))
}

func TestClientBufferBound(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 5)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindPush))

	feed := tr.feed(0)
	for i := range 12 {
		feed.send(fmt.Sprintf(`{"text":"t%d","seq":%d}`, i, i))
	}

	require.Eventually(t, func() bool {
		got := c.Captions()
		return len(got) == 5 && got[4].Seq == 11
	}, 2*time.Second, time.Millisecond)

	got := c.Captions()
	for i, ch := range got {
		assert.Equal(t, int64(7+i), ch.Seq)
	}
}

func TestClientErrorFlipsConnectedWithoutRetry(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 0)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindPush))

	feed := tr.feed(0)
	feed.send(`{"text":"before"}`)
	waitCaptions(t, c, 1)
	feed.fail <- errors.New("connection reset by peer")

	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Err(), apperr.ErrTransport)
	assert.Equal(t, 1, tr.opens())

	// manual reconnect keeps the buffer
	require.NoError(t, c.Connect(context.Background()))
	assert.True(t, c.Connected())
	assert.NoError(t, c.Err())
	assert.Equal(t, 2, tr.opens())

	tr.feed(1).send(`{"text":"before"}`)
	got := waitCaptions(t, c, 2)
	assert.Equal(t, got[0].Text, got[1].Text)
}

func TestClientSameSubscriptionIsNoop(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 0)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindPush))
	require.NoError(t, c.Subscribe(context.Background(), " sess-1 ", "en", KindPush))
	assert.Equal(t, 1, tr.opens())
}

func TestClientChangingLanguageResubscribes(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 0)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindPush))
	tr.feed(0).send(`{"text":"hello"}`)
	waitCaptions(t, c, 1)

	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "es", KindPush))
	assert.Equal(t, 2, tr.opens())
	assert.Empty(t, c.Captions())
	assert.Equal(t, "es", c.Lang())

	old := tr.feed(0)
	select {
	case <-old.stream.done:
	case <-time.After(time.Second):
		t.Fatal("old stream was not torn down")
	}

	tr.feed(1).send(`{"text":"hola"}`)
	got := waitCaptions(t, c, 1)
	assert.Equal(t, "hola", got[0].Text)
	assert.Equal(t, "es", tr.feed(1).lang)
}

func TestClientDisconnectIsIdempotent(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 0)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindPush))

	c.Disconnect()
	assert.False(t, c.Connected())
	assert.NoError(t, c.Err())
	c.Disconnect()
	assert.False(t, c.Connected())

	<-tr.feed(0).stream.done
}

func TestClientContextEndsSubscription(t *testing.T) {
	c, _, _, _ := newTestClient(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Subscribe(ctx, "sess-1", "en", KindPush))

	cancel()
	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, time.Millisecond)
	assert.NoError(t, c.Err())
}

func TestClientOpenFailure(t *testing.T) {
	c, tr, _, _ := newTestClient(t, 0)
	tr.openErr = fmt.Errorf("%w: dial refused", apperr.ErrTransport)

	err := c.Subscribe(context.Background(), "sess-1", "en", KindPush)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Err(), apperr.ErrTransport)
}

func TestClientValidation(t *testing.T) {
	c := NewClient(Options{Transports: map[Kind]Transport{KindPush: &fakeTransport{}}})

	assert.ErrorIs(t, c.Subscribe(context.Background(), "", "en", KindPush), apperr.ErrValidation)
	assert.ErrorIs(t, c.Subscribe(context.Background(), "s", "en", KindSocket), apperr.ErrValidation)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrNotSubscribed)
}

func TestClientOnChunkHook(t *testing.T) {
	tr := &fakeTransport{}
	seen := make(chan Chunk, 1)
	c := NewClient(Options{
		Transports: map[Kind]Transport{KindPush: tr},
		OnChunk:    func(ch Chunk) { seen <- ch },
	})
	defer c.Disconnect()

	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindPush))
	tr.feed(0).send(`{"text":"hi"}`)

	select {
	case ch := <-seen:
		assert.Equal(t, "hi", ch.Text)
	case <-time.After(time.Second):
		t.Fatal("OnChunk not called")
	}
}

func TestRegistrySharesClientPerPair(t *testing.T) {
	tr := &fakeTransport{}
	log, _ := test.NewNullLogger()
	reg := NewRegistry(context.Background(), func() Options {
		return Options{Transports: map[Kind]Transport{KindPush: tr, KindSocket: tr}, Log: log}
	})
	defer reg.Close()

	a, err := reg.Acquire("sess-1", "en", KindPush)
	require.NoError(t, err)
	b, err := reg.Acquire("sess-1", "en", KindSocket)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, tr.opens())

	other, err := reg.Acquire("sess-1", "es", KindPush)
	require.NoError(t, err)
	assert.NotSame(t, a, other)

	assert.True(t, reg.Release("sess-1", "en"))
	assert.True(t, a.Connected())
	assert.True(t, reg.Release("sess-1", "en"))
	assert.False(t, a.Connected())
	_, ok := reg.Get("sess-1", "en")
	assert.False(t, ok)
	assert.False(t, reg.Release("sess-1", "en"))

	got, ok := reg.Get("sess-1", "es")
	require.True(t, ok)
	assert.Same(t, other, got)
}

func TestRegistryReacquireReconnects(t *testing.T) {
	tr := &fakeTransport{}
	reg := NewRegistry(context.Background(), func() Options {
		return Options{Transports: map[Kind]Transport{KindPush: tr}}
	})
	defer reg.Close()

	c, err := reg.Acquire("sess-1", "en", KindPush)
	require.NoError(t, err)
	tr.feed(0).fail <- errors.New("dropped")
	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, time.Millisecond)

	again, err := reg.Acquire("sess-1", "en", KindPush)
	require.NoError(t, err)
	assert.Same(t, c, again)
	assert.True(t, again.Connected())
	assert.Equal(t, 2, tr.opens())
}

func TestClientOversizeFrameEndsStreamAndCounts(t *testing.T) {
	c, tr, _, reg := newTestClient(t, 0)
	require.NoError(t, c.Subscribe(context.Background(), "sess-1", "en", KindSocket))

	tr.feed(0).fail <- fmt.Errorf("read: %w", bufio.ErrTooLong)

	require.Eventually(t, func() bool { return !c.Connected() }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, c.Err(), ErrFrameTooLarge)
	assert.ErrorIs(t, c.Err(), apperr.ErrTransport)
	assert.Equal(t, 1.0, droppedFrames(t, reg, "oversize"))
	assert.Equal(t, 1, tr.opens())
}
