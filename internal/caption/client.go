package caption

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/fence"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/metrics"
)

var (
	ErrNotSubscribed = errors.New("caption client has no subscription")
	errSuperseded    = errors.New("caption subscription superseded")
)

type Options struct {
	Transports map[Kind]Transport
	MaxItems   int
	Log        *logrus.Logger
	Metrics    *metrics.CaptionMetrics
	Now        func() time.Time
	OnChunk    func(Chunk) // called from the reader goroutine after each append
}

type subscription struct {
	sessionID string
	lang      string
	kind      Kind
}

// Client holds at most one live caption channel and the bounded buffer fed by
// it. There is no automatic retry: after an error the caller decides whether
// to Connect again.
type Client struct {
	transports map[Kind]Transport
	buf        *Buffer
	log        *logrus.Logger
	metrics    *metrics.CaptionMetrics
	now        func() time.Time
	onChunk    func(Chunk)

	gen fence.Fence

	mu        sync.Mutex
	sub       subscription
	stream    Stream
	connected bool
	err       error
}

func NewClient(opts Options) *Client {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		transports: opts.Transports,
		buf:        NewBuffer(opts.MaxItems),
		log:        opts.Log,
		metrics:    opts.Metrics,
		now:        opts.Now,
		onChunk:    opts.OnChunk,
	}
}

// Subscribe opens the channel for sessionID/lang. Subscribing again to the
// same pair while connected is a no-op; a different pair tears the current
// channel down and starts from an empty buffer. ctx bounds the lifetime of
// the channel, not just the dial.
func (c *Client) Subscribe(ctx context.Context, sessionID, lang string, kind Kind) error {
	sessionID, lang = strings.TrimSpace(sessionID), strings.TrimSpace(lang)
	if sessionID == "" || lang == "" {
		return apperr.Validation("session id and language are required")
	}
	if _, ok := c.transports[kind]; !ok {
		return apperr.Validation("caption transport %q is not configured", kind)
	}

	next := subscription{sessionID: sessionID, lang: lang, kind: kind}

	c.mu.Lock()
	if c.connected && c.sub == next {
		c.mu.Unlock()
		return nil
	}
	changed := c.sub.sessionID != sessionID || c.sub.lang != lang
	c.sub = next
	c.mu.Unlock()

	if changed {
		c.gen.Invalidate()
		c.teardown()
		c.buf.Reset()
	}
	return c.open(ctx)
}

// Connect re-opens the current subscription, keeping the buffer. Chunks
// delivered again by the server are not de-duplicated.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()
	if sub.sessionID == "" {
		return ErrNotSubscribed
	}
	return c.open(ctx)
}

// Disconnect closes the active channel. Calling it again is harmless.
func (c *Client) Disconnect() {
	c.gen.Invalidate()
	c.teardown()
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Captions returns the buffered chunks in arrival order.
func (c *Client) Captions() []Chunk {
	return c.buf.Snapshot()
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub.sessionID
}

func (c *Client) Lang() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub.lang
}

func (c *Client) open(ctx context.Context) error {
	c.teardown()
	token := c.gen.Next()

	c.mu.Lock()
	sub := c.sub
	c.mu.Unlock()

	entry := c.log.WithFields(logrus.Fields{
		"session_id": sub.sessionID,
		"lang":       sub.lang,
		"transport":  sub.kind,
	})

	stream, err := c.transports[sub.kind].Open(ctx, sub.sessionID, sub.lang)
	if err != nil {
		c.metrics.ObserveConnection(string(sub.kind), "error")
		c.mu.Lock()
		if c.gen.Current(token) {
			c.connected = false
			c.err = err
		}
		c.mu.Unlock()
		entry.WithError(err).Warn("caption stream connect failed")
		return fmt.Errorf("subscribe captions: %w", err)
	}

	c.mu.Lock()
	if !c.gen.Current(token) {
		c.mu.Unlock()
		_ = stream.Close()
		return errSuperseded
	}
	c.stream = stream
	c.connected = true
	c.err = nil
	c.mu.Unlock()

	c.metrics.ObserveConnection(string(sub.kind), "ok")
	entry.Info("caption stream connected")

	go c.consume(token, sub, stream, entry)
	return nil
}

func (c *Client) consume(token fence.Token, sub subscription, stream Stream, entry *logrus.Entry) {
	for frame := range stream.Frames() {
		chunk, err := Normalize(frame, sub.lang, c.now())
		if err != nil {
			reason := "invalid_frame"
			if errors.Is(err, ErrMissingText) {
				reason = "missing_text"
			}
			c.metrics.ObserveDropped(reason)
			entry.WithFields(logrus.Fields{
				"reason": reason,
				"bytes":  len(frame),
			}).Warn("dropping malformed caption frame")
			continue
		}

		c.mu.Lock()
		current := c.gen.Current(token)
		if current {
			if c.buf.Append(chunk) {
				c.metrics.ObserveEvicted(1)
			}
		}
		c.mu.Unlock()
		if !current {
			c.metrics.ObserveDropped("stale")
			continue
		}

		c.metrics.ObserveFrame(chunk.Lang)
		if c.onChunk != nil {
			c.onChunk(chunk)
		}
	}

	err := stream.Wait()
	if errors.Is(err, ErrFrameTooLarge) {
		c.metrics.ObserveDropped("oversize")
	}

	c.mu.Lock()
	if c.gen.Current(token) && c.stream == stream {
		c.connected = false
		c.err = err
		c.stream = nil
	}
	c.mu.Unlock()

	if err != nil {
		entry.WithError(err).Warn("caption stream failed")
	} else {
		entry.Info("caption stream closed")
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.connected = false
	c.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}
