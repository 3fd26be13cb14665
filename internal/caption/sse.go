package caption

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/r3labs/sse/v2"
	"gopkg.in/cenkalti/backoff.v1"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
)

var errEndedBeforeConnect = errors.New("caption stream ended before connecting")

// SSETransport reads captions from a text/event-stream endpoint. Each event's
// data lines, joined with newlines, form one frame. The library's reconnect
// loop is disabled; a dropped stream stays dropped until the caller
// reconnects.
type SSETransport struct {
	BaseURL string
	Client  *http.Client // must not set Timeout; the stream is long-lived
	Header  http.Header
}

func (t *SSETransport) Open(ctx context.Context, sessionID, lang string) (Stream, error) {
	target, err := streamURL(t.BaseURL, sessionID, lang, "stream")
	if err != nil {
		return nil, err
	}

	client := sse.NewClient(target, sse.ClientMaxBufferSize(MaxFrameBytes))
	client.ReconnectStrategy = &backoff.StopBackOff{}
	if t.Client != nil {
		client.Connection = t.Client
	}
	for k := range t.Header {
		client.Headers[k] = t.Header.Get(k)
	}

	connected := make(chan struct{})
	client.ResponseValidator = func(_ *sse.Client, resp *http.Response) error {
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusNotFound {
				return fmt.Errorf("%w: caption session %s", apperr.ErrNotFound, sessionID)
			}
			return fmt.Errorf("%w: caption stream returned %s", apperr.ErrTransport, resp.Status)
		}
		close(connected)
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := newFrameStream(func() error {
		cancel()
		return nil
	})

	// written before s.done closes
	var connectErr error
	go s.run(func() error {
		defer cancel()
		err := client.SubscribeRawWithContext(streamCtx, func(ev *sse.Event) {
			if len(ev.Data) == 0 {
				return
			}
			if !s.push(bytes.Clone(ev.Data)) {
				cancel()
			}
		})
		select {
		case <-connected:
			if streamCtx.Err() != nil {
				return nil
			}
			return err
		default:
			connectErr = err
			return nil
		}
	})

	select {
	case <-connected:
	case <-s.done:
		select {
		case <-connected:
		default:
			return nil, dialError(connectErr)
		}
	}
	s.follow(ctx)
	return s, nil
}

func dialError(err error) error {
	switch {
	case err == nil:
		return fmt.Errorf("%w: %w", apperr.ErrTransport, errEndedBeforeConnect)
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrTransport):
		return err
	default:
		return fmt.Errorf("%w: connect caption stream: %w", apperr.ErrTransport, err)
	}
}
