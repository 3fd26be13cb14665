package caption

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
)

// MaxFrameBytes bounds a single caption frame on either transport. A larger
// frame ends the stream with ErrFrameTooLarge.
const MaxFrameBytes = 64 << 10

var ErrFrameTooLarge = errors.New("caption frame exceeds size limit")

type Kind string

const (
	KindPush   Kind = "push"   // server-sent events
	KindSocket Kind = "socket" // websocket, read-only
)

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "push", "sse", "":
		return KindPush, nil
	case "socket", "ws", "websocket":
		return KindSocket, nil
	default:
		return "", apperr.Validation("unknown caption transport %q", s)
	}
}

// Transport opens one live caption channel for a session and target language.
type Transport interface {
	Open(ctx context.Context, sessionID, lang string) (Stream, error)
}

// Stream delivers raw frames until the channel ends. Frames is closed when
// the stream ends; Wait then reports why (nil for a clean close or Close).
type Stream interface {
	Frames() <-chan []byte
	Wait() error
	Close() error
}

// frameStream is the Stream shared by both transports. Errors observed
// after Close are not errors.
type frameStream struct {
	frames chan []byte
	quit   chan struct{}
	done   chan struct{}

	closeFn   func() error
	closeOnce sync.Once

	errMu sync.Mutex
	err   error
}

func newFrameStream(closeFn func() error) *frameStream {
	return &frameStream{
		frames:  make(chan []byte, 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
}

// run drives read until it returns, then closes the stream.
func (s *frameStream) run(read func() error) {
	defer func() {
		close(s.frames)
		close(s.done)
	}()
	s.setErr(read())
}

// follow closes the stream when ctx ends.
func (s *frameStream) follow(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
}

func (s *frameStream) push(frame []byte) bool {
	select {
	case s.frames <- frame:
		return true
	case <-s.quit:
		return false
	}
}

func (s *frameStream) Frames() <-chan []byte { return s.frames }

func (s *frameStream) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *frameStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.quit)
		if s.closeFn != nil {
			_ = s.closeFn()
		}
	})
	return s.Wait()
}

func (s *frameStream) closed() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

func (s *frameStream) setErr(err error) {
	if err == nil || s.closed() {
		return
	}
	if errors.Is(err, bufio.ErrTooLong) || errors.Is(err, websocket.ErrReadLimit) {
		err = fmt.Errorf("%w: %w", ErrFrameTooLarge, err)
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = fmt.Errorf("%w: %w", apperr.ErrTransport, err)
	}
}

// streamURL builds {base}/captions/sessions/{id}/{leaf}?lang=xx.
func streamURL(base, sessionID, lang, leaf string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	u, err := url.Parse(base + "/captions/sessions/" + url.PathEscape(sessionID) + "/" + leaf)
	if err != nil {
		return "", fmt.Errorf("invalid captions base URL: %w", err)
	}
	q := u.Query()
	q.Set("lang", lang)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toWebSocketScheme(raw string) string {
	switch {
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	default:
		return raw
	}
}

// DefaultTransports returns both transports against one caption service.
func DefaultTransports(baseURL string, header http.Header) map[Kind]Transport {
	return map[Kind]Transport{
		KindPush:   &SSETransport{BaseURL: baseURL, Header: header},
		KindSocket: &WebSocketTransport{BaseURL: baseURL, Header: header},
	}
}
