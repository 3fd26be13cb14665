package caption

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
)

// WebSocketTransport reads captions over a websocket. The socket can carry
// client messages but this transport only ever reads.
type WebSocketTransport struct {
	BaseURL string
	Dialer  *websocket.Dialer
	Header  http.Header
}

func (t *WebSocketTransport) Open(ctx context.Context, sessionID, lang string) (Stream, error) {
	target, err := streamURL(t.BaseURL, sessionID, lang, "ws")
	if err != nil {
		return nil, err
	}

	dialer := t.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment}
	}

	conn, resp, err := dialer.DialContext(ctx, toWebSocketScheme(target), t.Header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: caption session %s", apperr.ErrNotFound, sessionID)
		}
		return nil, fmt.Errorf("%w: connect caption socket: %w", apperr.ErrTransport, err)
	}

	conn.SetReadLimit(MaxFrameBytes)

	s := newFrameStream(conn.Close)
	go s.run(func() error {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			if !s.push(payload) {
				return nil
			}
		}
	})
	s.follow(ctx)
	return s, nil
}
