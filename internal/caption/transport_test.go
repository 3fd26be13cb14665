package caption

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/apperr"
)

func collect(t *testing.T, s Stream) [][]byte {
	t.Helper()
	var out [][]byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-s.Frames():
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("stream did not end")
		}
	}
}

func captionServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	r := chi.NewRouter()
	r.Get("/captions/sessions/{sessionID}/stream", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "sessionID") == "missing" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		switch chi.URLParam(r, "sessionID") {
		case "framing":
			fmt.Fprint(w, ": keep-alive\n\n"+
				"event: caption\n"+
				"data: {\"text\":\"uno\"}\n\n"+
				"data: {\"text\":\n"+
				"data: \"dos\"}\r\n\r\n"+
				"id: 7\n\n"+
				"data:{\"text\":\"tres\"}\n\n")
			flusher.Flush()
			return
		case "oversize":
			fmt.Fprintf(w, "data: {\"text\":\"%s\"}\n\n", strings.Repeat("x", MaxFrameBytes))
			flusher.Flush()
			return
		}
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		for i := range 3 {
			fmt.Fprintf(w, "data: {\"text\":\"%s-%d\"}\n\n", r.URL.Query().Get("lang"), i)
			flusher.Flush()
		}
	})
	r.Get("/captions/sessions/{sessionID}/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		lang := r.URL.Query().Get("lang")
		if chi.URLParam(r, "sessionID") == "oversize" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", MaxFrameBytes+1)))
			_, _, _ = conn.ReadMessage()
			return
		}
		for i := range 2 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"caption":"%s-%d"}`, lang, i)))
		}
		switch chi.URLParam(r, "sessionID") {
		case "abrupt":
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom"))
		case "hold":
			_, _, _ = conn.ReadMessage()
		default:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestSSETransport(t *testing.T) {
	srv := captionServer(t)
	tr := &SSETransport{BaseURL: srv.URL + "/", Header: http.Header{"Authorization": {"Bearer tok"}}}

	s, err := tr.Open(context.Background(), "sess-1", "es")
	require.NoError(t, err)

	frames := collect(t, s)
	require.Len(t, frames, 3)
	assert.JSONEq(t, `{"text":"es-0"}`, string(frames[0]))
	assert.NoError(t, s.Wait())
}

func TestSSETransportFraming(t *testing.T) {
	srv := captionServer(t)
	tr := &SSETransport{BaseURL: srv.URL}

	s, err := tr.Open(context.Background(), "framing", "es")
	require.NoError(t, err)

	var got []string
	for _, f := range collect(t, s) {
		got = append(got, string(f))
	}
	assert.Equal(t, []string{`{"text":"uno"}`, "{\"text\":\n\"dos\"}", `{"text":"tres"}`}, got)
	assert.NoError(t, s.Wait())
}

func TestSSETransportOversizeFrame(t *testing.T) {
	srv := captionServer(t)
	tr := &SSETransport{BaseURL: srv.URL}

	s, err := tr.Open(context.Background(), "oversize", "es")
	require.NoError(t, err)

	assert.Empty(t, collect(t, s))
	err = s.Wait()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestSSETransportNotFound(t *testing.T) {
	srv := captionServer(t)
	tr := &SSETransport{BaseURL: srv.URL}

	_, err := tr.Open(context.Background(), "missing", "es")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSSETransportUnreachable(t *testing.T) {
	tr := &SSETransport{BaseURL: "http://127.0.0.1:1"}

	_, err := tr.Open(context.Background(), "sess-1", "es")
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestWebSocketTransportNormalClose(t *testing.T) {
	srv := captionServer(t)
	tr := &WebSocketTransport{BaseURL: srv.URL}

	s, err := tr.Open(context.Background(), "sess-1", "en")
	require.NoError(t, err)

	frames := collect(t, s)
	require.Len(t, frames, 2)
	assert.JSONEq(t, `{"caption":"en-1"}`, string(frames[1]))
	assert.NoError(t, s.Wait())
}

func TestWebSocketTransportAbnormalClose(t *testing.T) {
	srv := captionServer(t)
	tr := &WebSocketTransport{BaseURL: srv.URL}

	s, err := tr.Open(context.Background(), "abrupt", "en")
	require.NoError(t, err)

	collect(t, s)
	err = s.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrTransport)
	var closeErr *websocket.CloseError
	assert.True(t, errors.As(err, &closeErr))
}

func TestWebSocketTransportOversizeFrame(t *testing.T) {
	srv := captionServer(t)
	tr := &WebSocketTransport{BaseURL: srv.URL}

	s, err := tr.Open(context.Background(), "oversize", "en")
	require.NoError(t, err)

	assert.Empty(t, collect(t, s))
	err = s.Wait()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.ErrorIs(t, err, apperr.ErrTransport)
}

func TestWebSocketTransportCloseIsNotAnError(t *testing.T) {
	srv := captionServer(t)
	tr := &WebSocketTransport{BaseURL: srv.URL}

	ctx, cancel := context.WithCancel(context.Background())
	s, err := tr.Open(ctx, "hold", "en")
	require.NoError(t, err)

	<-s.Frames()
	cancel()
	collect(t, s)
	assert.NoError(t, s.Wait())
	assert.NoError(t, s.Close())
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{"sse": KindPush, "push": KindPush, "": KindPush, "ws": KindSocket, "WebSocket": KindSocket, "socket": KindSocket} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseKind("carrier-pigeon")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestStreamURL(t *testing.T) {
	u, err := streamURL("https://captions.example.com/api/", "a b", "pt-BR", "ws")
	require.NoError(t, err)
	assert.Equal(t, "https://captions.example.com/api/captions/sessions/a%20b/ws?lang=pt-BR", u)
	assert.Equal(t, "wss://captions.example.com/x", toWebSocketScheme("https://captions.example.com/x"))
	assert.Equal(t, "ws://h/x", toWebSocketScheme("http://h/x"))
}

func TestDefaultTransports(t *testing.T) {
	ts := DefaultTransports("http://captions.local", http.Header{"Authorization": {"Bearer t"}})
	require.Len(t, ts, 2)
	assert.IsType(t, &SSETransport{}, ts[KindPush])
	assert.IsType(t, &WebSocketTransport{}, ts[KindSocket])
}
