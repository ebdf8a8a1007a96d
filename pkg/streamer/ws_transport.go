package streamer

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WSTransport streams frames over a websocket; each text message is one
// frame. Producers that push their event stream through a socket instead of
// a chunked HTTP response use the same frame payloads, so the decoder is
// shared.
type WSTransport struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWSTransport(baseURL string, dialer *websocket.Dialer) *WSTransport {
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	}
	return &WSTransport{baseURL: baseURL, dialer: dialer}
}

func (t *WSTransport) Open(ctx context.Context, req OpenRequest) (FrameReader, error) {
	u, err := url.Parse(t.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if !strings.HasSuffix(u.Path, "/ws") {
		u = u.JoinPath("ws")
	}
	q := u.Query()
	q.Set("message", req.Message)
	if req.CheckpointID != "" {
		q.Set("checkpoint_id", req.CheckpointID)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := t.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "dial stream socket")
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return &wsFrameReader{conn: conn}, nil
}

type wsFrameReader struct {
	conn *websocket.Conn
}

func (r *wsFrameReader) Next() ([]byte, error) {
	for {
		msgType, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "read stream socket")
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return data, nil
	}
}

func (r *wsFrameReader) Close() error {
	_ = r.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return r.conn.Close()
}
