package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// WebSocketTransport carries protocol messages over a full-duplex
// WebSocket connection. Writes are serialized because gorilla/websocket
// permits at most one concurrent writer.
type WebSocketTransport struct {
	base
	cfg    Config
	opts   Options
	logger logging.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWebSocketTransport(cfg Config, opts Options) *WebSocketTransport {
	return &WebSocketTransport{
		base:   newBase(KindWebSocket),
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.WithFields(logging.String("component", "WebSocketTransport")),
	}
}

// Connect dials the endpoint and starts the read loop.
func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.setState(StateConnecting)

	dialer := websocket.Dialer{
		HandshakeTimeout: t.opts.RequestTimeout,
	}
	header := http.Header{}
	for k, v := range t.cfg.Headers {
		header.Set(k, v)
	}

	conn, resp, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindWebSocket), t.cfg.URL, err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	t.conn = conn
	t.setState(StateConnected)
	go t.readLoop()
	return nil
}

func (t *WebSocketTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.State() == StateConnected {
				t.goDown(mcperrors.ConnectionLost(string(KindWebSocket), "read_message", err))
			} else {
				t.goDown(nil)
			}
			return
		}

		switch {
		case protocol.IsResponse(data):
			var resp protocol.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				t.logger.Warn("dropping unparseable response", logging.ErrorField(err))
				continue
			}
			if !t.resolve(&resp) {
				t.logger.Debug("response with no pending request",
					logging.String("id", protocol.IDKey(resp.ID)))
			}
		case protocol.IsNotification(data):
			var notif protocol.Notification
			if err := json.Unmarshal(data, &notif); err == nil {
				t.logger.Debug("server notification", logging.String("method", notif.Method))
			}
		default:
			t.logger.Warn("dropping unrecognized message")
		}
	}
}

// Send writes a single message frame.
func (t *WebSocketTransport) Send(ctx context.Context, msg protocol.Message) error {
	if err := t.requireConnected("send"); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return mcperrors.TransportError(string(KindWebSocket), "marshal", err)
	}

	t.writeMu.Lock()
	err = t.conn.WriteMessage(websocket.TextMessage, data)
	t.writeMu.Unlock()

	if err != nil {
		lost := mcperrors.ConnectionLost(string(KindWebSocket), "write_message", err)
		t.goDown(lost)
		return lost
	}
	return nil
}

// SendRequest sends a request frame and waits for the matching response.
func (t *WebSocketTransport) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	ch := t.register(req.ID)
	if err := t.Send(ctx, req); err != nil {
		t.unregister(req.ID)
		return nil, err
	}
	return t.await(ctx, req.ID, ch)
}

// SendRequestWithTimeout is SendRequest bounded by a deadline.
func (t *WebSocketTransport) SendRequestWithTimeout(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	return sendRequestWithTimeout(ctx, t, req, timeout)
}

// Disconnect sends a close frame, closes the socket and fails all waiters.
func (t *WebSocketTransport) Disconnect(ctx context.Context) error {
	t.setState(StateClosing)

	if t.conn != nil {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		_ = t.conn.Close()
	}
	t.goDown(nil)
	t.setState(StateDisconnected)
	return nil
}
