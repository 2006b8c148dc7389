package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// SSETransport posts outbound messages over HTTP and consumes responses
// from a long-lived text/event-stream opened at connect time. Servers that
// answer a POST inline (HTTP 200 with a body) are also supported; servers
// that accept with 202 deliver the response on the stream.
type SSETransport struct {
	base
	cfg    Config
	opts   Options
	logger logging.Logger

	client       *http.Client
	streamCancel context.CancelFunc
}

func newSSETransport(cfg Config, opts Options) *SSETransport {
	return &SSETransport{
		base:   newBase(KindSSE),
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.WithFields(logging.String("component", "SSETransport")),
	}
}

// Connect opens the event stream and starts the read loop.
func (t *SSETransport) Connect(ctx context.Context) error {
	t.setState(StateConnecting)
	t.client = &http.Client{}

	streamCtx, cancel := context.WithCancel(context.Background())
	t.streamCancel = cancel

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		cancel()
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindSSE), t.cfg.URL, err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindSSE), t.cfg.URL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindSSE), t.cfg.URL,
			fmt.Errorf("server returned %s", resp.Status))
	}

	t.setState(StateConnected)
	go t.readStream(resp.Body)
	return nil
}

// readStream parses the event stream. Per the SSE format, an event's
// payload is the concatenation of its data: lines, terminated by a blank
// line.
func (t *SSETransport) readStream(body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), stdioScanBuffer)

	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data.Len() > 0 {
				t.dispatch(data.Bytes())
				data.Reset()
			}
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// event:/id:/retry: fields and comments are ignored
	}

	if t.State() == StateConnected {
		t.goDown(mcperrors.ConnectionLost(string(KindSSE), "read_stream", scanner.Err()))
	} else {
		t.goDown(nil)
	}
}

func (t *SSETransport) dispatch(payload []byte) {
	if !protocol.IsResponse(payload) {
		if protocol.IsNotification(payload) {
			var notif protocol.Notification
			if err := json.Unmarshal(payload, &notif); err == nil {
				t.logger.Debug("server notification", logging.String("method", notif.Method))
			}
		}
		return
	}

	var resp protocol.Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.logger.Warn("dropping unparseable event", logging.ErrorField(err))
		return
	}
	if !t.resolve(&resp) {
		t.logger.Debug("response with no pending request",
			logging.String("id", protocol.IDKey(resp.ID)))
	}
}

func (t *SSETransport) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	return t.client.Do(req)
}

// Send posts a message; the server is not expected to reply.
func (t *SSETransport) Send(ctx context.Context, msg protocol.Message) error {
	if err := t.requireConnected("send"); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return mcperrors.TransportError(string(KindSSE), "marshal", err)
	}

	resp, err := t.post(ctx, data)
	if err != nil {
		return mcperrors.TransportError(string(KindSSE), "send", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return mcperrors.TransportError(string(KindSSE), "send",
			fmt.Errorf("server returned %s", resp.Status))
	}
	return nil
}

// SendRequest posts the request; the response arrives inline or over the
// event stream, whichever the server chooses.
func (t *SSETransport) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := t.requireConnected("send_request"); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.TransportError(string(KindSSE), "marshal", err)
	}

	ch := t.register(req.ID)

	httpResp, err := t.post(ctx, data)
	if err != nil {
		t.unregister(req.ID)
		return nil, mcperrors.TransportError(string(KindSSE), "send_request", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		t.unregister(req.ID)
		return nil, mcperrors.TransportError(string(KindSSE), "send_request",
			fmt.Errorf("server returned %s", httpResp.Status))
	}

	// Inline reply: decode it directly and release the stream slot.
	if httpResp.StatusCode == http.StatusOK {
		body, readErr := io.ReadAll(httpResp.Body)
		if readErr == nil && protocol.IsResponse(body) {
			t.unregister(req.ID)
			var resp protocol.Response
			if err := json.Unmarshal(body, &resp); err != nil {
				return nil, mcperrors.TransportError(string(KindSSE), "decode_response", err)
			}
			return &resp, nil
		}
	}

	return t.await(ctx, req.ID, ch)
}

// SendRequestWithTimeout is SendRequest bounded by a deadline.
func (t *SSETransport) SendRequestWithTimeout(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	return sendRequestWithTimeout(ctx, t, req, timeout)
}

// Disconnect tears down the event stream and fails all waiters.
func (t *SSETransport) Disconnect(ctx context.Context) error {
	t.setState(StateClosing)
	if t.streamCancel != nil {
		t.streamCancel()
	}
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.goDown(nil)
	t.setState(StateDisconnected)
	return nil
}
