package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// HTTPTransport carries each request or notification as one HTTP POST and
// reads the matched response from the reply body.
type HTTPTransport struct {
	base
	cfg    Config
	opts   Options
	logger logging.Logger
	client *http.Client
}

func newHTTPTransport(cfg Config, opts Options) *HTTPTransport {
	return &HTTPTransport{
		base:   newBase(KindHTTP),
		cfg:    cfg,
		opts:   opts,
		logger: opts.Logger.WithFields(logging.String("component", "HTTPTransport")),
	}
}

// Connect validates the endpoint and prepares the HTTP client. No bytes are
// exchanged until the first send.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	t.setState(StateConnecting)

	u, err := url.Parse(t.cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		t.setState(StateError)
		return mcperrors.ConnectionFailed(string(KindHTTP), t.cfg.URL, fmt.Errorf("invalid url %q", t.cfg.URL))
	}

	t.client = &http.Client{}
	t.setState(StateConnected)
	return nil
}

func (t *HTTPTransport) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	return t.client.Do(req)
}

// Send posts a message and discards any reply body.
func (t *HTTPTransport) Send(ctx context.Context, msg protocol.Message) error {
	if err := t.requireConnected("send"); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return mcperrors.TransportError(string(KindHTTP), "marshal", err)
	}

	resp, err := t.post(ctx, data)
	if err != nil {
		return mcperrors.TransportError(string(KindHTTP), "send", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return mcperrors.TransportError(string(KindHTTP), "send",
			fmt.Errorf("server returned %s", resp.Status))
	}
	return nil
}

// SendRequest posts the request and decodes the response from the body,
// verifying that the id matches.
func (t *HTTPTransport) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := t.requireConnected("send_request"); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, mcperrors.TransportError(string(KindHTTP), "marshal", err)
	}

	httpResp, err := t.post(ctx, data)
	if err != nil {
		return nil, mcperrors.TransportError(string(KindHTTP), "send_request", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 {
		return nil, mcperrors.TransportError(string(KindHTTP), "send_request",
			fmt.Errorf("server returned %s", httpResp.Status))
	}

	var resp protocol.Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, mcperrors.TransportError(string(KindHTTP), "decode_response", err)
	}

	if protocol.IDKey(resp.ID) != protocol.IDKey(req.ID) {
		return nil, mcperrors.TransportError(string(KindHTTP), "decode_response",
			fmt.Errorf("response id %v does not match request id %v", resp.ID, req.ID))
	}
	return &resp, nil
}

// SendRequestWithTimeout is SendRequest bounded by a deadline.
func (t *HTTPTransport) SendRequestWithTimeout(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	return sendRequestWithTimeout(ctx, t, req, timeout)
}

// Disconnect releases idle connections.
func (t *HTTPTransport) Disconnect(ctx context.Context) error {
	t.setState(StateClosing)
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.goDown(nil)
	t.setState(StateDisconnected)
	return nil
}
