// Package transport provides the byte-level channels carrying MCP protocol
// messages. Four transports are supported: subprocess stdio, HTTP,
// Server-Sent Events, and WebSocket. The connection manager drives exactly
// one Transport instance per connection through the uniform interface below
// and never assumes a concrete implementation.
package transport

import (
	"context"
	"errors"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// Kind identifies the concrete transport implementation.
type Kind string

const (
	KindStdio     Kind = "stdio"
	KindHTTP      Kind = "http"
	KindSSE       Kind = "sse"
	KindWebSocket Kind = "websocket"
)

// State is the current lifecycle state of a transport.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateError
)

// String returns the string representation of a transport state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Transport is the uniform capability consumed by the connection manager:
// connect, disconnect, report state, send a message, and send a request and
// await its matched response (plain or with a deadline).
type Transport interface {
	// Kind returns the concrete transport kind.
	Kind() Kind

	// State returns the current transport state.
	State() State

	// Connect establishes the underlying channel (spawns the subprocess,
	// opens the socket or stream).
	Connect(ctx context.Context) error

	// Disconnect closes the underlying channel. Pending requests fail with
	// a connection-lost error.
	Disconnect(ctx context.Context) error

	// Send writes a message without waiting for a response.
	Send(ctx context.Context, msg protocol.Message) error

	// SendRequest sends a request and waits for the response with the
	// matching id.
	SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

	// SendRequestWithTimeout is SendRequest bounded by a deadline.
	// Exceeding it surfaces as a typed timeout error.
	SendRequestWithTimeout(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error)
}

// Config describes how to reach one server over one transport kind.
type Config struct {
	Kind Kind

	// Stdio fields
	Command string
	Args    []string
	Env     map[string]string

	// HTTP / SSE / WebSocket fields
	URL     string
	Headers map[string]string
}

// Options carries per-connection tuning shared by all transport kinds.
type Options struct {
	// RequestTimeout bounds a single request/response round trip when the
	// caller supplies no tighter deadline.
	RequestTimeout time.Duration

	// Logger receives transport-level diagnostics. Defaults to a no-op.
	Logger logging.Logger
}

func (o Options) withDefaults() Options {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
	return o
}

// New builds a Transport from the configuration. It fails fast with a
// validation error when a field required by the declared kind is missing;
// it never panics on bad configuration.
func New(cfg Config, opts Options) (Transport, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	switch cfg.Kind {
	case KindStdio:
		return newStdioTransport(cfg, opts), nil
	case KindHTTP:
		return newHTTPTransport(cfg, opts), nil
	case KindSSE:
		return newSSETransport(cfg, opts), nil
	case KindWebSocket:
		return newWebSocketTransport(cfg, opts), nil
	default:
		return nil, mcperrors.NewErrorf(
			mcperrors.CodeInvalidParameter,
			mcperrors.CategoryValidation,
			mcperrors.SeverityError,
			"unsupported transport kind: %q", cfg.Kind,
		)
	}
}

func validate(cfg Config) error {
	switch cfg.Kind {
	case KindStdio:
		if cfg.Command == "" {
			return mcperrors.MissingField(string(KindStdio), "a command")
		}
	case KindHTTP, KindSSE, KindWebSocket:
		if cfg.URL == "" {
			return mcperrors.MissingField(string(cfg.Kind), "a url")
		}
	default:
		return mcperrors.NewErrorf(
			mcperrors.CodeInvalidParameter,
			mcperrors.CategoryValidation,
			mcperrors.SeverityError,
			"unsupported transport kind: %q", cfg.Kind,
		)
	}
	return nil
}

// sendRequestWithTimeout bounds a single SendRequest call with a deadline
// and converts deadline expiry into the typed timeout error.
func sendRequestWithTimeout(ctx context.Context, t Transport, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := t.SendRequest(ctx, req)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, mcperrors.RequestTimeout(req.Method, timeout)
	}
	return resp, err
}
