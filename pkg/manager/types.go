package manager

import (
	"time"

	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/transport"
)

// ServerSpec describes one MCP server the manager can connect to: a unique
// name, the transport kind, and the fields that kind requires. Options
// overrides the manager defaults for this server when non-nil.
type ServerSpec struct {
	Name string
	Kind transport.Kind

	// Stdio fields
	Command string
	Args    []string
	Env     map[string]string

	// HTTP / SSE / WebSocket fields
	URL     string
	Headers map[string]string

	Options *ConnectionOptions
}

func (s ServerSpec) transportConfig() transport.Config {
	return transport.Config{
		Kind:    s.Kind,
		Command: s.Command,
		Args:    s.Args,
		Env:     s.Env,
		URL:     s.URL,
		Headers: s.Headers,
	}
}

// ConnectionOptions tunes one connection. MaxRetries counts attempts beyond
// the first, for both request retry and reconnection; zero disables
// retrying. Zero durations are replaced by the defaults below.
type ConnectionOptions struct {
	// RequestTimeout bounds a single request/response round trip.
	RequestTimeout time.Duration

	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// HeartbeatInterval is the period between liveness probes. Negative
	// disables heartbeat monitoring for this connection.
	HeartbeatInterval time.Duration

	// ReconnectDelayBase is the first reconnection backoff delay; each
	// subsequent attempt doubles it up to ReconnectDelayMax.
	ReconnectDelayBase time.Duration
	ReconnectDelayMax  time.Duration
}

// DefaultConnectionOptions returns the standard tuning: 30s request timeout,
// 3 retries, 30s heartbeat, backoff from 1s capped at 60s.
func DefaultConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		RequestTimeout:     30 * time.Second,
		MaxRetries:         3,
		HeartbeatInterval:  30 * time.Second,
		ReconnectDelayBase: time.Second,
		ReconnectDelayMax:  60 * time.Second,
	}
}

func (o ConnectionOptions) normalized() ConnectionOptions {
	def := DefaultConnectionOptions()
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = def.RequestTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = def.HeartbeatInterval
	}
	if o.ReconnectDelayBase <= 0 {
		o.ReconnectDelayBase = def.ReconnectDelayBase
	}
	if o.ReconnectDelayMax < o.ReconnectDelayBase {
		o.ReconnectDelayMax = o.ReconnectDelayBase
	}
	return o
}

// Status is the lifecycle state of a managed connection.
type Status string

const (
	// StatusEstablishing means the transport is being opened and the
	// handshake has not completed yet.
	StatusEstablishing Status = "establishing"

	// StatusConnected means the handshake completed and the connection
	// can carry traffic.
	StatusConnected Status = "connected"

	// StatusReconnecting means the connection dropped and the manager is
	// attempting to restore it.
	StatusReconnecting Status = "reconnecting"

	// StatusError means reconnection attempts were exhausted. The
	// connection stays registered until explicitly disconnected or a
	// manual Reconnect succeeds.
	StatusError Status = "error"

	// StatusClosed means the connection was removed by Disconnect. Only
	// seen in the final lifecycle event, never in the registry.
	StatusClosed Status = "closed"
)

// Connection is a point-in-time snapshot of one managed connection.
type Connection struct {
	ID         string
	ServerName string
	Transport  transport.Kind
	Status     Status

	// Handshake results
	ProtocolVersion string
	Capabilities    map[string]interface{}
	ServerInfo      *protocol.ServerInfo

	ConnectedAt  time.Time
	LastActivity time.Time

	// ReconnectAttempts is the count of failed attempts in the current
	// reconnection cycle. Reset to zero on success.
	ReconnectAttempts int
	LastError         string
}

// EventType classifies connection lifecycle events.
type EventType string

const (
	EventEstablishing    EventType = "establishing"
	EventEstablished     EventType = "established"
	EventHeartbeatFailed EventType = "heartbeat_failed"
	EventReconnecting    EventType = "reconnecting"
	EventClosed          EventType = "closed"
	EventError           EventType = "error"
)

// Event is delivered to subscribers on every connection lifecycle change.
type Event struct {
	Type       EventType
	Connection Connection
	Err        error
	Time       time.Time
}

// PendingRequest describes one in-flight request awaiting its response.
type PendingRequest struct {
	RequestID    string
	ConnectionID string
	ServerName   string
	Method       string
	StartedAt    time.Time
}
