// Package connmgr provides a transport-agnostic connection manager for MCP servers
package connmgr

import (
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/manager"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/transport"
)

// Version represents the current version of the module
const Version = "1.0.0"

// These exports provide direct access to the core components
var (
	// NewManager creates a new connection manager
	NewManager = manager.New

	// DefaultConnectionOptions returns the standard per-connection tuning
	DefaultConnectionOptions = manager.DefaultConnectionOptions
)

// Manager options
var (
	WithConnectionOptions = manager.WithConnectionOptions
	WithLogger            = manager.WithLogger
	WithMetrics           = manager.WithMetrics
	WithTracing           = manager.WithTracing
	WithClientInfo        = manager.WithClientInfo
	WithHeartbeat         = manager.WithHeartbeat
	WithAutoReconnect     = manager.WithAutoReconnect
)

// Transport kinds
const (
	KindStdio     = transport.KindStdio
	KindHTTP      = transport.KindHTTP
	KindSSE       = transport.KindSSE
	KindWebSocket = transport.KindWebSocket
)

// Core types
type (
	// Manager owns all MCP server connections for one client process
	Manager = manager.Manager

	// ServerSpec describes one MCP server to connect to
	ServerSpec = manager.ServerSpec

	// ConnectionOptions tunes one connection
	ConnectionOptions = manager.ConnectionOptions

	// Connection is a point-in-time snapshot of one managed connection
	Connection = manager.Connection

	// Event is a connection lifecycle event
	Event = manager.Event
)
