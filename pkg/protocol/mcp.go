package protocol

// ProtocolVersion is the MCP protocol revision this client negotiates.
const ProtocolVersion = "2024-11-05"

// Method names used by the connection manager.
const (
	// MethodInitialize is the first request on every connection.
	MethodInitialize = "initialize"

	// MethodPing is the liveness probe used by heartbeat monitoring.
	MethodPing = "ping"

	// MethodInitialized is the notification completing the handshake.
	MethodInitialized = "notifications/initialized"

	// MethodCancelled is the advisory request-cancellation notification.
	MethodCancelled = "notifications/cancelled"
)

// InitializeParams defines the parameters for the initialize request
type InitializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      ClientInfo             `json:"clientInfo"`
}

// ClientInfo provides additional information about the client
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult defines the response for the initialize request.
// Servers are not required to report either field; both are optional.
type InitializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion,omitempty"`
	Capabilities    map[string]interface{} `json:"capabilities,omitempty"`
	ServerInfo      *ServerInfo            `json:"serverInfo,omitempty"`
}

// ServerInfo provides additional information about the server
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializedParams is sent as a notification once the client is ready
type InitializedParams struct {
	// Intentionally empty as per specification
}

// CancelledParams carries the id of the request being cancelled and an
// optional human-readable reason.
type CancelledParams struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}
