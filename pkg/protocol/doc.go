// Package protocol defines the JSON-RPC 2.0 message types and the MCP
// methods spoken by the connection manager: the initialize/initialized
// handshake, the ping liveness probe, and the cancellation notification.
package protocol
