// Package connmgr manages client-side connections to Model Context Protocol
// servers. It is the root of the module, providing convenient exports of the
// core components from the sub-packages.
//
// # Overview
//
// The module consists of several sub-packages:
//
//   - pkg/manager: The connection manager: lifecycle, handshake, heartbeat,
//     reconnection, request dispatch and lifecycle events
//   - pkg/transport: Stdio, HTTP, SSE and WebSocket transports behind a
//     uniform interface
//   - pkg/protocol: JSON-RPC 2.0 and MCP message types
//   - pkg/errors: Structured errors with codes, categories and context
//   - pkg/logging: Structured logging
//   - pkg/observability: Prometheus metrics and OpenTelemetry tracing
//
// # Connecting to a server
//
//	import (
//	    "context"
//
//	    connmgr "github.com/ajitpratap0/mcp-connmgr-go"
//	)
//
//	func main() {
//	    mgr := connmgr.NewManager()
//	    defer mgr.Close(context.Background())
//
//	    conn, err := mgr.Connect(context.Background(), connmgr.ServerSpec{
//	        Name:    "filesystem",
//	        Kind:    connmgr.KindStdio,
//	        Command: "mcp-server-filesystem",
//	        Args:    []string{"/data"},
//	    })
//	    if err != nil {
//	        // Handle error
//	    }
//
//	    resp, err := mgr.Send(context.Background(), conn.ID, "tools/list", nil)
//	    _ = resp
//	    _ = err
//	}
//
// The manager keeps the connection healthy: it probes the server with ping
// requests and reconnects with exponential backoff when a probe fails.
// Subscribe returns a channel of lifecycle events for callers that need to
// observe state changes.
package connmgr
