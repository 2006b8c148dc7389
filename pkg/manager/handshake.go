package manager

import (
	"context"
	"encoding/json"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/transport"
)

// handshakeRequestID is the fixed id of the initialize request. It is the
// first id ever used on a connection, so it can never collide with a
// dispatched request.
const handshakeRequestID = "init-1"

func clientCapabilities() map[string]interface{} {
	return map[string]interface{}{
		"roots": map[string]interface{}{
			"listChanged": true,
		},
		"sampling": map[string]interface{}{},
	}
}

// handshake runs the initialize exchange on a freshly connected transport:
// initialize request, then the initialized notification. Servers omitting
// protocolVersion or capabilities in the result are tolerated; a JSON-RPC
// error or a malformed result aborts the attempt.
func (m *Manager) handshake(ctx context.Context, tr transport.Transport, serverName string, opts ConnectionOptions) (*protocol.InitializeResult, error) {
	params := protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolVersion,
		Capabilities:    clientCapabilities(),
		ClientInfo:      m.clientInfo,
	}
	req, err := protocol.NewRequest(handshakeRequestID, protocol.MethodInitialize, params)
	if err != nil {
		return nil, mcperrors.HandshakeFailed(serverName, err)
	}

	resp, err := tr.SendRequestWithTimeout(ctx, req, opts.RequestTimeout)
	if err != nil {
		return nil, mcperrors.HandshakeFailed(serverName, err)
	}
	if resp.Error != nil {
		return nil, mcperrors.HandshakeFailed(serverName, resp.Error)
	}

	var result protocol.InitializeResult
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, mcperrors.HandshakeFailed(serverName, err)
		}
	}
	if result.ProtocolVersion == "" {
		result.ProtocolVersion = protocol.ProtocolVersion
	}

	notif, err := protocol.NewNotification(protocol.MethodInitialized, protocol.InitializedParams{})
	if err != nil {
		return nil, mcperrors.HandshakeFailed(serverName, err)
	}
	if err := tr.Send(ctx, notif); err != nil {
		return nil, mcperrors.HandshakeFailed(serverName, err)
	}

	return &result, nil
}
