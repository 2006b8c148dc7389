package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/transport"
)

// startHeartbeatLocked launches the heartbeat monitor for one connection.
// Caller holds cs.mu. A previous monitor, if any, is stopped first so the
// connection never has two.
func (m *Manager) startHeartbeatLocked(cs *connState) {
	if cs.stopHeartbeat != nil {
		cs.stopHeartbeat()
		cs.stopHeartbeat = nil
	}
	if !m.heartbeatEnabled || cs.opts.HeartbeatInterval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	cs.stopHeartbeat = cancel
	go m.heartbeatLoop(ctx, cs)
}

// heartbeatLoop probes the connection every HeartbeatInterval. On the first
// failed probe it emits a heartbeat_failed event, then either hands the
// connection to the reconnect loop or marks it failed, and exits. A
// successful reconnect starts a fresh monitor.
func (m *Manager) heartbeatLoop(ctx context.Context, cs *connState) {
	ticker := time.NewTicker(cs.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := m.probe(ctx, cs)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			// Stopped mid-probe by Disconnect or Reconnect.
			return
		}

		m.logger.WithError(err).Warn("heartbeat failed",
			logging.String("server", cs.spec.Name),
			logging.String("connection_id", cs.id))
		if m.metrics != nil {
			m.metrics.RecordHeartbeatFailure(ctx, cs.spec.Name)
		}
		m.publish(EventHeartbeatFailed, cs.snapshot(), err)

		if m.autoReconnect {
			// Reconnect owns the connection from here; a new monitor is
			// started if it succeeds.
			_ = m.Reconnect(context.Background(), cs.id)
			return
		}

		cs.mu.Lock()
		cs.status = StatusError
		cs.lastErr = err
		cs.stopHeartbeat = nil
		snap := cs.snapshotLocked()
		cs.mu.Unlock()
		m.recordStatus(context.Background(), cs.spec.Name, StatusError, 0)
		m.publish(EventError, snap, err)
		return
	}
}

// probe checks transport liveness and sends one ping request.
func (m *Manager) probe(ctx context.Context, cs *connState) error {
	cs.mu.Lock()
	tr := cs.transport
	status := cs.status
	cs.mu.Unlock()

	if status != StatusConnected || tr == nil {
		return mcperrors.ConnectionNotActive(cs.id, string(status))
	}
	if tr.State() != transport.StateConnected {
		return mcperrors.ConnectionLost(string(tr.Kind()), "heartbeat", nil)
	}

	req, err := protocol.NewRequest("ping-"+uuid.NewString(), protocol.MethodPing, nil)
	if err != nil {
		return err
	}
	if _, err := tr.SendRequestWithTimeout(ctx, req, cs.opts.RequestTimeout); err != nil {
		return err
	}
	cs.touch()
	return nil
}
