package manager

import (
	"context"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
)

// backoffExponentCap bounds the doubling so the computed delay cannot
// overflow before the max clamp applies.
const backoffExponentCap = 10

// backoffDelay returns the delay before reconnection attempt n+1:
// base doubled n times, capped at the configured maximum.
func backoffDelay(opts ConnectionOptions, attempt int) time.Duration {
	if attempt > backoffExponentCap {
		attempt = backoffExponentCap
	}
	d := opts.ReconnectDelayBase << uint(attempt)
	if d <= 0 || d > opts.ReconnectDelayMax {
		d = opts.ReconnectDelayMax
	}
	return d
}

// Reconnect tears down the connection's current transport and attempts to
// re-establish it, running the full handshake again. Up to MaxRetries+1
// attempts are made with exponential backoff between them. The connection
// id is stable across the cycle. Exhausting all attempts leaves the
// connection registered in the error state and returns the last failure;
// it is not retried further until Reconnect is called again or the
// connection is disconnected.
func (m *Manager) Reconnect(ctx context.Context, connectionID string) error {
	cs, err := m.lookup(connectionID)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	if cs.stopHeartbeat != nil {
		cs.stopHeartbeat()
		cs.stopHeartbeat = nil
	}
	oldTr := cs.transport
	cs.transport = nil
	cs.status = StatusReconnecting
	snap := cs.snapshotLocked()
	opts := cs.opts
	cs.mu.Unlock()

	if oldTr != nil {
		_ = oldTr.Disconnect(context.Background())
	}
	m.pending.removeConnection(connectionID)

	m.recordStatus(ctx, cs.spec.Name, StatusReconnecting, 0)
	m.publish(EventReconnecting, snap, nil)
	m.logger.Info("reconnecting",
		logging.String("server", cs.spec.Name),
		logging.String("connection_id", connectionID),
		logging.Int("max_retries", opts.MaxRetries))

	var lastErr error
	for attempt := 0; ; attempt++ {
		if !m.registered(connectionID) {
			// Disconnected while we were retrying.
			return mcperrors.ConnectionNotFound(connectionID)
		}

		lastErr = m.tryReconnect(ctx, cs)
		if lastErr == nil {
			if m.metrics != nil {
				m.metrics.RecordReconnectAttempt(ctx, cs.spec.Name, "success")
			}
			return nil
		}
		if m.metrics != nil {
			m.metrics.RecordReconnectAttempt(ctx, cs.spec.Name, "failure")
		}

		cs.mu.Lock()
		cs.reconnectAttempts++
		cs.lastErr = lastErr
		cs.mu.Unlock()
		m.logger.WithError(lastErr).Warn("reconnect attempt failed",
			logging.String("server", cs.spec.Name),
			logging.Int("attempt", attempt+1))

		if attempt >= opts.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(opts, attempt)):
		}
	}

	cs.mu.Lock()
	cs.status = StatusError
	snap = cs.snapshotLocked()
	cs.mu.Unlock()

	m.recordStatus(ctx, cs.spec.Name, StatusError, 0)
	m.publish(EventError, snap, lastErr)
	m.logger.WithError(lastErr).Error("reconnection exhausted",
		logging.String("server", cs.spec.Name),
		logging.Int("attempts", opts.MaxRetries+1))
	return lastErr
}

// tryReconnect makes a single re-establishment attempt. On success the new
// transport replaces the old one, the attempt counter resets, and a fresh
// heartbeat monitor starts.
func (m *Manager) tryReconnect(ctx context.Context, cs *connState) error {
	tr, err := m.establish(ctx, cs)
	if err != nil {
		return err
	}

	cs.mu.Lock()
	if cs.status != StatusReconnecting {
		// Disconnected or replaced while the attempt was in flight.
		cs.mu.Unlock()
		_ = tr.Disconnect(context.Background())
		return mcperrors.ConnectionNotFound(cs.id)
	}
	cs.transport = tr
	cs.status = StatusConnected
	cs.connectedAt = time.Now()
	cs.lastActivity = cs.connectedAt
	cs.reconnectAttempts = 0
	cs.lastErr = nil
	m.startHeartbeatLocked(cs)
	snap := cs.snapshotLocked()
	cs.mu.Unlock()

	m.recordStatus(ctx, cs.spec.Name, StatusConnected, 0)
	m.publish(EventEstablished, snap, nil)
	m.logger.Info("reconnected",
		logging.String("server", cs.spec.Name),
		logging.String("connection_id", cs.id))
	return nil
}
