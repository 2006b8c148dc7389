package manager

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// Send dispatches a request on the given connection and waits for its
// response, bounded by the connection's request timeout. The connection
// must be in the connected state. A JSON-RPC error object in the response
// is returned to the caller inside the response, not as a Go error.
func (m *Manager) Send(ctx context.Context, connectionID, method string, params interface{}) (*protocol.Response, error) {
	cs, err := m.lookup(connectionID)
	if err != nil {
		return nil, err
	}
	return m.dispatch(ctx, cs, method, params, cs.opts.RequestTimeout)
}

// SendWithTimeout is Send with an explicit deadline for this one request.
// Exceeding it returns a timeout error; timed-out requests are never
// retried automatically.
func (m *Manager) SendWithTimeout(ctx context.Context, connectionID, method string, params interface{}, timeout time.Duration) (*protocol.Response, error) {
	cs, err := m.lookup(connectionID)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = cs.opts.RequestTimeout
	}
	return m.dispatch(ctx, cs, method, params, timeout)
}

// SendWithRetry dispatches the request up to maxRetries+1 times, backing
// off between attempts with the connection's reconnect delay schedule. A
// response carrying a JSON-RPC error object counts as delivered and is not
// retried. Negative maxRetries uses the connection's configured value.
func (m *Manager) SendWithRetry(ctx context.Context, connectionID, method string, params interface{}, maxRetries int) (*protocol.Response, error) {
	cs, err := m.lookup(connectionID)
	if err != nil {
		return nil, err
	}
	if maxRetries < 0 {
		maxRetries = cs.opts.MaxRetries
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := m.dispatch(ctx, cs, method, params, cs.opts.RequestTimeout)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt >= maxRetries {
			break
		}
		m.logger.WithError(err).Debug("retrying request",
			logging.String("method", method),
			logging.Int("attempt", attempt+1))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffDelay(cs.opts, attempt)):
		}
	}
	return nil, lastErr
}

// dispatch performs one request/response round trip: status check, pending
// registration, transport call, activity bump.
func (m *Manager) dispatch(ctx context.Context, cs *connState, method string, params interface{}, timeout time.Duration) (*protocol.Response, error) {
	cs.mu.Lock()
	tr := cs.transport
	status := cs.status
	cs.mu.Unlock()

	if status != StatusConnected || tr == nil {
		return nil, mcperrors.ConnectionNotActive(cs.id, string(status))
	}

	requestID := m.NextRequestID()
	req, err := protocol.NewRequest(requestID, method, params)
	if err != nil {
		return nil, err
	}

	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.StartMethodSpan(ctx, method)
		defer span.End()
	}

	m.pending.add(PendingRequest{
		RequestID:    requestID,
		ConnectionID: cs.id,
		ServerName:   cs.spec.Name,
		Method:       method,
		StartedAt:    time.Now(),
	})
	defer m.pending.remove(requestID)

	started := time.Now()
	resp, err := tr.SendRequestWithTimeout(ctx, req, timeout)
	m.recordRequest(ctx, method, err, time.Since(started))
	if err != nil {
		if m.tracer != nil {
			m.tracer.RecordError(ctx, err)
		}
		return nil, err
	}

	cs.touch()
	return resp, nil
}

// CancelRequest sends an advisory cancellation notification for an
// in-flight request and drops it from the pending registry. The request
// must be pending on the given connection; cancellation of a request that
// already completed is an error. The server may still deliver a response,
// which is discarded by the caller's own context handling.
func (m *Manager) CancelRequest(ctx context.Context, connectionID, requestID string) error {
	cs, err := m.lookup(connectionID)
	if err != nil {
		return err
	}

	pend, ok := m.pending.get(requestID)
	if !ok || pend.ConnectionID != connectionID {
		return mcperrors.NewErrorf(
			mcperrors.CodeInvalidParameter,
			mcperrors.CategoryValidation,
			mcperrors.SeverityError,
			"request %s is not pending on connection %s", requestID, connectionID,
		)
	}

	cs.mu.Lock()
	tr := cs.transport
	status := cs.status
	cs.mu.Unlock()
	if status != StatusConnected || tr == nil {
		return mcperrors.ConnectionNotActive(connectionID, string(status))
	}

	notif, err := protocol.NewNotification(protocol.MethodCancelled, protocol.CancelledParams{
		RequestID: requestID,
		Reason:    "Cancelled by client",
	})
	if err != nil {
		return err
	}
	if err := tr.Send(ctx, notif); err != nil {
		m.recordNotification(ctx, protocol.MethodCancelled, "failure")
		return err
	}

	m.pending.remove(requestID)
	m.recordNotification(ctx, protocol.MethodCancelled, "success")
	m.logger.Debug("request cancelled",
		logging.String("request_id", requestID),
		logging.String("method", pend.Method),
		logging.String("connection_id", connectionID))
	return nil
}

func (m *Manager) recordRequest(ctx context.Context, method string, err error, d time.Duration) {
	if m.metrics == nil {
		return
	}
	status := "success"
	switch {
	case mcperrors.IsTimeout(err):
		status = "timeout"
	case err != nil:
		status = "failure"
	}
	m.metrics.RecordRequest(ctx, method, status, d)
}

func (m *Manager) recordNotification(ctx context.Context, method, status string) {
	if m.metrics != nil {
		m.metrics.RecordNotification(ctx, method, status)
	}
}
