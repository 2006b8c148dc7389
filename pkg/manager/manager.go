// Package manager maintains a registry of MCP server connections and drives
// their lifecycle: establishment with the initialize handshake, heartbeat
// monitoring, reconnection with exponential backoff, request dispatch and
// cancellation, and lifecycle event fan-out to subscribers.
package manager

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/logging"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/observability"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/transport"
)

// TransportFactory builds the transport for one connection. The default is
// transport.New; tests inject their own.
type TransportFactory func(cfg transport.Config, opts transport.Options) (transport.Transport, error)

// connState is the manager's internal record for one connection. The mutex
// guards every field; it is never held across transport I/O.
type connState struct {
	mu sync.Mutex

	id   string
	spec ServerSpec
	opts ConnectionOptions

	transport transport.Transport
	status    Status

	protocolVersion string
	capabilities    map[string]interface{}
	serverInfo      *protocol.ServerInfo

	connectedAt  time.Time
	lastActivity time.Time

	reconnectAttempts int
	lastErr           error

	stopHeartbeat context.CancelFunc
}

func (c *connState) snapshotLocked() Connection {
	conn := Connection{
		ID:                c.id,
		ServerName:        c.spec.Name,
		Transport:         c.spec.Kind,
		Status:            c.status,
		ProtocolVersion:   c.protocolVersion,
		Capabilities:      c.capabilities,
		ServerInfo:        c.serverInfo,
		ConnectedAt:       c.connectedAt,
		LastActivity:      c.lastActivity,
		ReconnectAttempts: c.reconnectAttempts,
	}
	if c.lastErr != nil {
		conn.LastError = c.lastErr.Error()
	}
	return conn
}

func (c *connState) snapshot() Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *connState) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// Manager owns all MCP server connections for one client process.
type Manager struct {
	mu         sync.RWMutex
	conns      map[string]*connState
	byServer   map[string]string
	connecting map[string]chan struct{}

	defaults     ConnectionOptions
	clientInfo   protocol.ClientInfo
	logger       logging.Logger
	metrics      observability.MetricsProvider
	tracer       *observability.TracingProvider
	newTransport TransportFactory

	heartbeatEnabled bool
	autoReconnect    bool

	events  *broadcaster
	pending *pendingRegistry

	requestSeq atomic.Uint64
	closed     atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithConnectionOptions sets the default tuning applied to every connection
// whose ServerSpec carries no override.
func WithConnectionOptions(opts ConnectionOptions) Option {
	return func(m *Manager) { m.defaults = opts.normalized() }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMetrics sets the metrics provider. Nil disables metrics.
func WithMetrics(p observability.MetricsProvider) Option {
	return func(m *Manager) { m.metrics = p }
}

// WithTracing sets the tracing provider. Nil disables tracing.
func WithTracing(tp *observability.TracingProvider) Option {
	return func(m *Manager) { m.tracer = tp }
}

// WithTransportFactory overrides how transports are built.
func WithTransportFactory(f TransportFactory) Option {
	return func(m *Manager) { m.newTransport = f }
}

// WithClientInfo sets the client identity sent during the handshake.
func WithClientInfo(info protocol.ClientInfo) Option {
	return func(m *Manager) { m.clientInfo = info }
}

// WithHeartbeat enables or disables heartbeat monitoring globally.
func WithHeartbeat(enabled bool) Option {
	return func(m *Manager) { m.heartbeatEnabled = enabled }
}

// WithAutoReconnect enables or disables automatic reconnection after a
// failed heartbeat.
func WithAutoReconnect(enabled bool) Option {
	return func(m *Manager) { m.autoReconnect = enabled }
}

// New creates a connection manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		conns:            make(map[string]*connState),
		byServer:         make(map[string]string),
		connecting:       make(map[string]chan struct{}),
		defaults:         DefaultConnectionOptions(),
		clientInfo:       protocol.ClientInfo{Name: "mcp-connmgr-go", Version: "1.0.0"},
		logger:           logging.Nop(),
		newTransport:     transport.New,
		heartbeatEnabled: true,
		autoReconnect:    true,
		pending:          newPendingRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.events = newBroadcaster(func() {
		if m.metrics != nil {
			m.metrics.RecordDroppedEvent(context.Background())
		}
	})
	m.logger = m.logger.WithFields(logging.String("component", "ConnectionManager"))
	return m
}

// Connect establishes a connection to the named server: it opens the
// transport, runs the initialize handshake, registers the connection and
// starts heartbeat monitoring. The connection enters the registry only
// after the handshake succeeds. Connecting to a server that already has a
// Connected entry returns that entry unchanged; an entry in any other
// state is torn down and the lifecycle starts over. Concurrent connects
// to the same server wait for the attempt in flight.
func (m *Manager) Connect(ctx context.Context, spec ServerSpec) (Connection, error) {
	if spec.Name == "" {
		return Connection{}, mcperrors.NewErrorf(
			mcperrors.CodeMissingParameter,
			mcperrors.CategoryValidation,
			mcperrors.SeverityError,
			"server spec requires a name",
		)
	}

	opts := m.defaults
	if spec.Options != nil {
		opts = spec.Options.normalized()
	}

	for {
		m.mu.Lock()
		if m.closed.Load() {
			m.mu.Unlock()
			return Connection{}, errManagerClosed()
		}
		if existingID, ok := m.byServer[spec.Name]; ok {
			existing := m.conns[existingID]
			m.mu.Unlock()
			snap := existing.snapshot()
			if snap.Status == StatusConnected {
				return snap, nil
			}
			// Stale record, failed or mid-reconnect: a fresh connect by
			// name restarts the lifecycle.
			m.retire(existing)
			continue
		}
		if inflight, ok := m.connecting[spec.Name]; ok {
			m.mu.Unlock()
			select {
			case <-inflight:
			case <-ctx.Done():
				return Connection{}, ctx.Err()
			}
			continue
		}
		done := make(chan struct{})
		m.connecting[spec.Name] = done
		m.mu.Unlock()

		return m.dial(ctx, spec, opts, done)
	}
}

// dial runs one connection attempt end to end. The caller holds the
// connecting slot for spec.Name; dial releases it when the attempt
// resolves either way.
func (m *Manager) dial(ctx context.Context, spec ServerSpec, opts ConnectionOptions, done chan struct{}) (Connection, error) {
	defer func() {
		m.mu.Lock()
		delete(m.connecting, spec.Name)
		m.mu.Unlock()
		close(done)
	}()

	cs := &connState{
		id:     uuid.NewString(),
		spec:   spec,
		opts:   opts,
		status: StatusEstablishing,
	}

	m.publish(EventEstablishing, cs.snapshot(), nil)
	m.logger.Info("connecting",
		logging.String("server", spec.Name),
		logging.String("transport", string(spec.Kind)),
		logging.String("connection_id", cs.id))

	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.StartConnectionSpan(ctx, "connect", spec.Name)
		defer span.End()
	}

	started := time.Now()
	tr, err := m.establish(ctx, cs)
	if err != nil {
		if m.tracer != nil {
			m.tracer.RecordError(ctx, err)
		}
		m.recordConnect(ctx, spec.Kind, "failure", time.Since(started))
		m.publish(EventError, cs.snapshot(), err)
		m.logger.WithError(err).Error("connect failed", logging.String("server", spec.Name))
		return Connection{}, err
	}

	cs.mu.Lock()
	cs.transport = tr
	cs.status = StatusConnected
	cs.connectedAt = time.Now()
	cs.lastActivity = cs.connectedAt
	cs.mu.Unlock()

	m.mu.Lock()
	if m.closed.Load() {
		m.mu.Unlock()
		_ = tr.Disconnect(context.Background())
		return Connection{}, errManagerClosed()
	}
	m.conns[cs.id] = cs
	m.byServer[spec.Name] = cs.id
	m.mu.Unlock()

	m.recordStatus(ctx, spec.Name, StatusConnected, +1)

	cs.mu.Lock()
	if cs.status != StatusConnected {
		// Lost a race with teardown right after registration.
		snap := cs.snapshotLocked()
		cs.mu.Unlock()
		return snap, errManagerClosed()
	}
	m.startHeartbeatLocked(cs)
	snap := cs.snapshotLocked()
	cs.mu.Unlock()

	m.recordConnect(ctx, spec.Kind, "success", time.Since(started))
	m.publish(EventEstablished, snap, nil)
	m.logger.Info("connected",
		logging.String("server", spec.Name),
		logging.String("connection_id", cs.id),
		logging.String("protocol_version", snap.ProtocolVersion))
	return snap, nil
}

func errManagerClosed() error {
	return mcperrors.NewErrorf(
		mcperrors.CodeConnectionNotActive,
		mcperrors.CategoryInternal,
		mcperrors.SeverityError,
		"connection manager is closed",
	)
}

// establish opens the transport and runs the handshake, storing the
// handshake results on the record. The transport is returned unregistered
// so the caller decides when it becomes live.
func (m *Manager) establish(ctx context.Context, cs *connState) (transport.Transport, error) {
	tr, err := m.newTransport(cs.spec.transportConfig(), transport.Options{
		RequestTimeout: cs.opts.RequestTimeout,
		Logger:         m.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := tr.Connect(ctx); err != nil {
		return nil, err
	}

	result, err := m.handshake(ctx, tr, cs.spec.Name, cs.opts)
	if err != nil {
		_ = tr.Disconnect(context.Background())
		return nil, err
	}

	cs.mu.Lock()
	cs.protocolVersion = result.ProtocolVersion
	cs.capabilities = result.Capabilities
	cs.serverInfo = result.ServerInfo
	cs.mu.Unlock()
	return tr, nil
}

// Disconnect removes the connection from the registry, stops its heartbeat
// and closes its transport. Unknown ids fail with a not-found error.
func (m *Manager) Disconnect(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	cs, ok := m.conns[connectionID]
	if !ok {
		m.mu.Unlock()
		return mcperrors.ConnectionNotFound(connectionID)
	}
	delete(m.conns, connectionID)
	delete(m.byServer, cs.spec.Name)
	m.mu.Unlock()

	cs.mu.Lock()
	if cs.stopHeartbeat != nil {
		cs.stopHeartbeat()
		cs.stopHeartbeat = nil
	}
	tr := cs.transport
	cs.transport = nil
	cs.status = StatusClosed
	snap := cs.snapshotLocked()
	cs.mu.Unlock()

	m.pending.removeConnection(connectionID)

	var err error
	if tr != nil {
		err = tr.Disconnect(ctx)
	}

	m.recordStatus(ctx, cs.spec.Name, StatusClosed, -1)
	m.publish(EventClosed, snap, nil)
	m.logger.Info("disconnected",
		logging.String("server", cs.spec.Name),
		logging.String("connection_id", connectionID))
	return err
}

// DisconnectAll disconnects every registered connection concurrently and
// returns the first error encountered.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	m.mu.RLock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for _, id := range ids {
		id := id
		g.Go(func() error {
			err := m.Disconnect(ctx, id)
			if mcperrors.IsCode(err, mcperrors.CodeConnectionNotFound) {
				// Raced with an explicit Disconnect.
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// GetConnection returns a snapshot of the connection with the given id.
func (m *Manager) GetConnection(connectionID string) (Connection, error) {
	m.mu.RLock()
	cs, ok := m.conns[connectionID]
	m.mu.RUnlock()
	if !ok {
		return Connection{}, mcperrors.ConnectionNotFound(connectionID)
	}
	return cs.snapshot(), nil
}

// GetConnectionByServer returns a snapshot of the connection registered for
// the named server.
func (m *Manager) GetConnectionByServer(serverName string) (Connection, error) {
	m.mu.RLock()
	id, ok := m.byServer[serverName]
	var cs *connState
	if ok {
		cs = m.conns[id]
	}
	m.mu.RUnlock()
	if cs == nil {
		return Connection{}, mcperrors.ConnectionNotFound(serverName)
	}
	return cs.snapshot(), nil
}

// Connections returns snapshots of all registered connections, ordered by
// server name.
func (m *Manager) Connections() []Connection {
	m.mu.RLock()
	states := make([]*connState, 0, len(m.conns))
	for _, cs := range m.conns {
		states = append(states, cs)
	}
	m.mu.RUnlock()

	out := make([]Connection, 0, len(states))
	for _, cs := range states {
		out = append(out, cs.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ServerName < out[j].ServerName
	})
	return out
}

// PendingRequests returns all in-flight requests, oldest first.
func (m *Manager) PendingRequests() []PendingRequest {
	return m.pending.list()
}

// Subscribe returns a channel receiving all connection lifecycle events.
// Delivery is best-effort: a subscriber that stops draining loses events
// once its buffer fills.
func (m *Manager) Subscribe() <-chan Event {
	return m.events.subscribe()
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Manager) Unsubscribe(ch <-chan Event) {
	m.events.unsubscribe(ch)
}

// NextRequestID returns a process-unique request id.
func (m *Manager) NextRequestID() string {
	return fmt.Sprintf("mcp-req-%d", m.requestSeq.Add(1))
}

// Close disconnects everything and shuts down event delivery. The manager
// accepts no new connections afterwards.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := m.DisconnectAll(ctx)
	m.events.close()
	return err
}

// lookup fetches the live record for a connection id.
func (m *Manager) lookup(connectionID string) (*connState, error) {
	m.mu.RLock()
	cs, ok := m.conns[connectionID]
	m.mu.RUnlock()
	if !ok {
		return nil, mcperrors.ConnectionNotFound(connectionID)
	}
	return cs, nil
}

// registered reports whether the connection is still in the registry.
func (m *Manager) registered(connectionID string) bool {
	m.mu.RLock()
	_, ok := m.conns[connectionID]
	m.mu.RUnlock()
	return ok
}

// retire tears down a registered connection that is being replaced by a
// fresh connect: it is unregistered, its heartbeat and pending requests
// are cleared, and its transport is closed.
func (m *Manager) retire(cs *connState) {
	m.mu.Lock()
	if m.conns[cs.id] != cs {
		// Already removed by Disconnect or another replacement.
		m.mu.Unlock()
		return
	}
	delete(m.conns, cs.id)
	if m.byServer[cs.spec.Name] == cs.id {
		delete(m.byServer, cs.spec.Name)
	}
	m.mu.Unlock()

	cs.mu.Lock()
	if cs.stopHeartbeat != nil {
		cs.stopHeartbeat()
		cs.stopHeartbeat = nil
	}
	tr := cs.transport
	cs.transport = nil
	cs.status = StatusClosed
	snap := cs.snapshotLocked()
	cs.mu.Unlock()

	m.pending.removeConnection(cs.id)
	if tr != nil {
		_ = tr.Disconnect(context.Background())
	}

	m.recordStatus(context.Background(), cs.spec.Name, StatusClosed, -1)
	m.publish(EventClosed, snap, nil)
	m.logger.Info("replacing failed connection",
		logging.String("server", cs.spec.Name),
		logging.String("connection_id", cs.id))
}

func (m *Manager) publish(t EventType, conn Connection, err error) {
	m.events.publish(Event{
		Type:       t,
		Connection: conn,
		Err:        err,
		Time:       time.Now(),
	})
}

func (m *Manager) recordConnect(ctx context.Context, kind transport.Kind, status string, d time.Duration) {
	if m.metrics != nil {
		m.metrics.RecordConnect(ctx, string(kind), status, d)
	}
}

func (m *Manager) recordStatus(ctx context.Context, serverName string, status Status, activeDelta int) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordConnectionStatus(ctx, serverName, string(status))
	if activeDelta != 0 {
		m.metrics.RecordActiveConnections(ctx, activeDelta)
	}
}
