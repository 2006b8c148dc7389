package manager

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/transport"
)

var errFake = errors.New("fake transport failure")

// fakeTransport is an in-memory Transport that answers the handshake and
// ping and records everything sent through it.
type fakeTransport struct {
	mu    sync.Mutex
	state transport.State

	connectErr error
	initReject bool
	delay      time.Duration

	failPing atomicBool
	failAll  atomicBool

	requests []*protocol.Request
	notifs   []*protocol.Notification
}

// atomicBool avoids importing sync/atomic at every use site.
type atomicBool struct {
	mu  sync.Mutex
	val bool
}

func (b *atomicBool) Set(v bool) { b.mu.Lock(); b.val = v; b.mu.Unlock() }
func (b *atomicBool) Get() bool  { b.mu.Lock(); defer b.mu.Unlock(); return b.val }

func (f *fakeTransport) Kind() transport.Kind { return transport.KindStdio }

func (f *fakeTransport) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) setState(s transport.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		f.setState(transport.StateError)
		return f.connectErr
	}
	f.setState(transport.StateConnected)
	return nil
}

func (f *fakeTransport) Disconnect(ctx context.Context) error {
	f.setState(transport.StateDisconnected)
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, msg protocol.Message) error {
	if notif, ok := msg.(*protocol.Notification); ok {
		f.mu.Lock()
		f.notifs = append(f.notifs, notif)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeTransport) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, mcperrors.RequestTimeout(req.Method, delay)
		}
	}
	if f.failAll.Get() {
		return nil, mcperrors.TransportError("stdio", "send_request", errFake)
	}

	switch req.Method {
	case protocol.MethodInitialize:
		if f.initReject {
			return protocol.NewErrorResponse(req.ID, protocol.InternalError, "initialize rejected", nil)
		}
		return protocol.NewResponse(req.ID, protocol.InitializeResult{
			ProtocolVersion: protocol.ProtocolVersion,
			Capabilities:    map[string]interface{}{"tools": map[string]interface{}{}},
			ServerInfo:      &protocol.ServerInfo{Name: "fake-server", Version: "1.0"},
		})
	case protocol.MethodPing:
		if f.failPing.Get() {
			return nil, mcperrors.TransportError("stdio", "ping", errFake)
		}
		return protocol.NewResponse(req.ID, map[string]interface{}{})
	default:
		return protocol.NewResponse(req.ID, map[string]bool{"ok": true})
	}
}

func (f *fakeTransport) SendRequestWithTimeout(ctx context.Context, req *protocol.Request, timeout time.Duration) (*protocol.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return f.SendRequest(ctx, req)
}

func (f *fakeTransport) methodCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req.Method == method {
			n++
		}
	}
	return n
}

func (f *fakeTransport) notificationCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, notif := range f.notifs {
		if notif.Method == method {
			n++
		}
	}
	return n
}

// fakeFactory hands out one fakeTransport per creation, with per-creation
// failure injection.
type fakeFactory struct {
	mu          sync.Mutex
	created     []*fakeTransport
	connectErrs []error
	initRejects []bool
	delays      []time.Duration
}

func (ff *fakeFactory) factory(cfg transport.Config, opts transport.Options) (transport.Transport, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	ft := &fakeTransport{}
	n := len(ff.created)
	if n < len(ff.connectErrs) {
		ft.connectErr = ff.connectErrs[n]
	}
	if n < len(ff.initRejects) {
		ft.initReject = ff.initRejects[n]
	}
	if n < len(ff.delays) {
		ft.delay = ff.delays[n]
	}
	ff.created = append(ff.created, ft)
	return ft, nil
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.created)
}

func (ff *fakeFactory) transport(n int) *fakeTransport {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.created[n]
}

func testOptions() ConnectionOptions {
	return ConnectionOptions{
		RequestTimeout:     time.Second,
		MaxRetries:         2,
		HeartbeatInterval:  -1, // disabled unless a test opts in
		ReconnectDelayBase: 10 * time.Millisecond,
		ReconnectDelayMax:  time.Second,
	}
}

func newTestManager(ff *fakeFactory, extra ...Option) *Manager {
	opts := append([]Option{
		WithTransportFactory(ff.factory),
		WithConnectionOptions(testOptions()),
	}, extra...)
	return New(opts...)
}

func stdioSpec(name string) ServerSpec {
	return ServerSpec{Name: name, Kind: transport.KindStdio, Command: "fake-server"}
}

// waitEvent drains the channel until an event of the wanted type arrives.
func waitEvent(t *testing.T, ch <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", want)
			}
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

func TestConnectRegistersConnection(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)
	assert.NotEmpty(t, conn.ID)
	assert.Equal(t, StatusConnected, conn.Status)
	assert.Equal(t, protocol.ProtocolVersion, conn.ProtocolVersion)
	require.NotNil(t, conn.ServerInfo)
	assert.Equal(t, "fake-server", conn.ServerInfo.Name)

	byID, err := m.GetConnection(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, byID.ID)

	byName, err := m.GetConnectionByServer("srv-a")
	require.NoError(t, err)
	assert.Equal(t, conn.ID, byName.ID)

	assert.Len(t, m.Connections(), 1)

	// Handshake went out first, with the fixed id, then the initialized
	// notification.
	ft := ff.transport(0)
	require.NotEmpty(t, ft.requests)
	assert.Equal(t, protocol.MethodInitialize, ft.requests[0].Method)
	assert.Equal(t, handshakeRequestID, protocol.IDKey(ft.requests[0].ID))
	assert.Equal(t, 1, ft.notificationCount(protocol.MethodInitialized))
}

func TestConnectIdempotentPerServer(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	first, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	second, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, ff.count(), "second connect must not open a new transport")
	assert.Len(t, m.Connections(), 1)
}

func TestConnectRestartsFailedConnection(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	first, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	// Park the connection in the error state, as an exhausted reconnect
	// cycle would.
	cs, err := m.lookup(first.ID)
	require.NoError(t, err)
	cs.mu.Lock()
	cs.status = StatusError
	cs.lastErr = errFake
	cs.mu.Unlock()

	second, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)
	assert.Equal(t, StatusConnected, second.Status)
	assert.NotEqual(t, first.ID, second.ID, "a failed connection must be replaced, not returned")
	assert.Equal(t, 2, ff.count())
	assert.Equal(t, transport.StateDisconnected, ff.transport(0).State(), "the stale transport must be closed")

	got, err := m.GetConnectionByServer("srv-a")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Len(t, m.Connections(), 1)
}

func TestConnectHiddenUntilHandshakeCompletes(t *testing.T) {
	ff := &fakeFactory{delays: []time.Duration{300 * time.Millisecond}}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	type result struct {
		conn Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := m.Connect(context.Background(), stdioSpec("srv-slow"))
		done <- result{conn, err}
	}()

	// Wait until the dial is in flight, then look while the handshake
	// is still pending.
	require.Eventually(t, func() bool { return ff.count() == 1 }, time.Second, 5*time.Millisecond)
	_, err := m.GetConnectionByServer("srv-slow")
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionNotFound),
		"connection visible before handshake completed: err = %v", err)
	assert.Empty(t, m.Connections())

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, StatusConnected, res.conn.Status)

	got, err := m.GetConnectionByServer("srv-slow")
	require.NoError(t, err)
	assert.Equal(t, res.conn.ID, got.ID)
}

func TestConnectCoalescesConcurrentAttempts(t *testing.T) {
	ff := &fakeFactory{delays: []time.Duration{100 * time.Millisecond}}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	var wg sync.WaitGroup
	conns := make([]Connection, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], errs[i] = m.Connect(context.Background(), stdioSpec("srv-a"))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, conns[0].ID, conns[1].ID)
	assert.Equal(t, 1, ff.count(), "concurrent connects must share one attempt")
}

func TestCloseDuringConnect(t *testing.T) {
	ff := &fakeFactory{delays: []time.Duration{300 * time.Millisecond}}
	m := newTestManager(ff)

	errs := make(chan error, 1)
	go func() {
		_, err := m.Connect(context.Background(), stdioSpec("srv-a"))
		errs <- err
	}()

	require.Eventually(t, func() bool { return ff.count() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Close(context.Background()))

	require.Error(t, <-errs, "a connect resolving after close must not survive")
	assert.Empty(t, m.Connections())
	require.Eventually(t, func() bool {
		return ff.transport(0).State() == transport.StateDisconnected
	}, time.Second, 5*time.Millisecond)
}

func TestConnectHandshakeRejected(t *testing.T) {
	ff := &fakeFactory{initRejects: []bool{true}}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	_, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeHandshakeFailed), "err = %v", err)

	// The failed attempt must leave nothing behind
	assert.Empty(t, m.Connections())
	_, err = m.GetConnectionByServer("srv-a")
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionNotFound))

	// And the half-open transport must be closed
	assert.Equal(t, transport.StateDisconnected, ff.transport(0).State())

	// The server can be retried after the failure
	ff.mu.Lock()
	ff.initRejects = nil
	ff.mu.Unlock()
	_, err = m.Connect(context.Background(), stdioSpec("srv-a"))
	assert.NoError(t, err)
}

func TestConnectTransportFailure(t *testing.T) {
	ff := &fakeFactory{connectErrs: []error{errFake}}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	_, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.Error(t, err)
	assert.Empty(t, m.Connections())
}

func TestConnectRequiresName(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	_, err := m.Connect(context.Background(), ServerSpec{Kind: transport.KindStdio, Command: "x"})
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeMissingParameter), "err = %v", err)
}

func TestDisconnect(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(context.Background(), conn.ID))
	assert.Equal(t, transport.StateDisconnected, ff.transport(0).State())

	_, err = m.GetConnection(conn.ID)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionNotFound))

	// Disconnecting twice fails cleanly
	err = m.Disconnect(context.Background(), conn.ID)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionNotFound))
}

func TestDisconnectAll(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	for _, name := range []string{"srv-a", "srv-b", "srv-c"} {
		_, err := m.Connect(context.Background(), stdioSpec(name))
		require.NoError(t, err)
	}
	require.Len(t, m.Connections(), 3)

	require.NoError(t, m.DisconnectAll(context.Background()))
	assert.Empty(t, m.Connections())
}

func TestLifecycleEventOrder(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	events := m.Subscribe()
	defer m.Unsubscribe(events)

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)
	require.NoError(t, m.Disconnect(context.Background(), conn.ID))

	var got []EventType
	for len(got) < 3 {
		select {
		case evt := <-events:
			got = append(got, evt.Type)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, events so far: %v", got)
		}
	}
	assert.Equal(t, []EventType{EventEstablishing, EventEstablished, EventClosed}, got)
}

func TestSendDispatch(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	resp, err := m.Send(context.Background(), conn.ID, "tools/list", map[string]string{"cursor": ""})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)

	ft := ff.transport(0)
	assert.Equal(t, 1, ft.methodCount("tools/list"))

	// Dispatched ids come from the manager sequence, not the handshake
	last := ft.requests[len(ft.requests)-1]
	assert.True(t, strings.HasPrefix(protocol.IDKey(last.ID), "mcp-req-"), "id = %v", last.ID)

	// Nothing left pending once the response is in
	assert.Empty(t, m.PendingRequests())
}

func TestSendUnknownConnection(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	_, err := m.Send(context.Background(), "no-such-conn", "ping", nil)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionNotFound), "err = %v", err)
}

func TestSendOnInactiveConnection(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	cs, err := m.lookup(conn.ID)
	require.NoError(t, err)
	cs.mu.Lock()
	cs.status = StatusReconnecting
	cs.mu.Unlock()

	_, err = m.Send(context.Background(), conn.ID, "ping", nil)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeConnectionNotActive), "err = %v", err)
}

func TestSendWithTimeoutExpires(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	ff.transport(0).mu.Lock()
	ff.transport(0).delay = 500 * time.Millisecond
	ff.transport(0).mu.Unlock()

	start := time.Now()
	_, err = m.SendWithTimeout(context.Background(), conn.ID, "slow/op", nil, 30*time.Millisecond)
	require.Error(t, err)
	assert.True(t, mcperrors.IsTimeout(err), "err = %v", err)
	assert.Less(t, time.Since(start), 400*time.Millisecond)

	// Timed-out requests are cleared from the pending registry
	assert.Empty(t, m.PendingRequests())
}

func TestSendWithRetryAttempts(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	ft := ff.transport(0)
	ft.failAll.Set(true)

	_, err = m.SendWithRetry(context.Background(), conn.ID, "tools/list", nil, 2)
	require.Error(t, err)
	// One initial attempt plus exactly two retries
	assert.Equal(t, 3, ft.methodCount("tools/list"))
}

func TestSendWithRetryStopsOnSuccess(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	resp, err := m.SendWithRetry(context.Background(), conn.ID, "tools/list", nil, 5)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 1, ff.transport(0).methodCount("tools/list"))
}

func TestPendingRequestsTracking(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	ft := ff.transport(0)
	ft.mu.Lock()
	ft.delay = 200 * time.Millisecond
	ft.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Send(context.Background(), conn.ID, "slow/op", nil)
	}()

	require.Eventually(t, func() bool {
		return len(m.PendingRequests()) == 1
	}, time.Second, 5*time.Millisecond)

	pend := m.PendingRequests()[0]
	assert.Equal(t, "slow/op", pend.Method)
	assert.Equal(t, conn.ID, pend.ConnectionID)
	assert.Equal(t, "srv-a", pend.ServerName)

	<-done
	assert.Empty(t, m.PendingRequests())
}

func TestCancelRequest(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	ft := ff.transport(0)
	ft.mu.Lock()
	ft.delay = 300 * time.Millisecond
	ft.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Send(context.Background(), conn.ID, "slow/op", nil)
	}()

	require.Eventually(t, func() bool {
		return len(m.PendingRequests()) == 1
	}, time.Second, 5*time.Millisecond)
	requestID := m.PendingRequests()[0].RequestID

	require.NoError(t, m.CancelRequest(context.Background(), conn.ID, requestID))
	assert.Empty(t, m.PendingRequests())
	assert.Equal(t, 1, ft.notificationCount(protocol.MethodCancelled))

	// The notification carries the request id and the standard reason
	ft.mu.Lock()
	var cancelled *protocol.Notification
	for _, notif := range ft.notifs {
		if notif.Method == protocol.MethodCancelled {
			cancelled = notif
		}
	}
	ft.mu.Unlock()
	require.NotNil(t, cancelled)
	assert.Contains(t, string(cancelled.Params), requestID)
	assert.Contains(t, string(cancelled.Params), "Cancelled by client")

	<-done
}

func TestCancelRequestNotPending(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	conn, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	err = m.CancelRequest(context.Background(), conn.ID, "mcp-req-999")
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeInvalidParameter), "err = %v", err)
}

func TestNextRequestIDUnique(t *testing.T) {
	m := newTestManager(&fakeFactory{})
	defer m.Close(context.Background())

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := m.NextRequestID()
		assert.True(t, strings.HasPrefix(id, "mcp-req-"))
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestCloseRejectsNewConnections(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)

	_, err := m.Connect(context.Background(), stdioSpec("srv-a"))
	require.NoError(t, err)

	events := m.Subscribe()
	require.NoError(t, m.Close(context.Background()))

	_, err = m.Connect(context.Background(), stdioSpec("srv-b"))
	require.Error(t, err)

	// Event delivery shuts down with the manager
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestConnectionOptionsNormalization(t *testing.T) {
	opts := ConnectionOptions{}.normalized()
	assert.Equal(t, 30*time.Second, opts.RequestTimeout)
	assert.Equal(t, 30*time.Second, opts.HeartbeatInterval)
	assert.Equal(t, time.Second, opts.ReconnectDelayBase)
	assert.Equal(t, 60*time.Second, opts.ReconnectDelayMax)

	clamped := ConnectionOptions{
		ReconnectDelayBase: 10 * time.Second,
		ReconnectDelayMax:  time.Second,
	}.normalized()
	assert.Equal(t, clamped.ReconnectDelayBase, clamped.ReconnectDelayMax)

	negative := ConnectionOptions{MaxRetries: -5, HeartbeatInterval: -1}.normalized()
	assert.Equal(t, 0, negative.MaxRetries)
	assert.Equal(t, time.Duration(-1), negative.HeartbeatInterval)
}

func TestServerSpecOverridesDefaults(t *testing.T) {
	ff := &fakeFactory{}
	m := newTestManager(ff)
	defer m.Close(context.Background())

	override := testOptions()
	override.MaxRetries = 7
	spec := stdioSpec("srv-a")
	spec.Options = &override

	conn, err := m.Connect(context.Background(), spec)
	require.NoError(t, err)

	cs, err := m.lookup(conn.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, cs.opts.MaxRetries)
}
