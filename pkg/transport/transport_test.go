package transport

import (
	"context"
	"testing"
	"time"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantErr  bool
		wantCode int
	}{
		{
			name:    "stdio with command",
			cfg:     Config{Kind: KindStdio, Command: "mcp-server"},
			wantErr: false,
		},
		{
			name:     "stdio without command",
			cfg:      Config{Kind: KindStdio},
			wantErr:  true,
			wantCode: mcperrors.CodeMissingParameter,
		},
		{
			name:    "http with url",
			cfg:     Config{Kind: KindHTTP, URL: "http://localhost:8080/rpc"},
			wantErr: false,
		},
		{
			name:     "http without url",
			cfg:      Config{Kind: KindHTTP},
			wantErr:  true,
			wantCode: mcperrors.CodeMissingParameter,
		},
		{
			name:     "sse without url",
			cfg:      Config{Kind: KindSSE},
			wantErr:  true,
			wantCode: mcperrors.CodeMissingParameter,
		},
		{
			name:     "websocket without url",
			cfg:      Config{Kind: KindWebSocket},
			wantErr:  true,
			wantCode: mcperrors.CodeMissingParameter,
		},
		{
			name:     "unknown kind",
			cfg:      Config{Kind: Kind("carrier-pigeon")},
			wantErr:  true,
			wantCode: mcperrors.CodeInvalidParameter,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg, Options{})
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				if !mcperrors.IsCode(err, tt.wantCode) {
					t.Errorf("New() error code = %v, want %v", err, tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if tr.Kind() != tt.cfg.Kind {
				t.Errorf("Kind() = %v, want %v", tr.Kind(), tt.cfg.Kind)
			}
			if tr.State() != StateDisconnected {
				t.Errorf("State() = %v, want disconnected", tr.State())
			}
		})
	}
}

func TestBaseResolvesPendingRequest(t *testing.T) {
	b := newBase(KindStdio)
	ch := b.register("req-1")

	resp, _ := protocol.NewResponse("req-1", map[string]bool{"ok": true})
	if !b.resolve(resp) {
		t.Fatal("resolve() = false for a registered id")
	}

	got, err := b.await(context.Background(), "req-1", ch)
	if err != nil {
		t.Fatalf("await() error = %v", err)
	}
	if protocol.IDKey(got.ID) != "req-1" {
		t.Errorf("response id = %v", got.ID)
	}
}

func TestBaseDropsUnknownResponse(t *testing.T) {
	b := newBase(KindStdio)
	resp, _ := protocol.NewResponse("nobody-waiting", nil)
	if b.resolve(resp) {
		t.Error("resolve() = true for an unregistered id")
	}
}

func TestBaseNumericIDCorrelation(t *testing.T) {
	// A request sent with int id 7 comes back as float64 7 after JSON
	// decoding; both must map to the same pending slot.
	b := newBase(KindHTTP)
	ch := b.register(7)

	resp, _ := protocol.NewResponse(float64(7), nil)
	if !b.resolve(resp) {
		t.Fatal("resolve() failed to match numeric id across JSON decode")
	}
	if _, err := b.await(context.Background(), 7, ch); err != nil {
		t.Fatalf("await() error = %v", err)
	}
}

func TestBaseAwaitContextCancel(t *testing.T) {
	b := newBase(KindStdio)
	ch := b.register("req-2")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.await(ctx, "req-2", ch)
	if err != context.DeadlineExceeded {
		t.Fatalf("await() error = %v, want DeadlineExceeded", err)
	}

	// The slot must be gone so a late response is dropped
	resp, _ := protocol.NewResponse("req-2", nil)
	if b.resolve(resp) {
		t.Error("resolve() = true after the waiter gave up")
	}
}

func TestBaseGoDownFailsWaiters(t *testing.T) {
	b := newBase(KindWebSocket)
	b.setState(StateConnected)
	ch := b.register("req-3")

	done := make(chan error, 1)
	go func() {
		_, err := b.await(context.Background(), "req-3", ch)
		done <- err
	}()

	lost := mcperrors.ConnectionLost(string(KindWebSocket), "read_message", nil)
	b.goDown(lost)

	select {
	case err := <-done:
		if !mcperrors.IsCode(err, mcperrors.CodeConnectionLost) {
			t.Errorf("await() error = %v, want connection lost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("await() did not observe transport death")
	}

	if b.State() != StateError {
		t.Errorf("State() = %v, want error", b.State())
	}
}

func TestBaseGoDownIsIdempotent(t *testing.T) {
	b := newBase(KindStdio)
	b.goDown(nil)
	b.goDown(mcperrors.ConnectionLost("stdio", "read", nil))

	// First goDown wins: clean shutdown, disconnected state
	if b.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", b.State())
	}
}
