package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	mcperrors "github.com/ajitpratap0/mcp-connmgr-go/pkg/errors"
	"github.com/ajitpratap0/mcp-connmgr-go/pkg/protocol"
)

// rpcEcho answers every request with an empty success result for its id.
func rpcEcho(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("server received malformed request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp, _ := protocol.NewResponse(req.ID, map[string]bool{"ok": true})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestHTTPTransportRoundTrip(t *testing.T) {
	srv := httptest.NewServer(rpcEcho(t))
	defer srv.Close()

	tr, err := New(Config{Kind: KindHTTP, URL: srv.URL}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = tr.Disconnect(ctx) }()

	if tr.State() != StateConnected {
		t.Fatalf("State() = %v, want connected", tr.State())
	}

	req, _ := protocol.NewRequest("req-1", "ping", nil)
	resp, err := tr.SendRequest(ctx, req)
	if err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if protocol.IDKey(resp.ID) != "req-1" {
		t.Errorf("response id = %v, want req-1", resp.ID)
	}
	if resp.Error != nil {
		t.Errorf("response error = %v", resp.Error)
	}
}

func TestHTTPTransportMismatchedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, _ := protocol.NewResponse("someone-else", nil)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tr, err := New(Config{Kind: KindHTTP, URL: srv.URL}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = tr.Disconnect(ctx) }()

	req, _ := protocol.NewRequest("req-1", "ping", nil)
	if _, err := tr.SendRequest(ctx, req); err == nil {
		t.Fatal("SendRequest() error = nil, want id mismatch error")
	}
}

func TestHTTPTransportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr, err := New(Config{Kind: KindHTTP, URL: srv.URL}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = tr.Disconnect(ctx) }()

	notif, _ := protocol.NewNotification("notifications/initialized", nil)
	err = tr.Send(ctx, notif)
	if !mcperrors.IsCategory(err, mcperrors.CategoryTransport) {
		t.Fatalf("Send() error = %v, want transport error", err)
	}
}

func TestHTTPTransportBadURL(t *testing.T) {
	tr, err := New(Config{Kind: KindHTTP, URL: "not a url"}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := tr.Connect(context.Background()); err == nil {
		t.Fatal("Connect() error = nil, want connection failed")
	}
}

func TestHTTPTransportCustomHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		rpcEcho(t)(w, r)
	}))
	defer srv.Close()

	tr, err := New(Config{
		Kind:    KindHTTP,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token-123"},
	}, Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer func() { _ = tr.Disconnect(ctx) }()

	req, _ := protocol.NewRequest("req-1", "ping", nil)
	if _, err := tr.SendRequest(ctx, req); err != nil {
		t.Fatalf("SendRequest() error = %v", err)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization header = %q", gotAuth)
	}
}
