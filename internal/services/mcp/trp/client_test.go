package trp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

type capturedRequest struct {
	header http.Header
	body   map[string]json.RawMessage
}

func newResolver(t *testing.T, status int, response string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	captured := &capturedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.header = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func swapTx() tx3.Transaction {
	return tx3.Transaction{Name: "swap", IR: []byte{0xab, 0xcd}}
}

func TestClientResolve(t *testing.T) {
	server, captured := newResolver(t, http.StatusOK, `{"jsonrpc":"2.0","result":{"tx":"84a40081"},"id":"1"}`)
	client, err := New(server.URL, "secret", server.Client(), time.Second)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.newID = func() string { return "req-1" }

	amount, _ := tx3.IntArg(big.NewInt(42))
	out, err := client.Resolve(context.Background(), swapTx(), "v1alpha1", map[string]tx3.ArgValue{
		"amount": amount,
		"sender": tx3.StringArg("addr_test1"),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if out != "84a40081" {
		t.Fatalf("tx = %q", out)
	}

	if got := captured.header.Get(APIKeyHeader); got != "secret" {
		t.Fatalf("api key header = %q", got)
	}
	var method, id, version string
	_ = json.Unmarshal(captured.body["method"], &method)
	_ = json.Unmarshal(captured.body["id"], &id)
	_ = json.Unmarshal(captured.body["jsonrpc"], &version)
	if method != ResolveMethod || id != "req-1" || version != "2.0" {
		t.Fatalf("unexpected envelope method=%q id=%q jsonrpc=%q", method, id, version)
	}
	want := `{"tir":{"bytecode":"abcd","encoding":"hex","version":"v1alpha1"},"args":{"amount":42,"sender":"addr_test1"}}`
	if string(captured.body["params"]) != want {
		t.Fatalf("params = %s, want %s", captured.body["params"], want)
	}
}

func TestClientResolveDefaultsID(t *testing.T) {
	server, captured := newResolver(t, http.StatusOK, `{"jsonrpc":"2.0","result":{"tx":"00"},"id":"x"}`)
	client, err := New(server.URL, "", nil, 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Resolve(context.Background(), swapTx(), "v1alpha1", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var id string
	_ = json.Unmarshal(captured.body["id"], &id)
	if len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
	if captured.header.Get(APIKeyHeader) != "" {
		t.Fatal("expected no api key header")
	}
	if !strings.Contains(string(captured.body["params"]), `"args":{}`) {
		t.Fatalf("expected empty args object, got %s", captured.body["params"])
	}
}

func TestClientResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "rpc error", status: http.StatusOK, body: `{"jsonrpc":"2.0","error":{"code":-32000,"message":"missing argument sender"},"id":"1"}`, wantErr: "missing argument sender"},
		{name: "rpc error with http status", status: http.StatusBadRequest, body: `{"jsonrpc":"2.0","error":{"code":-32602,"message":"bad params"},"id":"1"}`, wantErr: "bad params"},
		{name: "http status", status: http.StatusUnauthorized, body: `unauthorized`, wantErr: "resolver status 401: unauthorized"},
		{name: "malformed body", status: http.StatusOK, body: `{`, wantErr: "decode trp.resolve response"},
		{name: "missing result", status: http.StatusOK, body: `{"jsonrpc":"2.0","id":"1"}`, wantErr: "has no result"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, _ := newResolver(t, tc.status, tc.body)
			client, err := New(server.URL, "k", server.Client(), 0)
			if err != nil {
				t.Fatalf("new client: %v", err)
			}
			_, err = client.Resolve(context.Background(), swapTx(), "v1alpha1", nil)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestClientResolveRPCErrorIsTyped(t *testing.T) {
	server, _ := newResolver(t, http.StatusOK, `{"error":{"code":-32000,"message":"boom","data":{"detail":"x"}}}`)
	client, _ := New(server.URL, "k", server.Client(), 0)
	_, err := client.Resolve(context.Background(), swapTx(), "v1alpha1", nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T", err)
	}
	if rpcErr.Code != -32000 || string(rpcErr.Data) != `{"detail":"x"}` {
		t.Fatalf("unexpected rpc error %+v", rpcErr)
	}
}

func TestClientResolveTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	client, _ := New(server.URL, "k", server.Client(), 50*time.Millisecond)
	_, err := client.Resolve(context.Background(), swapTx(), "v1alpha1", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(" ", "k", nil, 0); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}
