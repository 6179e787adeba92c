package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/tx3-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

type staticLoader struct {
	defs []protocols.Definition
	err  error
}

func (l *staticLoader) Load(context.Context) ([]protocols.Definition, error) {
	if l.err != nil {
		return nil, l.err
	}
	return append([]protocols.Definition(nil), l.defs...), nil
}

type recordingResolver struct {
	mu    sync.Mutex
	tx    string
	err   error
	calls []map[string]tx3.ArgValue
}

func (r *recordingResolver) Resolve(_ context.Context, _ tx3.Transaction, _ string, args map[string]tx3.ArgValue) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	if r.err != nil {
		return "", r.err
	}
	return r.tx, nil
}

func (r *recordingResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// exchangeCompiler serves a fixed protocol for the "exchange" source and
// fails every other source.
var exchangeCompiler = tx3.CompilerFunc(func(_ context.Context, name, source string) (*tx3.Protocol, error) {
	if source != "exchange-src" {
		return nil, errors.New("parse error at 1:1")
	}
	return &tx3.Protocol{
		Name:      name,
		IRVersion: "v1alpha1",
		Transactions: []tx3.Transaction{{
			Name: "swap",
			Params: []tx3.Param{
				{Name: "amount", Type: tx3.ParamInt},
				{Name: "sender", Type: tx3.ParamAddress},
			},
			IR: []byte{0xbe, 0xef},
		}},
	}, nil
})

type serviceEnv struct {
	loader     *staticLoader
	resolver   *recordingResolver
	dispatcher *domain.Dispatcher
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	env := &serviceEnv{
		loader:   &staticLoader{defs: []protocols.Definition{{Name: "exchange", Source: "exchange-src"}}},
		resolver: &recordingResolver{tx: "84a400"},
	}
	dispatcher, err := domain.NewDispatcher(env.loader, exchangeCompiler, env.resolver)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	env.dispatcher = dispatcher
	return env
}

// connectClient serves a fresh server over in-memory transports and returns
// a connected client session.
func connectClient(t *testing.T, dispatcher *domain.Dispatcher) *mcp.ClientSession {
	t.Helper()
	server, err := New(dispatcher)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.serveWithTransport(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer connectCancel()
	session, err := client.Connect(connectCtx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("connect client: %v", err)
	}
	t.Cleanup(func() {
		_ = session.Close()
		cancel()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return session
}

// requireCallError accepts either a protocol error or an error tool result
// and checks its message.
func requireCallError(t *testing.T, result *mcp.CallToolResult, err error, wantMessage string) {
	t.Helper()
	if err != nil {
		if !strings.Contains(err.Error(), wantMessage) {
			t.Fatalf("expected error containing %q, got %v", wantMessage, err)
		}
		return
	}
	if result == nil || !result.IsError {
		t.Fatalf("expected error result, got %+v", result)
	}
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok && strings.Contains(text.Text, wantMessage) {
			return
		}
	}
	t.Fatalf("expected error result containing %q, got %+v", wantMessage, result.Content)
}

// requireProtocolError checks a JSON-RPC error's message and, when the
// client surfaces it, its code.
func requireProtocolError(t *testing.T, err error, wantCode int64, wantMessage string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q", wantMessage)
	}
	if !strings.Contains(err.Error(), wantMessage) {
		t.Fatalf("expected error containing %q, got %v", wantMessage, err)
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) && rpcErr.Code != wantCode {
		t.Fatalf("code = %d, want %d (%v)", rpcErr.Code, wantCode, err)
	}
}

func toolTexts(t *testing.T, result *mcp.CallToolResult) []string {
	t.Helper()
	if result == nil {
		t.Fatal("expected result")
	}
	texts := make([]string, 0, len(result.Content))
	for _, content := range result.Content {
		text, ok := content.(*mcp.TextContent)
		if !ok {
			t.Fatalf("expected text content, got %T", content)
		}
		texts = append(texts, text.Text)
	}
	return texts
}
