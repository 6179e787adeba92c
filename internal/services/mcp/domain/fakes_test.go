package domain

import (
	"context"
	"fmt"
	"sync"

	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

type fakeLoader struct {
	defs []protocols.Definition
	err  error
}

func (f *fakeLoader) Load(context.Context) ([]protocols.Definition, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]protocols.Definition, len(f.defs))
	copy(out, f.defs)
	return out, nil
}

// fakeCompiler compiles a definition by looking its source up.
type fakeCompiler struct {
	mu        sync.Mutex
	protocols map[string]*tx3.Protocol
	errs      map[string]error
	calls     int
}

func (f *fakeCompiler) Compile(_ context.Context, name, source string) (*tx3.Protocol, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[source]; ok {
		return nil, err
	}
	protocol, ok := f.protocols[source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	copied := *protocol
	copied.Name = name
	return &copied, nil
}

type resolveCall struct {
	tx        tx3.Transaction
	irVersion string
	args      map[string]tx3.ArgValue
}

type fakeResolver struct {
	tx    string
	err   error
	calls []resolveCall
}

func (f *fakeResolver) Resolve(_ context.Context, tx tx3.Transaction, irVersion string, args map[string]tx3.ArgValue) (string, error) {
	f.calls = append(f.calls, resolveCall{tx: tx, irVersion: irVersion, args: args})
	if f.err != nil {
		return "", f.err
	}
	return f.tx, nil
}

func acmeProtocol() *tx3.Protocol {
	return &tx3.Protocol{
		IRVersion: "v1alpha1",
		Transactions: []tx3.Transaction{
			{
				Name: "swap",
				Params: []tx3.Param{
					{Name: "amount", Type: tx3.ParamInt},
					{Name: "sender", Type: tx3.ParamAddress},
					{Name: "partial", Type: tx3.ParamBool},
					{Name: "datum", Type: tx3.ParamBytes},
				},
				IR: []byte{0xca, 0xfe},
			},
			{
				Name:   "mint",
				Params: []tx3.Param{{Name: "quantity", Type: tx3.ParamInt}},
				IR:     []byte{0x01},
			},
		},
	}
}

type testEnv struct {
	loader     *fakeLoader
	compiler   *fakeCompiler
	resolver   *fakeResolver
	dispatcher *Dispatcher
}

func newTestEnv() *testEnv {
	env := &testEnv{
		loader: &fakeLoader{defs: []protocols.Definition{{Name: "acme", Source: "acme-src"}}},
		compiler: &fakeCompiler{
			protocols: map[string]*tx3.Protocol{"acme-src": acmeProtocol()},
			errs:      map[string]error{},
		},
		resolver: &fakeResolver{tx: "84a300"},
	}
	dispatcher, err := NewDispatcher(env.loader, env.compiler, env.resolver)
	if err != nil {
		panic(err)
	}
	env.dispatcher = dispatcher
	return env
}
