package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

// Route is a decoded operation bound to its compiled protocol and the
// instantiated transaction prototype.
type Route struct {
	Operation   Operation
	Protocol    *tx3.Protocol
	Transaction tx3.Transaction
}

// Router resolves operation names against the loaded protocols.
type Router struct {
	loader   protocols.Loader
	compiler tx3.Compiler
}

// NewRouter builds a router over a loader and a compiler.
func NewRouter(loader protocols.Loader, compiler tx3.Compiler) (*Router, error) {
	if loader == nil {
		return nil, errors.New("protocol loader is required")
	}
	if compiler == nil {
		return nil, errors.New("protocol compiler is required")
	}
	return &Router{loader: loader, compiler: compiler}, nil
}

// Definitions loads the current protocol definitions.
func (r *Router) Definitions(ctx context.Context) ([]protocols.Definition, error) {
	defs, err := r.loader.Load(ctx)
	if err != nil {
		return nil, loadFailed(err)
	}
	return defs, nil
}

// Route decodes name and binds it to a transaction prototype.
func (r *Router) Route(ctx context.Context, name string) (Route, error) {
	op, err := ParseOperation(name)
	if err != nil {
		return Route{}, err
	}
	protocol, tx, err := r.Transaction(ctx, op.Protocol, op.Transaction)
	if err != nil {
		return Route{}, err
	}
	return Route{Operation: op, Protocol: protocol, Transaction: tx}, nil
}

// Protocol loads and compiles the named protocol.
func (r *Router) Protocol(ctx context.Context, protocolName string) (*tx3.Protocol, error) {
	defs, err := r.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	def, ok := protocols.Find(defs, protocolName)
	if !ok {
		return nil, protocolNotFound(protocolName)
	}
	protocol, err := r.compiler.Compile(ctx, def.Name, def.Source)
	if err != nil {
		return nil, compilationFailed(def.Name, err)
	}
	if protocol == nil {
		return nil, compilationFailed(def.Name, fmt.Errorf("compiler returned no protocol"))
	}
	return protocol, nil
}

// Transaction loads, compiles and instantiates one transaction.
func (r *Router) Transaction(ctx context.Context, protocolName, transactionName string) (*tx3.Protocol, tx3.Transaction, error) {
	protocol, err := r.Protocol(ctx, protocolName)
	if err != nil {
		return nil, tx3.Transaction{}, err
	}
	tx, err := protocol.NewTransaction(transactionName)
	if err != nil {
		if errors.Is(err, tx3.ErrTransactionNotFound) {
			return nil, tx3.Transaction{}, transactionNotFound(protocolName, transactionName)
		}
		return nil, tx3.Transaction{}, err
	}
	return protocol, tx, nil
}
