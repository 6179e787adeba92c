package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/tx3-mcp/internal/platform/errors"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

// Resolver turns a transaction prototype and its coerced arguments into a
// serialized transaction.
type Resolver interface {
	Resolve(ctx context.Context, tx tx3.Transaction, irVersion string, args map[string]tx3.ArgValue) (string, error)
}

// DescribeResult is the payload of a describe operation.
type DescribeResult struct {
	Protocol    string            `json:"protocol" jsonschema:"protocol name"`
	Transaction string            `json:"transaction" jsonschema:"transaction name"`
	Parameters  map[string]string `json:"parameters" jsonschema:"declared parameter types keyed by parameter name"`
}

// Dispatcher serves the dynamic tool surface.
type Dispatcher struct {
	loader   protocols.Loader
	compiler tx3.Compiler
	router   *Router
	resolver Resolver
}

// NewDispatcher wires the loader, compiler and resolver together.
func NewDispatcher(loader protocols.Loader, compiler tx3.Compiler, resolver Resolver) (*Dispatcher, error) {
	router, err := NewRouter(loader, compiler)
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	return &Dispatcher{loader: loader, compiler: compiler, router: router, resolver: resolver}, nil
}

// ListTools loads the protocols and derives their tools.
func (d *Dispatcher) ListTools(ctx context.Context) ([]*mcp.Tool, error) {
	defs, err := d.router.Definitions(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTools(ctx, d.compiler, defs)
}

// CallTool routes a dynamic operation call. arguments is the raw JSON object
// sent by the caller; it may be empty.
func (d *Dispatcher) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*mcp.CallToolResult, error) {
	route, err := d.router.Route(ctx, name)
	if err != nil {
		return nil, err
	}
	switch route.Operation.Action {
	case ActionDescribe:
		result := Describe(route.Operation.Protocol, route.Transaction)
		return describeToolResult(result)
	case ActionResolve:
		raw, err := decodeArguments(name, arguments)
		if err != nil {
			return nil, err
		}
		tx, err := d.resolve(ctx, route, raw)
		if err != nil {
			return nil, err
		}
		return textResult(tx), nil
	default:
		return nil, operationNotFound(name)
	}
}

// ResolveStrings resolves a transaction from plain string arguments.
func (d *Dispatcher) ResolveStrings(ctx context.Context, protocolName, transactionName string, values map[string]string) (string, error) {
	protocol, tx, err := d.router.Transaction(ctx, protocolName, transactionName)
	if err != nil {
		return "", err
	}
	args, err := CoerceStringArgs(protocolName, tx, values)
	if err != nil {
		return "", err
	}
	return d.forward(ctx, protocol, tx, args)
}

func (d *Dispatcher) resolve(ctx context.Context, route Route, raw map[string]json.RawMessage) (string, error) {
	args, err := CoerceArgs(route.Operation.Protocol, route.Transaction, raw)
	if err != nil {
		return "", err
	}
	return d.forward(ctx, route.Protocol, route.Transaction, args)
}

func (d *Dispatcher) forward(ctx context.Context, protocol *tx3.Protocol, tx tx3.Transaction, args map[string]tx3.ArgValue) (string, error) {
	out, err := d.resolver.Resolve(ctx, tx, protocol.Version(), args)
	if err != nil {
		return "", resolveFailed(err)
	}
	return out, nil
}

// Describe reports the declared parameter types of a transaction.
func Describe(protocol string, tx tx3.Transaction) DescribeResult {
	params := make(map[string]string, len(tx.Params))
	for _, param := range tx.Params {
		params[param.Name] = string(param.Type)
	}
	return DescribeResult{Protocol: protocol, Transaction: tx.Name, Parameters: params}
}

func describeToolResult(result DescribeResult) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode describe result: %w", err)
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		StructuredContent: result,
	}, nil
}

func textResult(texts ...string) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(texts))
	for _, text := range texts {
		content = append(content, &mcp.TextContent{Text: text})
	}
	return &mcp.CallToolResult{Content: content}
}

func decodeArguments(name string, arguments json.RawMessage) (map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(arguments)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]json.RawMessage{}, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument,
			fmt.Sprintf("Arguments for operation `%s` must be an object", name),
			map[string]string{"operation": name}, err)
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}
	return raw, nil
}
