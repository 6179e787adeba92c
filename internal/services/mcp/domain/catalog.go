package domain

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ListProtocolsInput is the (empty) input of list_protocols.
type ListProtocolsInput struct{}

// ListProtocolsResult lists the loaded protocol names.
type ListProtocolsResult struct {
	Protocols []string `json:"protocols" jsonschema:"protocol names in load order"`
}

// ListProtocolsTool defines the MCP tool schema for listing protocols.
func ListProtocolsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_protocols",
		Description: "List all the available protocols",
		Annotations: catalogAnnotations(),
	}
}

// ListProtocolsHandler returns the names of every loaded protocol.
func ListProtocolsHandler(dispatcher *Dispatcher) mcp.ToolHandlerFor[ListProtocolsInput, ListProtocolsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ ListProtocolsInput) (*mcp.CallToolResult, ListProtocolsResult, error) {
		defs, err := dispatcher.router.Definitions(ctx)
		if err != nil {
			return nil, ListProtocolsResult{}, err
		}
		names := make([]string, 0, len(defs))
		for _, def := range defs {
			names = append(names, def.Name)
		}
		return textResult(names...), ListProtocolsResult{Protocols: names}, nil
	}
}

// ProtocolTransactionsInput names a protocol.
type ProtocolTransactionsInput struct {
	ProtocolName string `json:"protocol_name" jsonschema:"protocol name as returned by list_protocols"`
}

// ProtocolTransactionsResult lists a protocol's transactions.
type ProtocolTransactionsResult struct {
	Protocol     string   `json:"protocol" jsonschema:"protocol name"`
	Transactions []string `json:"transactions" jsonschema:"transaction names in declaration order"`
}

// ListProtocolTransactionsTool defines the MCP tool schema for listing the
// transactions of a protocol.
func ListProtocolTransactionsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_protocol_transactions",
		Description: "Receives a protocol name and returns the list of transactions available for that protocol",
		Annotations: catalogAnnotations(),
	}
}

// ListProtocolTransactionsHandler compiles a protocol and lists its
// transactions.
func ListProtocolTransactionsHandler(dispatcher *Dispatcher) mcp.ToolHandlerFor[ProtocolTransactionsInput, ProtocolTransactionsResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProtocolTransactionsInput) (*mcp.CallToolResult, ProtocolTransactionsResult, error) {
		protocol, err := dispatcher.router.Protocol(ctx, input.ProtocolName)
		if err != nil {
			return nil, ProtocolTransactionsResult{}, err
		}
		names := protocol.TransactionNames()
		return textResult(names...), ProtocolTransactionsResult{Protocol: input.ProtocolName, Transactions: names}, nil
	}
}

// TransactionParametersInput names a transaction of a protocol.
type TransactionParametersInput struct {
	ProtocolName    string `json:"protocol_name" jsonschema:"protocol name"`
	TransactionName string `json:"transaction_name" jsonschema:"transaction name"`
}

// ListTransactionParametersTool defines the MCP tool schema for listing the
// parameters of a transaction.
func ListTransactionParametersTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_transaction_parameters",
		Description: "Receives a protocol name and transaction name and returns the list of parameters required for resolving that transaction",
		Annotations: catalogAnnotations(),
	}
}

// ListTransactionParametersHandler reports a transaction's parameters as
// "name: Type" lines, in declaration order.
func ListTransactionParametersHandler(dispatcher *Dispatcher) mcp.ToolHandlerFor[TransactionParametersInput, DescribeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TransactionParametersInput) (*mcp.CallToolResult, DescribeResult, error) {
		_, tx, err := dispatcher.router.Transaction(ctx, input.ProtocolName, input.TransactionName)
		if err != nil {
			return nil, DescribeResult{}, err
		}
		lines := make([]string, 0, len(tx.Params))
		for _, param := range tx.Params {
			lines = append(lines, fmt.Sprintf("%s: %s", param.Name, param.Type))
		}
		return textResult(lines...), Describe(input.ProtocolName, tx), nil
	}
}

// ResolveTransactionInput carries a transaction and its string arguments.
type ResolveTransactionInput struct {
	ProtocolName    string            `json:"protocol_name" jsonschema:"protocol name"`
	TransactionName string            `json:"transaction_name" jsonschema:"transaction name"`
	Parameters      map[string]string `json:"parameters,omitempty" jsonschema:"parameter values keyed by name, all as strings"`
}

// ResolveTransactionResult carries the serialized transaction.
type ResolveTransactionResult struct {
	Tx string `json:"tx" jsonschema:"serialized transaction (CBOR hex)"`
}

// ResolveTransactionTool defines the MCP tool schema for resolving a
// transaction by protocol and transaction name.
func ResolveTransactionTool() *mcp.Tool {
	openWorld := true
	destructive := false
	return &mcp.Tool{
		Name:        "resolve_transaction",
		Description: "Receives a protocol name, transaction name and parameters and returns the resulting CBOR of that transaction",
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint:    true,
			DestructiveHint: &destructive,
			OpenWorldHint:   &openWorld,
		},
	}
}

// ResolveTransactionHandler coerces the parameters and forwards them to the
// resolver.
func ResolveTransactionHandler(dispatcher *Dispatcher) mcp.ToolHandlerFor[ResolveTransactionInput, ResolveTransactionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolveTransactionInput) (*mcp.CallToolResult, ResolveTransactionResult, error) {
		tx, err := dispatcher.ResolveStrings(ctx, input.ProtocolName, input.TransactionName, input.Parameters)
		if err != nil {
			return nil, ResolveTransactionResult{}, err
		}
		return textResult(tx), ResolveTransactionResult{Tx: tx}, nil
	}
}

func catalogAnnotations() *mcp.ToolAnnotations {
	openWorld := false
	return &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true, OpenWorldHint: &openWorld}
}
