package domain

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

// maxConcurrentCompiles bounds compiler invocations per list call.
const maxConcurrentCompiles = 4

// BuildTools derives the resolve and describe tools for every transaction of
// every definition, in definition order then compiler order.
//
// A protocol that fails to compile is logged and left out so one malformed
// source does not hide the rest. Transactions whose names contain the
// operation delimiter cannot be routed and are skipped.
func BuildTools(ctx context.Context, compiler tx3.Compiler, defs []protocols.Definition) ([]*mcp.Tool, error) {
	compiled := make([]*tx3.Protocol, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentCompiles)
	for i, def := range defs {
		g.Go(func() error {
			protocol, err := compiler.Compile(gctx, def.Name, def.Source)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Printf("skip protocol=%s: compile: %v", def.Name, err)
				return nil
			}
			compiled[i] = protocol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tools := make([]*mcp.Tool, 0)
	for i, protocol := range compiled {
		if protocol == nil {
			continue
		}
		protocolName := defs[i].Name
		for _, tx := range protocol.Transactions {
			if strings.Contains(tx.Name, protocols.NameDelimiter) {
				log.Printf("skip transaction protocol=%s transaction=%s: name contains %q", protocolName, tx.Name, protocols.NameDelimiter)
				continue
			}
			tools = append(tools, ResolveTool(protocolName, tx), DescribeTool(protocolName, tx))
		}
	}
	return tools, nil
}

// ResolveTool describes the resolve operation of one transaction. Every
// parameter is a required string; coercion to native types happens on call.
func ResolveTool(protocol string, tx tx3.Transaction) *mcp.Tool {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: make(map[string]*jsonschema.Schema, len(tx.Params)),
		Required:   make([]string, 0, len(tx.Params)),
	}
	for _, param := range tx.Params {
		schema.Properties[param.Name] = &jsonschema.Schema{
			Type:        "string",
			Description: fmt.Sprintf("%s value for `%s`", param.Type, param.Name),
		}
		schema.Required = append(schema.Required, param.Name)
	}
	return &mcp.Tool{
		Name:        OperationName(ActionResolve, protocol, tx.Name),
		Description: fmt.Sprintf("Resolves the `%s` transaction of the `%s` protocol into a serialized transaction (CBOR hex).", tx.Name, protocol),
		InputSchema: schema,
		Annotations: operationAnnotations(),
	}
}

// DescribeTool describes the describe operation of one transaction.
func DescribeTool(protocol string, tx tx3.Transaction) *mcp.Tool {
	return &mcp.Tool{
		Name:        OperationName(ActionDescribe, protocol, tx.Name),
		Description: fmt.Sprintf("Describes the parameters required by the `%s` transaction of the `%s` protocol.", tx.Name, protocol),
		InputSchema: &jsonschema.Schema{Type: "object"},
		Annotations: operationAnnotations(),
	}
}

func operationAnnotations() *mcp.ToolAnnotations {
	destructive := false
	openWorld := true
	return &mcp.ToolAnnotations{
		ReadOnlyHint:    true,
		DestructiveHint: &destructive,
		IdempotentHint:  false,
		OpenWorldHint:   &openWorld,
	}
}
