package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/tx3-mcp/internal/services/mcp/domain"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.ListProtocolsInput, domain.ListProtocolsResult](),
	newMCPToolRegistrar[domain.ProtocolTransactionsInput, domain.ProtocolTransactionsResult](),
	newMCPToolRegistrar[domain.TransactionParametersInput, domain.DescribeResult](),
	newMCPToolRegistrar[domain.ResolveTransactionInput, domain.ResolveTransactionResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

// registerCatalogTools registers the static browsing tools and returns their
// names so the operation middleware can leave them to the SDK.
func registerCatalogTools(registrar mcpRegistrationTarget, dispatcher *domain.Dispatcher) (map[string]struct{}, error) {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.ListProtocolsTool(), handler: domain.ListProtocolsHandler(dispatcher)},
		{tool: domain.ListProtocolTransactionsTool(), handler: domain.ListProtocolTransactionsHandler(dispatcher)},
		{tool: domain.ListTransactionParametersTool(), handler: domain.ListTransactionParametersHandler(dispatcher)},
		{tool: domain.ResolveTransactionTool(), handler: domain.ResolveTransactionHandler(dispatcher)},
	}
	names := make(map[string]struct{}, len(registrations))
	for _, registration := range registrations {
		if err := registerTool(registrar, registration.tool, registration.handler); err != nil {
			return nil, err
		}
		names[registration.tool.Name] = struct{}{}
	}
	return names, nil
}

func registerTool(registrar mcpRegistrationTarget, tool *mcp.Tool, handler any) error {
	if tool == nil {
		return fmt.Errorf("tool is nil")
	}
	if domain.IsOperationName(tool.Name) {
		return fmt.Errorf("tool %q collides with operation names", tool.Name)
	}
	return registrar.AddTool(tool, handler)
}
