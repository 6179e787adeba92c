package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/tx3-mcp/internal/platform/branding"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/domain"
)

const (
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// serverInstructions is advertised to clients during initialize.
	serverInstructions = "This server provides a protocol tool that can be use to comunicate with tx3 files for listing and resolving the transactions inside them."
)

// serverName identifies this MCP server to clients.
var serverName = branding.AppName

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over HTTP/SSE for browser or remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	// HTTPAddr is the HTTP listen address. Defaults to 127.0.0.1:3000.
	HTTPAddr string
	// AllowedHosts extends the loopback-only Host/Origin allowlist.
	AllowedHosts []string
}

// Server hosts the MCP server.
type Server struct {
	mcpServer  *mcp.Server
	dispatcher *domain.Dispatcher
}

// New creates an MCP server whose tool surface is served by dispatcher. The
// catalog tools are registered statically; the operation tools are computed
// on every tools/list and tools/call by the operation middleware.
func New(dispatcher *domain.Dispatcher) (*Server, error) {
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		Instructions: serverInstructions,
		Capabilities: serverCapabilities(),
	})

	catalog, err := registerCatalogTools(mcpServerRegistrationAdapter{server: mcpServer}, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("register catalog tools: %w", err)
	}
	mcpServer.AddReceivingMiddleware(operationMiddleware(dispatcher, catalog))

	return &Server{mcpServer: mcpServer, dispatcher: dispatcher}, nil
}

// serverCapabilities advertises tool invocation only. The tool list is
// recomputed per request, so no list-changed notification is ever sent.
func serverCapabilities() *mcp.ServerCapabilities {
	return &mcp.ServerCapabilities{Tools: &mcp.ToolCapabilities{}}
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
