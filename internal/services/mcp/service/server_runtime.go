package service

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/tx3-mcp/internal/services/mcp/domain"
)

// defaultHTTPAddr keeps the HTTP transport on loopback unless configured.
const defaultHTTPAddr = "127.0.0.1:3000"

// Run is the service entrypoint for MCP and blocks until context cancellation.
// stdio serves a single local client; http serves browser and remote clients.
func Run(ctx context.Context, dispatcher *domain.Dispatcher, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, dispatcher, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTPTransport(ctx, dispatcher, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithTransport creates a server and serves it over the provided transport.
func runWithTransport(ctx context.Context, dispatcher *domain.Dispatcher, transport mcp.Transport) error {
	server, err := New(dispatcher)
	if err != nil {
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

// runWithHTTPTransport creates a server and serves every HTTP session from it.
func runWithHTTPTransport(ctx context.Context, dispatcher *domain.Dispatcher, cfg Config) error {
	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}
	server, err := New(dispatcher)
	if err != nil {
		return err
	}
	httpTransport := NewHTTPTransportWithServer(httpAddr, cfg.AllowedHosts, server.mcpServer)
	return httpTransport.Start(ctx)
}
