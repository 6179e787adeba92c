package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/tx3-mcp/internal/platform/timeouts"
)

var listenTCP = net.Listen

const (
	// defaultChannelBufferSize is the buffer size for request, response, and notification channels.
	defaultChannelBufferSize = 10

	// defaultRequestTimeout is the maximum time to wait for a JSON-RPC response.
	// It covers one upstream resolve plus a compile, so it matches timeouts.Upstream.
	defaultRequestTimeout = timeouts.Upstream

	// defaultShutdownTimeout is the maximum time to wait for graceful HTTP server shutdown.
	// It is longer than defaultRequestTimeout so in-flight requests can complete.
	defaultShutdownTimeout = defaultRequestTimeout + timeouts.Shutdown

	// sessionCleanupInterval is how often the cleanup goroutine runs to remove expired sessions.
	sessionCleanupInterval = 5 * time.Minute

	// sessionExpirationTime is how long a session can be inactive before being cleaned up.
	sessionExpirationTime = 1 * time.Hour

	// sseHeartbeatInterval is how often to update lastUsed for active SSE connections.
	sseHeartbeatInterval = 30 * time.Second

	// defaultSessionReadyTimeout bounds how long we wait for a session connection
	// to become ready before request handling continues.
	defaultSessionReadyTimeout = 100 * time.Millisecond

	// sessionHeader carries the session id on requests and initialize responses.
	sessionHeader = "Mcp-Session-Id"
	// sessionCookie is the fallback session carrier for clients that drop headers.
	sessionCookie = "mcp_session"
)

// HTTPTransport implements mcp.Transport for HTTP-based MCP communication.
// POST /mcp carries JSON-RPC requests and notifications; GET /mcp streams
// server notifications as Server-Sent Events. Every session gets its own
// connection to the shared mcp.Server.
type HTTPTransport struct {
	addr         string
	allowedHosts map[string]struct{}
	server       *mcp.Server
	sessions     map[string]*httpSession
	sessionsMu   sync.RWMutex
	httpServer   *http.Server
	serverCtx    context.Context
	serverCancel context.CancelFunc
	serverOnceMu sync.Mutex
	serverOnce   map[string]*sync.Once
	shuttingDown chan struct{}
	shutdownOnce sync.Once

	serverReadyTimeout time.Duration
	randomReader       func([]byte) (int, error)
	readyAfter         func(time.Duration) <-chan time.Time
}

// httpSession tracks liveness and the active connection of one client.
type httpSession struct {
	id        string
	conn      *httpConnection
	createdAt time.Time
	lastUsed  time.Time
}

// NewHTTPTransport creates a new HTTP transport that will serve MCP over HTTP.
// Requests are accepted from loopback hosts and from allowedHosts.
func NewHTTPTransport(addr string, allowedHosts []string) *HTTPTransport {
	if addr == "" {
		addr = defaultHTTPAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPTransport{
		addr:               addr,
		allowedHosts:       parseAllowedHosts(allowedHosts),
		sessions:           make(map[string]*httpSession),
		serverCtx:          ctx,
		serverCancel:       cancel,
		serverOnce:         make(map[string]*sync.Once),
		shuttingDown:       make(chan struct{}),
		serverReadyTimeout: defaultSessionReadyTimeout,
		randomReader:       rand.Read,
		readyAfter:         time.After,
	}
}

// NewHTTPTransportWithServer creates a new HTTP transport bound to server.
func NewHTTPTransportWithServer(addr string, allowedHosts []string, server *mcp.Server) *HTTPTransport {
	transport := NewHTTPTransport(addr, allowedHosts)
	transport.server = server
	return transport
}

// routes builds the chi router for the transport endpoints.
func (t *HTTPTransport) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(t.requireLocalRequest)

	router.Get("/mcp", t.handleSSE)
	router.Post("/mcp", t.handleMessages)
	router.Get("/mcp/health", t.handleHealth)
	return router
}

// Start starts the HTTP server and blocks until ctx ends or the listener
// fails.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serverCtx, t.serverCancel = context.WithCancel(ctx)

	go t.cleanupSessions(ctx)

	t.httpServer = &http.Server{
		Addr:              t.addr,
		Handler:           t.routes(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	// SSE streams never finish on their own; release them so Shutdown can
	// drain the remaining requests.
	t.httpServer.RegisterOnShutdown(t.signalShutdown)

	listener, err := listenTCP("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}
	log.Printf("Starting MCP HTTP server on %s", listener.Addr())
	t.warnIfUnreachable()

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		err := t.httpServer.Shutdown(shutdownCtx)
		t.serverCancel()
		t.closeSessions()
		if err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		t.serverCancel()
		t.closeSessions()
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

func (t *HTTPTransport) signalShutdown() {
	t.shutdownOnce.Do(func() { close(t.shuttingDown) })
}
