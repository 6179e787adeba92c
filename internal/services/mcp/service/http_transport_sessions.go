package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Connect implements mcp.Transport.Connect. Each call registers a fresh
// session whose connection waits for HTTP requests.
func (t *HTTPTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	sessionID := t.generateSessionID()
	conn := newHTTPConnection(sessionID)
	now := time.Now()

	t.sessionsMu.Lock()
	t.sessions[sessionID] = &httpSession{
		id:        sessionID,
		conn:      conn,
		createdAt: now,
		lastUsed:  now,
	}
	t.sessionsMu.Unlock()

	return conn, nil
}

// lookupSession resolves the session named by the request header, falling
// back to the session cookie.
func (t *HTTPTransport) lookupSession(r *http.Request) (*httpSession, bool) {
	sessionID := strings.TrimSpace(r.Header.Get(sessionHeader))
	if sessionID == "" {
		cookie, err := r.Cookie(sessionCookie)
		if err != nil || cookie.Value == "" {
			return nil, false
		}
		sessionID = cookie.Value
	}
	t.sessionsMu.RLock()
	session, ok := t.sessions[sessionID]
	t.sessionsMu.RUnlock()
	return session, ok && session != nil
}

// touchSession records activity so cleanupSessions keeps the session.
func (t *HTTPTransport) touchSession(session *httpSession) {
	t.sessionsMu.Lock()
	session.lastUsed = time.Now()
	t.sessionsMu.Unlock()
}

func (t *HTTPTransport) generateSessionID() string {
	randomReader := rand.Read
	if t != nil && t.randomReader != nil {
		randomReader = t.randomReader
	}
	return generateSessionIDWithRandomRead(randomReader)
}

func (t *HTTPTransport) cleanupSessions(ctx context.Context) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.expireSessions(time.Now().Add(-sessionExpirationTime))
		}
	}
}

// expireSessions closes and forgets every session idle since before cutoff.
func (t *HTTPTransport) expireSessions(cutoff time.Time) int {
	t.sessionsMu.Lock()
	defer t.sessionsMu.Unlock()
	expired := 0
	for id, session := range t.sessions {
		if !session.lastUsed.Before(cutoff) {
			continue
		}
		_ = session.conn.Close()
		delete(t.sessions, id)
		t.serverOnceMu.Lock()
		delete(t.serverOnce, id)
		t.serverOnceMu.Unlock()
		expired++
	}
	if expired > 0 {
		log.Printf("Expired %d idle MCP sessions", expired)
	}
	return expired
}

// closeSessions closes every session connection.
func (t *HTTPTransport) closeSessions() {
	t.sessionsMu.Lock()
	defer t.sessionsMu.Unlock()
	for id, session := range t.sessions {
		_ = session.conn.Close()
		delete(t.sessions, id)
	}
}

func (t *HTTPTransport) ensureServerRunning(session *httpSession) {
	if t.server == nil {
		return
	}

	t.serverOnceMu.Lock()
	once, exists := t.serverOnce[session.id]
	if !exists {
		once = &sync.Once{}
		t.serverOnce[session.id] = once
	}
	t.serverOnceMu.Unlock()

	sessionTransport := &sessionTransport{conn: session.conn}

	once.Do(func() {
		go func() {
			serverSession, err := t.server.Connect(t.serverCtx, sessionTransport, nil)
			if err != nil {
				log.Printf("Failed to connect MCP server session %s: %v", session.id, err)
				return
			}
			_ = serverSession.Wait()
		}()
	})

	// Readiness normally arrives on the server's first Read. If it has not
	// yet, the message is still buffered in reqChan and will be picked up.
	select {
	case <-session.conn.ready:
	case <-t.readyAfterOrDefault()(t.serverReadyTimeoutOrDefault()):
	case <-t.serverCtx.Done():
	}
}

func (t *HTTPTransport) readyAfterOrDefault() func(time.Duration) <-chan time.Time {
	if t == nil || t.readyAfter == nil {
		return time.After
	}
	return t.readyAfter
}

func (t *HTTPTransport) serverReadyTimeoutOrDefault() time.Duration {
	if t == nil || t.serverReadyTimeout <= 0 {
		return defaultSessionReadyTimeout
	}
	return t.serverReadyTimeout
}

// sessionTransport hands the server one pre-existing session connection.
type sessionTransport struct {
	conn mcp.Connection
}

// Connect implements mcp.Transport.Connect.
func (st *sessionTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return st.conn, nil
}

var sessionCounter atomic.Uint64

// generateSessionIDWithRandomRead combines random bytes with a process-wide
// counter so ids stay unique even when the random source fails.
func generateSessionIDWithRandomRead(randomRead func([]byte) (int, error)) string {
	b := make([]byte, 8)
	if randomRead == nil {
		randomRead = rand.Read
	}
	counter := sessionCounter.Add(1)
	if _, err := randomRead(b); err != nil {
		return fmt.Sprintf("session_%d_%d", time.Now().UnixNano(), counter)
	}
	return fmt.Sprintf("session_%s_%d", hex.EncodeToString(b), counter)
}

// newHTTPConnection builds an open connection for sessionID.
func newHTTPConnection(sessionID string) *httpConnection {
	return &httpConnection{
		sessionID:   sessionID,
		reqChan:     make(chan jsonrpc.Message, defaultChannelBufferSize),
		notifyChan:  make(chan jsonrpc.Message, defaultChannelBufferSize),
		closed:      make(chan struct{}),
		ready:       make(chan struct{}, 1),
		pendingReqs: make(map[jsonrpc.ID]chan jsonrpc.Message),
	}
}
