package service

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// handleSSE handles GET /mcp. It streams the session's server-initiated
// messages until the client leaves, the session closes, or the server shuts
// down.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	session, ok := t.lookupSession(r)
	if !ok {
		http.Error(w, "Invalid or missing session ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	t.touchSession(session)
	ticker := time.NewTicker(sseHeartbeatInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-session.conn.closed:
			return
		case <-t.shuttingDown:
			return
		case <-ticker.C:
			t.touchSession(session)
		case msg := <-session.conn.notifyChan:
			t.touchSession(session)
			data, err := jsonrpc.EncodeMessage(msg)
			if err != nil {
				log.Printf("Failed to encode SSE message: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
