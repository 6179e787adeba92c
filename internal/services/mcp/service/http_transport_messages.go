package service

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// maxMessageBytes caps a single POSTed JSON-RPC message.
const maxMessageBytes = 4 << 20

// handleMessages handles POST /mcp. An initialize request without a known
// session opens one; every other message must name an existing session.
// Requests block until the server answers; notifications return 204.
func (t *HTTPTransport) handleMessages(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxMessageBytes))
	if err != nil {
		log.Printf("Failed to read request body: %v", err)
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}

	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		log.Printf("Invalid JSON-RPC message: %v", err)
		http.Error(w, "Invalid JSON-RPC message", http.StatusBadRequest)
		return
	}
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		http.Error(w, "Invalid message type: response", http.StatusBadRequest)
		return
	}

	session, exists := t.lookupSession(r)
	if !exists {
		if req.Method != "initialize" {
			writeSessionError(w, "Invalid or missing session ID")
			return
		}
		session, err = t.openSession(w, r)
		if err != nil {
			log.Printf("Failed to create session: %v", err)
			http.Error(w, "Failed to create session", http.StatusInternalServerError)
			return
		}
	}
	t.touchSession(session)
	t.ensureServerRunning(session)

	if req.ID == (jsonrpc.ID{}) {
		select {
		case session.conn.reqChan <- msg:
			w.WriteHeader(http.StatusNoContent)
		case <-session.conn.closed:
			writeSessionError(w, "Session closed")
		case <-r.Context().Done():
			http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		}
		return
	}

	respChan, forget := session.conn.await(req.ID)
	defer forget()

	select {
	case session.conn.reqChan <- msg:
	case <-session.conn.closed:
		writeSessionError(w, "Session closed")
		return
	case <-r.Context().Done():
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
		return
	}

	timer := time.NewTimer(defaultRequestTimeout)
	defer timer.Stop()

	select {
	case resp := <-respChan:
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("Failed to write response: %v", err)
		}
	case <-session.conn.closed:
		writeSessionError(w, "Session closed")
	case <-r.Context().Done():
		http.Error(w, "Request cancelled", http.StatusRequestTimeout)
	case <-timer.C:
		http.Error(w, "Request timeout", http.StatusRequestTimeout)
	}
}

// openSession registers a new session and hands its id to the client as a
// header and a cookie.
func (t *HTTPTransport) openSession(w http.ResponseWriter, r *http.Request) (*httpSession, error) {
	conn, err := t.Connect(r.Context())
	if err != nil {
		return nil, err
	}
	sessionID := conn.SessionID()
	t.sessionsMu.RLock()
	session := t.sessions[sessionID]
	t.sessionsMu.RUnlock()

	w.Header().Set(sessionHeader, sessionID)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return session, nil
}

func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	payload := map[string]any{
		"jsonrpc": "2.0",
		"error": map[string]any{
			"code":    -32000,
			"message": message,
		},
		"id": nil,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"Session error"},"id":null}`))
		return
	}
	_, _ = w.Write(data)
}
