// Package trp is a client for the Transaction Resolver Protocol, the
// JSON-RPC service that turns tx3 IR and arguments into a serialized
// transaction.
package trp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/louisbranch/tx3-mcp/internal/platform/otel"
	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

const (
	// APIKeyHeader carries the resolver API key.
	APIKeyHeader = "dmtr-api-key"
	// ResolveMethod is the JSON-RPC method resolving a transaction.
	ResolveMethod = "trp.resolve"
	// IREncoding tags the bytecode encoding sent to the resolver.
	IREncoding = "hex"
)

const maxResponseBytes = 16 << 20

// TirInfo is the IR envelope of a resolve request.
type TirInfo struct {
	Bytecode string `json:"bytecode"`
	Encoding string `json:"encoding"`
	Version  string `json:"version"`
}

// ResolveParams are the params of a trp.resolve call.
type ResolveParams struct {
	Tir  TirInfo                 `json:"tir"`
	Args map[string]tx3.ArgValue `json:"args"`
}

// ResolveResult is the result of a trp.resolve call.
type ResolveResult struct {
	Tx string `json:"tx"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      string `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the resolver.
type RPCError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error returns the resolver's message unchanged.
func (e *RPCError) Error() string {
	return e.Message
}

// Client calls a resolver endpoint. It is safe for concurrent use.
type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	http     *http.Client
	newID    func() string
}

// New builds a client. timeout bounds each call when positive; a nil
// httpClient selects http.DefaultClient.
func New(endpoint, apiKey string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("trp endpoint is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		timeout:  timeout,
		http:     httpClient,
		newID:    func() string { return uuid.NewString() },
	}, nil
}

// Resolve sends the transaction IR and arguments to the resolver and
// returns the serialized transaction.
func (c *Client) Resolve(ctx context.Context, tx tx3.Transaction, irVersion string, args map[string]tx3.ArgValue) (out string, err error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	ctx, span := otel.Tracer("trp").Start(ctx, ResolveMethod)
	span.SetAttributes(
		attribute.String("tx3.transaction", tx.Name),
		attribute.String("tx3.ir_version", irVersion),
		attribute.Int("tx3.args", len(args)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if args == nil {
		args = map[string]tx3.ArgValue{}
	}
	params := ResolveParams{
		Tir: TirInfo{
			Bytecode: tx.IRHex(),
			Encoding: IREncoding,
			Version:  irVersion,
		},
		Args: args,
	}
	var result ResolveResult
	if err := c.call(ctx, ResolveMethod, params, &result); err != nil {
		return "", err
	}
	return result.Tx, nil
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.newID()})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var decoded rpcResponse
	decodeErr := json.Unmarshal(payload, &decoded)
	if decodeErr == nil && decoded.Error != nil {
		return decoded.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("resolver status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s response: %w", method, decodeErr)
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return fmt.Errorf("%s response has no result", method)
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
