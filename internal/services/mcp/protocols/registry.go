package protocols

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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/louisbranch/tx3-mcp/internal/platform/otel"
)

// dappsQuery asks the registry for every registered dapp.
const dappsQuery = `query { dapps { nodes { scope name protocol } } }`

// maxRegistryResponseBytes caps the registry body read into memory.
const maxRegistryResponseBytes = 32 << 20

// RegistryLoader queries a GraphQL registry on every Load. It holds no
// state between calls.
type RegistryLoader struct {
	url  string
	http *http.Client
}

var _ Loader = (*RegistryLoader)(nil)

// NewRegistryLoader builds a loader for the registry at url. A nil client
// selects one bounded by timeout (no bound when timeout is zero).
func NewRegistryLoader(url string, httpClient *http.Client, timeout time.Duration) (*RegistryLoader, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("registry url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &RegistryLoader{url: url, http: httpClient}, nil
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type dappsResponse struct {
	Data *struct {
		Dapps *struct {
			Nodes []dappNode `json:"nodes"`
		} `json:"dapps"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type dappNode struct {
	Scope    string  `json:"scope"`
	Name     string  `json:"name"`
	Protocol *string `json:"protocol"`
}

// Load fetches the registered dapps and keeps those that carry a protocol.
// An empty registry yields an empty slice; a failed query is an error.
func (l *RegistryLoader) Load(ctx context.Context) (defs []Definition, err error) {
	ctx, span := otel.Tracer("registry").Start(ctx, "registry.dapps")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.Int("tx3.protocols", len(defs)))
		span.End()
	}()

	body, err := json.Marshal(graphQLRequest{Query: dappsQuery})
	if err != nil {
		return nil, fmt.Errorf("encode registry query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build registry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRegistryResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read registry response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("registry status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded dappsResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("decode registry response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		messages := make([]string, 0, len(decoded.Errors))
		for _, gqlErr := range decoded.Errors {
			messages = append(messages, gqlErr.Message)
		}
		return nil, fmt.Errorf("registry query failed: %s", strings.Join(messages, "; "))
	}
	if decoded.Data == nil || decoded.Data.Dapps == nil {
		return []Definition{}, nil
	}

	defs = make([]Definition, 0, len(decoded.Data.Dapps.Nodes))
	for _, node := range decoded.Data.Dapps.Nodes {
		if node.Protocol == nil {
			continue
		}
		defs = append(defs, Definition{
			Name:   NormalizeName(node.Scope + "_" + node.Name),
			Source: *node.Protocol,
		})
	}
	return dedupe(defs), nil
}
