package domain

import (
	"errors"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/tx3-mcp/internal/platform/errors"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Operation
		wantErr string
	}{
		{name: "resolve", input: "resolve-acme-swap", want: Operation{Action: ActionResolve, Protocol: "acme", Transaction: "swap"}},
		{name: "describe", input: "describe-acme-swap", want: Operation{Action: ActionDescribe, Protocol: "acme", Transaction: "swap"}},
		{name: "underscored names", input: "resolve-txpipe_dex-open_pool", want: Operation{Action: ActionResolve, Protocol: "txpipe_dex", Transaction: "open_pool"}},
		{name: "missing transaction", input: "resolve-acme", wantErr: "Transaction name not found"},
		{name: "missing protocol", input: "resolve", wantErr: "Protocol name not found"},
		{name: "empty", input: "", wantErr: "Operation name not found"},
		{name: "empty protocol", input: "resolve--swap", wantErr: "Protocol name not found"},
		{name: "empty transaction", input: "resolve-acme-", wantErr: "Transaction name not found"},
		{name: "too many components", input: "resolve-acme-swap-extra", wantErr: "has too many components"},
		{name: "unknown action", input: "submit-acme-swap", wantErr: "Operation `submit-acme-swap` not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseOperation(tc.input)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				if !errors.Is(err, apperrors.New(apperrors.CodeNotFound, "")) {
					t.Fatalf("expected not found code, got %v", apperrors.CodeOf(err))
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ParseOperation(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
			if got.Name() != tc.input {
				t.Fatalf("Name() = %q, want %q", got.Name(), tc.input)
			}
		})
	}
}

func TestIsOperationName(t *testing.T) {
	if !IsOperationName("resolve-acme") {
		t.Fatal("expected dashed name to be an operation")
	}
	if IsOperationName("list_protocols") {
		t.Fatal("expected underscored name not to be an operation")
	}
}
