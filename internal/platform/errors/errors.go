package errors

import (
	"encoding/json"
	stderrors "errors"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Caller-facing message
	Metadata map[string]string // Additional context, sent as error data
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error carrying structured context.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithMetadata creates a domain error with both metadata and a cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
		Cause:    cause,
	}
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeUnknown.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// ToJSONRPC converts the error to a JSON-RPC wire error.
// Metadata, when present, travels in the data member.
func (e *Error) ToJSONRPC() *jsonrpc.Error {
	wireErr := &jsonrpc.Error{
		Code:    e.Code.JSONRPCCode(),
		Message: e.Message,
	}
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err == nil {
			wireErr.Data = data
		}
	}
	return wireErr
}

// ToJSONRPC converts any error into a JSON-RPC wire error. Errors outside
// the domain taxonomy are reported as internal errors with their message.
func ToJSONRPC(err error) *jsonrpc.Error {
	if err == nil {
		return nil
	}
	var wireErr *jsonrpc.Error
	if stderrors.As(err, &wireErr) {
		return wireErr
	}
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.ToJSONRPC()
	}
	return &jsonrpc.Error{
		Code:    JSONRPCInternalError,
		Message: err.Error(),
	}
}
