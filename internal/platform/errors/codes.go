// Package errors provides structured errors for the tool surface.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound covers unknown operations, protocols, transactions and
	// parameters.
	CodeNotFound Code = "NOT_FOUND"

	// CodeInvalidArgument covers values that cannot be coerced into the
	// declared parameter type, and missing required parameters.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeCompilationFailed is reported when a protocol source cannot be
	// compiled.
	CodeCompilationFailed Code = "COMPILATION_FAILED"

	// CodeUpstreamFailure is reported when the registry or the resolver
	// service fails.
	CodeUpstreamFailure Code = "UPSTREAM_FAILURE"
)

// JSON-RPC error codes used on the wire.
const (
	JSONRPCInternalError    int64 = -32603
	JSONRPCMethodNotFound   int64 = -32601
	JSONRPCResourceNotFound int64 = -32002
)

// JSONRPCCode maps domain codes to JSON-RPC error codes. Caller mistakes all
// share the resource-not-found code; the message tells them apart.
func (c Code) JSONRPCCode() int64 {
	switch c {
	case CodeNotFound, CodeInvalidArgument, CodeCompilationFailed:
		return JSONRPCResourceNotFound
	default:
		return JSONRPCInternalError
	}
}
