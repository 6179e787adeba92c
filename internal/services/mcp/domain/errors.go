package domain

import (
	"fmt"

	apperrors "github.com/louisbranch/tx3-mcp/internal/platform/errors"
)

func operationNotFound(name string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("Operation `%s` not found", name),
		map[string]string{"operation": name})
}

func protocolNotFound(protocol string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("Protocol `%s` not found", protocol),
		map[string]string{"protocol": protocol})
}

func transactionNotFound(protocol, transaction string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("Transaction `%s` not found for protocol `%s`", transaction, protocol),
		map[string]string{"protocol": protocol, "transaction": transaction})
}

func parameterNotFound(protocol, transaction, param string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("Parameter `%s` not found for transaction `%s` in protocol `%s`", param, transaction, protocol),
		map[string]string{"protocol": protocol, "transaction": transaction, "parameter": param})
}

func invalidValue(param string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeInvalidArgument,
		fmt.Sprintf("Invalid value provided for parameter `%s`", param),
		map[string]string{"parameter": param}, cause)
}

func missingParameter(protocol, transaction, param string) error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument,
		fmt.Sprintf("Missing required parameter `%s` for transaction `%s` in protocol `%s`", param, transaction, protocol),
		map[string]string{"protocol": protocol, "transaction": transaction, "parameter": param})
}

func compilationFailed(protocol string, cause error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeCompilationFailed,
		fmt.Sprintf("Protocol `%s` failed to compile: %v", protocol, cause),
		map[string]string{"protocol": protocol}, cause)
}

func loadFailed(cause error) error {
	return apperrors.Wrap(apperrors.CodeUpstreamFailure,
		fmt.Sprintf("Error loading protocols: %v", cause), cause)
}

func resolveFailed(cause error) error {
	return apperrors.Wrap(apperrors.CodeUpstreamFailure,
		fmt.Sprintf("Error resolving transaction: %v", cause), cause)
}
