package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/tx3-mcp/internal/platform/errors"
	"github.com/louisbranch/tx3-mcp/internal/services/mcp/protocols"
)

// Action is the verb component of an operation name.
type Action string

const (
	ActionResolve  Action = "resolve"
	ActionDescribe Action = "describe"
)

// Operation is a decoded "<action>-<protocol>-<transaction>" name.
type Operation struct {
	Action      Action
	Protocol    string
	Transaction string
}

// Name encodes the operation back into its flat name.
func (o Operation) Name() string {
	return OperationName(o.Action, o.Protocol, o.Transaction)
}

// OperationName joins the components with the reserved delimiter.
func OperationName(action Action, protocol, transaction string) string {
	return strings.Join([]string{string(action), protocol, transaction}, protocols.NameDelimiter)
}

// IsOperationName reports whether name looks like a dynamic operation, that
// is, whether it carries the delimiter at all.
func IsOperationName(name string) bool {
	return strings.Contains(name, protocols.NameDelimiter)
}

// ParseOperation decodes an operation name. Exactly three non-empty
// components are accepted; the first missing component names the error.
func ParseOperation(name string) (Operation, error) {
	parts := strings.Split(name, protocols.NameDelimiter)
	labels := []string{"Operation", "Protocol", "Transaction"}
	for i, label := range labels {
		if i >= len(parts) || strings.TrimSpace(parts[i]) == "" {
			return Operation{}, apperrors.WithMetadata(apperrors.CodeNotFound,
				fmt.Sprintf("%s name not found", label),
				map[string]string{"operation": name})
		}
	}
	if len(parts) > len(labels) {
		return Operation{}, apperrors.WithMetadata(apperrors.CodeNotFound,
			fmt.Sprintf("Operation `%s` has too many components", name),
			map[string]string{"operation": name})
	}

	action := Action(parts[0])
	switch action {
	case ActionResolve, ActionDescribe:
	default:
		return Operation{}, operationNotFound(name)
	}
	return Operation{Action: action, Protocol: parts[1], Transaction: parts[2]}, nil
}
