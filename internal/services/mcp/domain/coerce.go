package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/louisbranch/tx3-mcp/internal/tx3"
)

// CoerceArgs converts caller arguments, which must all be JSON strings, into
// native argument values for tx.
//
// Arguments are checked in name order: a non-string value is an invalid
// argument, an undeclared name is not found, and a literal that does not
// parse as the declared type is an invalid argument. Declared parameters the
// caller left out are reported as missing.
func CoerceArgs(protocol string, tx tx3.Transaction, raw map[string]json.RawMessage) (map[string]tx3.ArgValue, error) {
	types := tx.ParameterTypes()

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make(map[string]tx3.ArgValue, len(raw))
	for _, name := range names {
		value, ok := rawString(raw[name])
		if !ok {
			return nil, invalidValue(name, fmt.Errorf("value must be a string"))
		}
		typ, declared := types[name]
		if !declared {
			return nil, parameterNotFound(protocol, tx.Name, name)
		}
		arg, err := coerceValue(typ, value)
		if err != nil {
			return nil, invalidValue(name, err)
		}
		args[name] = arg
	}

	for _, param := range tx.Params {
		if _, ok := args[param.Name]; !ok {
			return nil, missingParameter(protocol, tx.Name, param.Name)
		}
	}
	return args, nil
}

// CoerceStringArgs is CoerceArgs for callers that already hold plain strings.
func CoerceStringArgs(protocol string, tx tx3.Transaction, values map[string]string) (map[string]tx3.ArgValue, error) {
	raw := make(map[string]json.RawMessage, len(values))
	for name, value := range values {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, invalidValue(name, err)
		}
		raw[name] = encoded
	}
	return CoerceArgs(protocol, tx, raw)
}

func coerceValue(typ tx3.ParamType, value string) (tx3.ArgValue, error) {
	if !typ.Known() {
		return tx3.ArgValue{}, fmt.Errorf("unsupported parameter type %q", typ)
	}
	switch typ {
	case tx3.ParamInt:
		return tx3.ParseIntArg(value)
	case tx3.ParamBool:
		return tx3.ParseBoolArg(value)
	default:
		return tx3.StringArg(value), nil
	}
}

// rawString extracts a JSON string; null, numbers, booleans, arrays and
// objects are rejected.
func rawString(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return "", false
	}
	var value string
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return "", false
	}
	return value, true
}
