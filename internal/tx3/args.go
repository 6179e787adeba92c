package tx3

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// ArgKind tags the variant held by an ArgValue.
type ArgKind int

const (
	ArgInt ArgKind = iota + 1
	ArgBool
	ArgString
)

var (
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// ArgValue is a coerced, protocol-native argument: a signed 128-bit
// integer, a boolean or a string.
type ArgValue struct {
	kind ArgKind
	i    *big.Int
	b    bool
	s    string
}

// IntArg builds an Int argument. Values outside the signed 128-bit range are
// rejected.
func IntArg(v *big.Int) (ArgValue, error) {
	if v == nil {
		return ArgValue{}, fmt.Errorf("int argument is required")
	}
	if v.Cmp(minInt128) < 0 || v.Cmp(maxInt128) > 0 {
		return ArgValue{}, fmt.Errorf("int %s out of 128-bit range", v.String())
	}
	return ArgValue{kind: ArgInt, i: new(big.Int).Set(v)}, nil
}

// ParseIntArg parses a base-10 signed 128-bit integer literal. Surrounding
// whitespace is not part of a literal.
func ParseIntArg(s string) (ArgValue, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return ArgValue{}, fmt.Errorf("invalid int literal %q", s)
	}
	return IntArg(v)
}

// ParseBoolArg accepts exactly "true" or "false".
func ParseBoolArg(s string) (ArgValue, error) {
	switch s {
	case "true":
		return BoolArg(true), nil
	case "false":
		return BoolArg(false), nil
	default:
		return ArgValue{}, fmt.Errorf("invalid bool literal %q", s)
	}
}

// BoolArg builds a Bool argument.
func BoolArg(b bool) ArgValue {
	return ArgValue{kind: ArgBool, b: b}
}

// StringArg builds a String argument.
func StringArg(s string) ArgValue {
	return ArgValue{kind: ArgString, s: s}
}

// Kind returns the variant tag; the zero ArgValue has kind 0.
func (v ArgValue) Kind() ArgKind { return v.kind }

// Int returns a copy of the integer, or nil for other kinds.
func (v ArgValue) Int() *big.Int {
	if v.kind != ArgInt {
		return nil
	}
	return new(big.Int).Set(v.i)
}

// Bool returns the boolean value.
func (v ArgValue) Bool() bool { return v.kind == ArgBool && v.b }

// String returns the string value, or the literal form of other kinds.
func (v ArgValue) String() string {
	switch v.kind {
	case ArgInt:
		return v.i.String()
	case ArgBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return v.s
	}
}

// MarshalJSON encodes ints as bare JSON numbers, bools as JSON booleans and
// strings as JSON strings.
func (v ArgValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ArgInt:
		return []byte(v.i.String()), nil
	case ArgBool:
		return json.Marshal(v.b)
	case ArgString:
		return json.Marshal(v.s)
	default:
		return nil, fmt.Errorf("marshal empty arg value")
	}
}
