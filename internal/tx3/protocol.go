// Package tx3 models the compiled form of tx3 protocols as seen by the tool
// server: transactions, their typed parameters and IR bytes.
//
// Parsing and IR generation live in an external compiler; this package only
// owns the boundary types and the Compiler contract.
package tx3

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
)

// DefaultIRVersion is the IR format version forwarded to the resolver when
// the compiler does not report one.
const DefaultIRVersion = "v1alpha1"

// ErrTransactionNotFound is returned when a protocol has no transaction with
// the requested name.
var ErrTransactionNotFound = errors.New("transaction not found")

// Compiler turns protocol source text into a compiled protocol.
type Compiler interface {
	Compile(ctx context.Context, name, source string) (*Protocol, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, name, source string) (*Protocol, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, name, source string) (*Protocol, error) {
	return f(ctx, name, source)
}

// ParamType is the native type of a transaction parameter.
type ParamType string

const (
	ParamInt     ParamType = "Int"
	ParamBool    ParamType = "Bool"
	ParamBytes   ParamType = "Bytes"
	ParamAddress ParamType = "Address"
)

// Known reports whether the type is one the coercer can handle.
func (t ParamType) Known() bool {
	switch t {
	case ParamInt, ParamBool, ParamBytes, ParamAddress:
		return true
	default:
		return false
	}
}

// Param is a single declared transaction parameter.
type Param struct {
	Name string
	Type ParamType
}

// Transaction is a prototype transaction instantiated from a protocol.
type Transaction struct {
	Name   string
	Params []Param
	IR     []byte
}

// ParameterTypes returns the declared parameters keyed by name.
func (t Transaction) ParameterTypes() map[string]ParamType {
	types := make(map[string]ParamType, len(t.Params))
	for _, param := range t.Params {
		types[param.Name] = param.Type
	}
	return types
}

// IRBytes returns a copy of the transaction IR.
func (t Transaction) IRBytes() []byte {
	out := make([]byte, len(t.IR))
	copy(out, t.IR)
	return out
}

// IRHex returns the IR hex-encoded, as the resolver expects it.
func (t Transaction) IRHex() string {
	return hex.EncodeToString(t.IR)
}

// Protocol is a compiled protocol. A value is owned by the call that
// compiled it.
type Protocol struct {
	Name         string
	IRVersion    string
	Transactions []Transaction
}

// TransactionNames lists transaction names in compiler order.
func (p *Protocol) TransactionNames() []string {
	names := make([]string, 0, len(p.Transactions))
	for _, tx := range p.Transactions {
		names = append(names, tx.Name)
	}
	return names
}

// NewTransaction instantiates the named transaction.
func (p *Protocol) NewTransaction(name string) (Transaction, error) {
	for _, tx := range p.Transactions {
		if tx.Name == name {
			params := make([]Param, len(tx.Params))
			copy(params, tx.Params)
			return Transaction{Name: tx.Name, Params: params, IR: tx.IRBytes()}, nil
		}
	}
	return Transaction{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, name)
}

// Version returns the IR version, falling back to DefaultIRVersion.
func (p *Protocol) Version() string {
	if p.IRVersion == "" {
		return DefaultIRVersion
	}
	return p.IRVersion
}
