// Package protocols loads raw tx3 protocol definitions from a local
// directory or a remote registry.
package protocols

import (
	"context"
	"strings"
)

// Definition is a protocol name paired with its source text.
type Definition struct {
	Name   string
	Source string
}

// Loader yields the protocol definitions currently available.
type Loader interface {
	Load(ctx context.Context) ([]Definition, error)
}

// NameDelimiter separates the components of a dynamic operation name. Derived
// protocol names never contain it.
const NameDelimiter = "-"

// NormalizeName reserves the operation delimiter by replacing it with an
// underscore.
func NormalizeName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), NameDelimiter, "_")
}

// Find returns the definition with the given name.
func Find(defs []Definition, name string) (Definition, bool) {
	for _, def := range defs {
		if def.Name == name {
			return def, true
		}
	}
	return Definition{}, false
}

// dedupe drops empty names and keeps the first occurrence of each name.
func dedupe(defs []Definition) []Definition {
	seen := make(map[string]struct{}, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			continue
		}
		if _, ok := seen[def.Name]; ok {
			continue
		}
		seen[def.Name] = struct{}{}
		out = append(out, def)
	}
	return out
}
