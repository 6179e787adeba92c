// Package domain derives the dynamic tool surface from tx3 protocols and
// dispatches calls against it.
//
// Every protocol transaction yields two operations named
// "<action>-<protocol>-<transaction>": resolve forwards coerced arguments to
// the resolver service, describe reports the parameter types. Nothing is
// memoized here; each call loads and compiles from the configured sources.
package domain
