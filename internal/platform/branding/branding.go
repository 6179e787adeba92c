// Package branding holds the product name shared by binaries and protocol
// handshakes.
package branding

// AppName is the user-facing product name.
const AppName = "tx3-mcp"
