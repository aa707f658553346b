// Package api provides the HTTP front end for the relay service.
package api

import (
	apimcp "github.com/papercomputeco/neolink/api/mcp"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8082")
	ListenAddr string

	// MCP is mounted at /mcp when set.
	MCP *apimcp.Server
}
