// Package driving declares what the transports (CLI, HTTP API, MCP) may
// ask of the retrieval core. internal/core/services implements it.
package driving
