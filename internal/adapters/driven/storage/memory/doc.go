// Package memory provides in-memory implementations of the driven ports.
// They back tests and single-process deployments that need no persistence.
package memory
