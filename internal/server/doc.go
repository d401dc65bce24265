// Package server wires and runs the sync server's HTTP transport, including
// startup, signal handling, and graceful shutdown.
package server
