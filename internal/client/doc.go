// Package client implements the device sync agent.
//
// It wires the local state store, the server adapter and the realtime
// connection into a single [DeviceSyncClient]: application code tracks local
// mutations, the client queues them durably, pushes them to the circle's
// ledger, pulls peer changes back, and listens on the realtime connection for
// update notifications that trigger a pull.
package client
