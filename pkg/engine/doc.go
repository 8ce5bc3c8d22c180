// Package engine implements the Sync Engine: the orchestrator that
// wires the Encryptor, Vault Indexer, Watcher, Peer Node and optional
// Remote Mirror into the replication pipeline described by the vault
// sync design — watcher events flow into a serialized index update
// followed by detached peer/mirror dispatch, and peer events flow
// into connection status and inbound blob application.
//
// Construction and the two long-lived loops are adapted from the
// teacher repo's pkg/manager.NewManager (sequential subsystem
// construction) and pkg/worker's ticker-and-select loop idiom,
// generalized from polling ticks to blocking channel receives.
package engine
