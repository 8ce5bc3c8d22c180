// Package relay implements the Directory Relay: a small Postgres-backed
// discovery hint that lets devices find each other's current ticket and
// a vault's last-advertised root hash without the relay ever being
// consulted as authoritative state — every fact it serves is re-verified
// (or simply superseded) by direct peer sync, the same way the teacher
// repo treats its control plane as advisory over the data each node
// actually holds.
package relay
