// Package controlapi exposes the Sync Engine's control surface over a
// localhost-only HTTP+JSON interface: initialize_sync, get_sync_status,
// generate_ticket, connect_peer, and get_recent_activity, each returning
// a small {ok, error, ...} JSON body. It is adapted from the teacher
// repo's pkg/api request/response shape, with mTLS and gRPC dropped
// since this surface is a local, single-user desktop/CLI interface
// rather than a clustered network service.
package controlapi
