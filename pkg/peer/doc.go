// Package peer implements the Peer Node: a persistent ed25519 identity,
// a content-addressed blob store, and a minimal authenticated
// transport for pulling blobs from other nodes by content hash.
//
// The concrete P2P transport a production deployment would use (a
// QUIC or iroh-style connection) sits behind the Transport interface;
// tlsTransport is the stand-in implementation, authenticated by each
// node's self-signed ed25519 certificate rather than a CA chain.
package peer
