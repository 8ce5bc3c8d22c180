// Package mst implements a Merkle Search Tree keyed by vault path, whose
// value for each path is the BLAKE3 hash of that file's content, plus
// the Vault Indexer that pairs it with a path -> FileEntry side table.
//
// The tree assigns every key a deterministic layer from the leading
// zero-nibble count of BLAKE3(key), the same construction AT Protocol
// repositories use for their commit tree. Because layer assignment and
// node boundaries depend only on the key set and not on insertion
// order, two indexers that apply the same upserts in any order converge
// on the same root hash.
package mst
