// Package crypto encrypts and decrypts vault blobs with
// XChaCha20-Poly1305, and derives the 256-bit key used to do so from
// whatever raw secret the pairing flow produces.
package crypto
