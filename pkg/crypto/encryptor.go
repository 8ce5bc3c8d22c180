// Package crypto provides authenticated symmetric encryption for vault
// blobs, adapted from the teacher repo's pkg/security secrets handling
// but built on XChaCha20-Poly1305 (extended 192-bit nonce) instead of
// AES-256-GCM, so that nonces can be drawn at random from multiple
// concurrent encrypting goroutines without a shared counter.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/overspend1/oversync/pkg/types"
)

// KeySize is the required length, in bytes, of an Encryptor key.
const KeySize = chacha20poly1305.KeySize // 32

// NonceSize is the length, in bytes, of the nonce returned by Encrypt.
const NonceSize = chacha20poly1305.NonceSizeX // 24

// Encryptor wraps a fixed 256-bit AEAD key. It is immutable and safe
// for concurrent use from multiple goroutines.
type Encryptor struct {
	aead cipher.AEAD
}

// New builds an Encryptor from a 32-byte key.
func New(key [KeySize]byte) (*Encryptor, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: construct aead: %v", types.ErrFatal, err)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt draws a fresh random nonce and seals plaintext under it.
// The AEAD is never given associated data: per the design, the
// ciphertext's tag covers only the plaintext.
func (e *Encryptor) Encrypt(plaintext []byte) (types.EncryptedBlob, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return types.EncryptedBlob{}, fmt.Errorf("%w: generate nonce: %v", types.ErrFatal, err)
	}

	ciphertext := e.aead.Seal(nil, nonce, plaintext, nil)
	return types.EncryptedBlob{Ciphertext: ciphertext, Nonce: nonce}, nil
}

// Decrypt authenticates and decrypts a blob previously produced by
// Encrypt. It returns types.ErrAuth if the tag is invalid or the nonce
// does not match; no partial plaintext is ever returned on failure.
func (e *Encryptor) Decrypt(blob types.EncryptedBlob) ([]byte, error) {
	if len(blob.Nonce) != e.aead.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", types.ErrAuth, len(blob.Nonce))
	}

	plaintext, err := e.aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAuth, err)
	}
	return plaintext, nil
}
