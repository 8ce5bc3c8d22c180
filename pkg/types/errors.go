package types

import "errors"

// Sentinel errors forming the error taxonomy from the design's error
// handling policy. Callers check with errors.Is; components wrap these
// with fmt.Errorf("...: %w", ErrX) to attach context.
var (
	// ErrAuth covers AEAD decryption failure and remote-mirror token
	// rejection.
	ErrAuth = errors.New("authentication failed")

	// ErrIO covers filesystem, network, and SQL transport failures.
	ErrIO = errors.New("i/o failure")

	// ErrProtocol covers malformed tickets, unexpected remote object
	// types, and base64/JSON decode failures on a blob.
	ErrProtocol = errors.New("protocol error")

	// ErrConflict covers a rejected remote ref update caused by a
	// concurrent mutation on the mirror branch.
	ErrConflict = errors.New("conflicting remote update")

	// ErrNotInitialized is returned by control-surface operations
	// invoked before the Sync Engine has been constructed.
	ErrNotInitialized = errors.New("sync engine not initialized")

	// ErrFatal covers cryptographic operations that return an error
	// under inputs the design asserts should never occur.
	ErrFatal = errors.New("fatal cryptographic error")
)
