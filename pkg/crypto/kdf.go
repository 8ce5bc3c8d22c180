package crypto

// DeriveKey turns the raw key material the control surface receives
// into a 32-byte encryption key per spec.md §6: material shorter than
// KeySize is zero-padded, material longer than KeySize is truncated.
// This has no cryptographic separation between inputs and is a known
// weak policy (see DESIGN.md's open-question resolution) — a future
// revision should replace it with a real KDF (HKDF or Argon2) and
// migrate existing vaults, but the control surface's documented
// contract is pad/truncate, not derivation, so that is what ships.
func DeriveKey(raw []byte) [KeySize]byte {
	var out [KeySize]byte
	copy(out[:], raw)
	return out
}
