package peer

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/overspend1/oversync/pkg/types"
)

const secretKeyFile = "secret_key"

// Identity is a node's persistent ed25519 keypair. The node id is the
// hex-encoded public key and is stable across restarts.
type Identity struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NodeID returns the hex-encoded public key.
func (id Identity) NodeID() string {
	return hex.EncodeToString(id.Public)
}

// LoadOrCreateIdentity loads the seed persisted at dataDir/secret_key,
// or generates one from a CSPRNG and persists it on first start.
func LoadOrCreateIdentity(dataDir string) (Identity, error) {
	path := filepath.Join(dataDir, secretKeyFile)

	seed, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(seed) != ed25519.SeedSize {
			return Identity{}, fmt.Errorf("%w: corrupt secret key at %s", types.ErrFatal, path)
		}
		priv := ed25519.NewKeyFromSeed(seed)
		return Identity{Public: priv.Public().(ed25519.PublicKey), Private: priv}, nil

	case os.IsNotExist(err):
		pub, priv, genErr := ed25519.GenerateKey(nil)
		if genErr != nil {
			return Identity{}, fmt.Errorf("%w: generate identity: %v", types.ErrFatal, genErr)
		}
		if mkErr := os.MkdirAll(dataDir, 0700); mkErr != nil {
			return Identity{}, fmt.Errorf("%w: create data dir: %v", types.ErrIO, mkErr)
		}
		if wErr := os.WriteFile(path, priv.Seed(), 0600); wErr != nil {
			return Identity{}, fmt.Errorf("%w: persist secret key: %v", types.ErrIO, wErr)
		}
		return Identity{Public: pub, Private: priv}, nil

	default:
		return Identity{}, fmt.Errorf("%w: read secret key: %v", types.ErrIO, err)
	}
}
