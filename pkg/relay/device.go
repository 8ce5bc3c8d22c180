package relay

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/overspend1/oversync/pkg/storage"
	"github.com/overspend1/oversync/pkg/types"
)

const deviceIDKey = "device_id"

// LoadOrCreateDeviceID returns the UUID this device advertises itself
// under in the relay's devices relation, generating and persisting one
// on first use so it is stable across restarts — the same
// load-or-create shape as the Peer Node's secret key.
func LoadOrCreateDeviceID(bucket *storage.Bucket) (uuid.UUID, error) {
	raw, ok, err := bucket.Get(deviceIDKey)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: read device id: %v", types.ErrIO, err)
	}
	if ok {
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return uuid.UUID{}, fmt.Errorf("%w: corrupt device id: %v", types.ErrProtocol, err)
		}
		return id, nil
	}

	id := uuid.New()
	if err := bucket.Put(deviceIDKey, []byte(id.String())); err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: persist device id: %v", types.ErrIO, err)
	}
	return id, nil
}
