package peer

import (
	"encoding/hex"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/overspend1/oversync/pkg/storage"
	"github.com/overspend1/oversync/pkg/types"
)

// BlobBucketName is the storage bucket a BlobStore expects to be
// opened with, persisted at data_dir/iroh_data per the node's layout.
const BlobBucketName = "iroh_data"

// BlobStore is a content-addressed blob store: every value is keyed
// by the hex BLAKE3 hash of its own bytes.
type BlobStore struct {
	bucket *storage.Bucket
}

// OpenBlobStore opens the blob bucket on store.
func OpenBlobStore(store *storage.Store) (*BlobStore, error) {
	bucket, err := store.Bucket(BlobBucketName)
	if err != nil {
		return nil, fmt.Errorf("%w: open blob bucket: %v", types.ErrIO, err)
	}
	return &BlobStore{bucket: bucket}, nil
}

// Put stores data under its content hash and returns the hash.
func (s *BlobStore) Put(data []byte) ([32]byte, error) {
	hash := blake3.Sum256(data)
	if err := s.bucket.Put(hex.EncodeToString(hash[:]), data); err != nil {
		return hash, fmt.Errorf("%w: store blob: %v", types.ErrIO, err)
	}
	return hash, nil
}

// PutAt stores data under a hash asserted by the caller (for example,
// a blob just pulled from a peer), rejecting it if it does not
// actually hash to the claimed value.
func (s *BlobStore) PutAt(hash [32]byte, data []byte) error {
	if blake3.Sum256(data) != hash {
		return fmt.Errorf("%w: blob content does not match requested hash", types.ErrProtocol)
	}
	if err := s.bucket.Put(hex.EncodeToString(hash[:]), data); err != nil {
		return fmt.Errorf("%w: store synced blob: %v", types.ErrIO, err)
	}
	return nil
}

// Get returns the blob stored under hash, if any.
func (s *BlobStore) Get(hash [32]byte) ([]byte, bool, error) {
	data, ok, err := s.bucket.Get(hex.EncodeToString(hash[:]))
	if err != nil {
		return nil, false, fmt.Errorf("%w: read blob: %v", types.ErrIO, err)
	}
	return data, ok, nil
}
