package mst

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"github.com/overspend1/oversync/pkg/storage"
	"github.com/overspend1/oversync/pkg/types"
)

const sideTableBucket = "vault_side_table"

// Indexer is the Vault Indexer: a Tree keyed by vault path mapping to
// content hash, paired with a side table of full FileEntry metadata
// persisted in a storage.Bucket so restarts don't require a rescan.
type Indexer struct {
	tree *Tree

	mu   sync.RWMutex
	meta map[string]types.FileEntry

	bucket *storage.Bucket
}

// Open loads an Indexer's side table from bucket (if non-nil) and
// rebuilds the tree from it. Passing a nil bucket gives a purely
// in-memory indexer, useful for tests.
func Open(bucket *storage.Bucket) (*Indexer, error) {
	idx := &Indexer{
		tree:   New(),
		meta:   make(map[string]types.FileEntry),
		bucket: bucket,
	}
	if bucket == nil {
		return idx, nil
	}

	err := bucket.ForEach(func(key, value []byte) error {
		var entry types.FileEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("decode side table entry %q: %w", key, err)
		}
		idx.meta[string(key)] = entry
		idx.tree.Upsert(string(key), entry.ContentHash)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load side table: %v", types.ErrIO, err)
	}
	return idx, nil
}

// UpdateFile hashes content, upserts it into the tree and side table
// under path, and returns the new root hash.
func (idx *Indexer) UpdateFile(path string, content []byte, mtime time.Time) ([32]byte, error) {
	hash := blake3.Sum256(content)
	entry := types.FileEntry{
		Path:         path,
		Size:         uint64(len(content)),
		ContentHash:  hash,
		LastModified: mtime,
	}

	idx.mu.Lock()
	idx.meta[path] = entry
	idx.mu.Unlock()

	if err := idx.persist(path, entry); err != nil {
		return [32]byte{}, err
	}
	return idx.tree.Upsert(path, hash), nil
}

// RemoveFile deletes path from the tree and side table and returns the
// new root hash. Removing an absent path is a no-op that still
// reports the current root hash.
func (idx *Indexer) RemoveFile(path string) ([32]byte, error) {
	idx.mu.Lock()
	_, existed := idx.meta[path]
	delete(idx.meta, path)
	idx.mu.Unlock()

	if existed {
		if err := idx.persistDelete(path); err != nil {
			return [32]byte{}, err
		}
		return idx.tree.Remove(path), nil
	}
	return idx.tree.RootHash(), nil
}

// GetMetadata returns the FileEntry stored for path, if any.
func (idx *Indexer) GetMetadata(path string) (types.FileEntry, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	entry, ok := idx.meta[path]
	return entry, ok
}

// Count returns the number of paths currently tracked.
func (idx *Indexer) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.meta)
}

// RootHash returns the indexer's current root hash.
func (idx *Indexer) RootHash() [32]byte {
	return idx.tree.RootHash()
}

// Diff returns the sorted paths whose content hash differs between
// idx and other.
func (idx *Indexer) Diff(other *Indexer) []string {
	return idx.tree.Diff(other.tree)
}

// RecentActivity returns up to n FileEntry values with the largest
// LastModified, ordered descending.
func (idx *Indexer) RecentActivity(n int) []types.FileEntry {
	idx.mu.RLock()
	entries := make([]types.FileEntry, 0, len(idx.meta))
	for _, e := range idx.meta {
		entries = append(entries, e)
	}
	idx.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastModified.After(entries[j].LastModified)
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

func (idx *Indexer) persist(path string, entry types.FileEntry) error {
	if idx.bucket == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encode side table entry: %v", types.ErrIO, err)
	}
	if err := idx.bucket.Put(path, data); err != nil {
		return fmt.Errorf("%w: write side table entry: %v", types.ErrIO, err)
	}
	return nil
}

func (idx *Indexer) persistDelete(path string) error {
	if idx.bucket == nil {
		return nil
	}
	if err := idx.bucket.Delete(path); err != nil {
		return fmt.Errorf("%w: delete side table entry: %v", types.ErrIO, err)
	}
	return nil
}

// SideTableBucket is the storage bucket name an Indexer expects to be
// opened with.
func SideTableBucket() string { return sideTableBucket }
