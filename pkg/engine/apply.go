package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/overspend1/oversync/pkg/log"
	"github.com/overspend1/oversync/pkg/metrics"
	"github.com/overspend1/oversync/pkg/types"
)

// applyRemoteBlob materializes a blob pulled from a peer into the
// vault: it looks the blob up by content hash, decrypts the envelope,
// writes the plaintext at relPath, and folds the result into the
// index. The Watcher's own event for that write later re-indexes the
// same content hash, leaving the root hash unchanged, and dispatches
// it like any local change. A decryption failure (tampered or corrupted
// ciphertext) is logged and the write is skipped entirely — no
// partial or unauthenticated plaintext ever reaches disk.
func (e *Engine) applyRemoteBlob(relPath string, contentHash [32]byte) error {
	envelope, ok, err := e.node.GetBlob(contentHash)
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("apply_fetch").Inc()
		return fmt.Errorf("%w: fetch pulled blob: %v", types.ErrIO, err)
	}
	if !ok {
		metrics.SyncErrorsTotal.WithLabelValues("apply_missing").Inc()
		return fmt.Errorf("%w: pulled blob %x absent from local store", types.ErrIO, contentHash)
	}

	var blob types.EncryptedBlob
	if err := json.Unmarshal(envelope, &blob); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("apply_decode").Inc()
		return fmt.Errorf("%w: decode blob envelope: %v", types.ErrIO, err)
	}

	plaintext, err := e.enc.Decrypt(blob)
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("apply_decrypt").Inc()
		log.WithPath(relPath).Error().Err(err).Msg("reject remote blob: decryption failed")
		return fmt.Errorf("decrypt remote blob for %s: %w", relPath, err)
	}

	absPath := filepath.Join(e.vaultPath, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("apply_mkdir").Inc()
		return fmt.Errorf("%w: create parent directories for %s: %v", types.ErrIO, relPath, err)
	}
	if err := os.WriteFile(absPath, plaintext, 0644); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("apply_write").Inc()
		return fmt.Errorf("%w: write %s: %v", types.ErrIO, relPath, err)
	}

	if _, err := e.idx.UpdateFile(relPath, plaintext, time.Now()); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("apply_index").Inc()
		return fmt.Errorf("index applied blob for %s: %w", relPath, err)
	}

	e.touchLastSync()
	metrics.RemoteBlobsAppliedTotal.Inc()
	return nil
}
