package engine

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overspend1/oversync/pkg/crypto"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	var key [crypto.KeySize]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)

	e, err := New(Config{
		VaultPath:     t.TempDir(),
		P2PDataDir:    t.TempDir(),
		ListenAddr:    "127.0.0.1:0",
		EncryptionKey: key,
	})
	require.NoError(t, err)

	e.Start()
	t.Cleanup(func() { e.Shutdown() })
	return e
}

func writeVaultFile(t *testing.T, e *Engine, relPath string, content []byte) {
	t.Helper()
	abs := filepath.Join(e.vaultPath, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
	require.NoError(t, os.WriteFile(abs, content, 0644))
}

func TestCreatedFileIsIndexed(t *testing.T) {
	e := newTestEngine(t)
	writeVaultFile(t, e, "notes.md", []byte("hello vault"))

	require.Eventually(t, func() bool {
		_, ok := e.idx.GetMetadata("notes.md")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	entry, ok := e.idx.GetMetadata("notes.md")
	require.True(t, ok)
	require.EqualValues(t, len("hello vault"), entry.Size)
}

func TestUpdatingFileTwiceIndexesLatestContent(t *testing.T) {
	e := newTestEngine(t)
	writeVaultFile(t, e, "draft.txt", []byte("v1"))

	require.Eventually(t, func() bool {
		entry, ok := e.idx.GetMetadata("draft.txt")
		return ok && entry.Size == 2
	}, 5*time.Second, 20*time.Millisecond)

	writeVaultFile(t, e, "draft.txt", []byte("version two"))

	require.Eventually(t, func() bool {
		entry, ok := e.idx.GetMetadata("draft.txt")
		return ok && entry.Size == uint64(len("version two"))
	}, 5*time.Second, 20*time.Millisecond)
}

func TestDeletedFileIsRemovedFromIndex(t *testing.T) {
	e := newTestEngine(t)
	abs := filepath.Join(e.vaultPath, "temp.txt")
	writeVaultFile(t, e, "temp.txt", []byte("ephemeral"))

	require.Eventually(t, func() bool {
		_, ok := e.idx.GetMetadata("temp.txt")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(abs))

	require.Eventually(t, func() bool {
		_, ok := e.idx.GetMetadata("temp.txt")
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestConnectPeerIsIdempotent(t *testing.T) {
	a := newTestEngine(t)
	b := newTestEngine(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.ConnectPeer(ctx, b.GenerateTicket()))
	require.NoError(t, a.ConnectPeer(ctx, b.GenerateTicket()))

	require.Eventually(t, func() bool {
		return a.PeersConnectedCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	// giving the duplicate connect a moment to (not) double count
	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, a.PeersConnectedCount())
}

func TestApplyRemoteBlobRejectsTamperedCiphertext(t *testing.T) {
	e := newTestEngine(t)

	blob, err := e.enc.Encrypt([]byte("trust me"))
	require.NoError(t, err)
	blob.Ciphertext[0] ^= 0xFF // tamper

	envelope, err := json.Marshal(blob)
	require.NoError(t, err)

	hash, err := e.node.AddBlob("secret.txt", envelope)
	require.NoError(t, err)

	err = e.applyRemoteBlob("secret.txt", hash)
	require.Error(t, err)

	_, ok := e.idx.GetMetadata("secret.txt")
	require.False(t, ok)
	_, statErr := os.Stat(filepath.Join(e.vaultPath, "secret.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestApplyRemoteBlobWritesAuthenticContent(t *testing.T) {
	e := newTestEngine(t)

	plaintext := []byte("authentic payload")
	blob, err := e.enc.Encrypt(plaintext)
	require.NoError(t, err)
	envelope, err := json.Marshal(blob)
	require.NoError(t, err)

	hash, err := e.node.AddBlob("remote/incoming.txt", envelope)
	require.NoError(t, err)

	require.NoError(t, e.applyRemoteBlob("remote/incoming.txt", hash))

	got, err := os.ReadFile(filepath.Join(e.vaultPath, "remote", "incoming.txt"))
	require.NoError(t, err)
	require.Equal(t, plaintext, got)

	entry, ok := e.idx.GetMetadata("remote/incoming.txt")
	require.True(t, ok)
	require.EqualValues(t, len(plaintext), entry.Size)
}

func TestRecentActivityOrdersTwelveFilesToTopTen(t *testing.T) {
	e := newTestEngine(t)

	for i := 1; i <= 12; i++ {
		name := fmt.Sprintf("f%02d.txt", i)
		writeVaultFile(t, e, name, []byte(name))
		// force strictly increasing mtimes even on filesystems with
		// coarse timestamp resolution
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return e.idx.Count() == 12
	}, 5*time.Second, 20*time.Millisecond)

	recent := e.GetRecentActivity()
	require.Len(t, recent, 10)
	require.Equal(t, "f12.txt", recent[0].Path)
	require.Equal(t, "f03.txt", recent[9].Path)

	for i := 0; i+1 < len(recent); i++ {
		require.False(t, recent[i].LastModified.Before(recent[i+1].LastModified))
	}
}

func TestPeersConnectedNeverGoesNegative(t *testing.T) {
	e := newTestEngine(t)
	e.adjustPeersConnected(-1)
	e.adjustPeersConnected(-1)
	require.EqualValues(t, 0, e.PeersConnectedCount())

	e.adjustPeersConnected(1)
	e.adjustPeersConnected(-1)
	e.adjustPeersConnected(-1)
	require.EqualValues(t, 0, e.PeersConnectedCount())
}

func TestStatusReflectsLastSync(t *testing.T) {
	e := newTestEngine(t)
	require.Nil(t, e.GetStatus().LastSync)

	writeVaultFile(t, e, "a.txt", []byte("a"))
	require.Eventually(t, func() bool {
		return e.GetStatus().LastSync != nil
	}, 5*time.Second, 20*time.Millisecond)
}
