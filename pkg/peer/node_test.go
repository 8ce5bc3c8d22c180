package peer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/overspend1/oversync/pkg/storage"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(dir, "node.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	n, err := Open(dir, store, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func runNode(t *testing.T, n *Node) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go n.Run(ctx)
	return cancel
}

func TestConnectDialsAndRecordsPeerOnce(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	cancel := runNode(t, b)
	defer cancel()

	sub := a.Subscribe()
	defer sub.Close()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	require.NoError(t, a.Connect(ctx, b.Ticket()))
	require.NoError(t, a.Connect(ctx, b.Ticket()))

	require.Len(t, a.ActivePeers(), 1)
	require.Equal(t, b.NodeID(), a.ActivePeers()[0])

	select {
	case ev := <-sub.Events():
		require.Equal(t, "peer_connected", string(ev.Kind))
	case <-time.After(time.Second):
		t.Fatal("expected PeerConnected event")
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected second event for deduplicated connect: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConnectRejectsMalformedTicket(t *testing.T) {
	a := newTestNode(t)
	ctx := context.Background()
	err := a.Connect(ctx, "not-a-valid-ticket!!")
	require.Error(t, err)
}

func TestAddBlobAndSyncBlobRoundTrip(t *testing.T) {
	a := newTestNode(t)
	b := newTestNode(t)
	cancelA := runNode(t, a)
	defer cancelA()
	cancelB := runNode(t, b)
	defer cancelB()

	ctx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()

	payload := []byte("encrypted blob contents")
	hash, err := b.AddBlob("notes/a.md", payload)
	require.NoError(t, err)

	require.NoError(t, a.Connect(ctx, b.Ticket()))

	aSub := a.Subscribe()
	defer aSub.Close()

	require.NoError(t, a.SyncBlob(ctx, b.NodeID(), hash))

	got, ok, err := a.blobs.Get(hash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, payload, got)

	var sawStarted, sawFinished bool
	for i := 0; i < 2; i++ {
		select {
		case ev := <-aSub.Events():
			switch ev.Kind {
			case "sync_started":
				sawStarted = true
			case "sync_finished":
				sawFinished = true
				require.Equal(t, "notes/a.md", ev.Path)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for sync events")
		}
	}
	require.True(t, sawStarted)
	require.True(t, sawFinished)
}

func TestSyncBlobFailsWithoutConnection(t *testing.T) {
	a := newTestNode(t)
	sub := a.Subscribe()
	defer sub.Close()

	err := a.SyncBlob(context.Background(), "unknown-peer", [32]byte{1, 2, 3})
	require.Error(t, err)

	select {
	case ev := <-sub.Events():
		require.Equal(t, "sync_failed", string(ev.Kind))
		require.NotEmpty(t, ev.Err)
	case <-time.After(time.Second):
		t.Fatal("expected SyncFailed event")
	}
}

func TestDisconnectEmitsPeerDisconnectedOnlyIfPresent(t *testing.T) {
	a := newTestNode(t)
	sub := a.Subscribe()
	defer sub.Close()

	a.Disconnect("never-connected")
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event for disconnecting an absent peer: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
