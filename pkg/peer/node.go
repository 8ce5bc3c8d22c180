package peer

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/overspend1/oversync/pkg/storage"
	"github.com/overspend1/oversync/pkg/types"
)

// BlobAnnouncement is the small envelope a node sends immediately
// after a blob it pulls, letting the receiving side map an inbound
// content hash back to the vault path it belongs to. The P2P blob
// store itself only ever sees opaque ciphertext, so this is the one
// place path information crosses the wire — never inside the blob.
type BlobAnnouncement struct {
	Path        string   `json:"path"`
	ContentHash [32]byte `json:"content_hash"`
}

// Node is the Peer Node: a persistent identity, a content-addressed
// blob store, an active-peer set, and a broadcast event bus, wired
// over a Transport.
type Node struct {
	id        Identity
	transport Transport
	blobs     *BlobStore
	bus       *EventBus

	mu     sync.Mutex
	active map[string]types.Ticket // node id -> ticket used to reach it
	conns  map[string]Conn         // node id -> live connection, if dialed

	announcements map[[32]byte]BlobAnnouncement
	annMu         sync.RWMutex
}

// Open loads (or creates) a node identity under dataDir, opens its
// blob store in store, and binds a transport listening on
// listenAddr. It does not start accepting connections; call Run for
// that.
func Open(dataDir string, store *storage.Store, listenAddr string) (*Node, error) {
	id, err := LoadOrCreateIdentity(dataDir)
	if err != nil {
		return nil, err
	}
	blobs, err := OpenBlobStore(store)
	if err != nil {
		return nil, err
	}
	transport, err := NewTLSTransport(id, listenAddr)
	if err != nil {
		return nil, err
	}
	return &Node{
		id:            id,
		transport:     transport,
		blobs:         blobs,
		bus:           NewEventBus(),
		active:        make(map[string]types.Ticket),
		conns:         make(map[string]Conn),
		announcements: make(map[[32]byte]BlobAnnouncement),
	}, nil
}

// NodeID returns this node's stable, hex-encoded public identity.
func (n *Node) NodeID() string { return n.id.NodeID() }

// Run accepts inbound connections until ctx is cancelled, recording
// each connecting peer as active and emitting PeerConnected.
func (n *Node) Run(ctx context.Context) error {
	incoming, err := n.transport.Listen()
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return n.transport.Close()
		case conn, ok := <-incoming:
			if !ok {
				return nil
			}
			if n.recordPeer(conn.RemoteNodeID(), types.Ticket{NodeID: conn.RemoteNodeID()}) {
				n.bus.Publish(types.P2pEvent{Kind: types.EventPeerConnected, PeerID: conn.RemoteNodeID(), At: now()})
			}
			n.storeConn(conn.RemoteNodeID(), conn)
			go n.serve(conn)
		}
	}
}

// serve answers blob requests on an accepted connection until it
// closes: a request is a bare 32-byte content hash; the response is
// an 8-byte big-endian length followed by that many bytes (zero
// length if the blob is not held locally).
func (n *Node) serve(conn Conn) {
	var req [32]byte
	for {
		if _, err := io.ReadFull(conn, req[:]); err != nil {
			return
		}
		data, _, _ := n.blobs.Get(req)

		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(data)))
		if _, err := conn.Write(lenBuf[:]); err != nil {
			return
		}
		if len(data) > 0 {
			if _, err := conn.Write(data); err != nil {
				return
			}
		}
	}
}

// Ticket encodes this node's current address and id as a shareable
// ticket string.
func (n *Node) Ticket() string {
	return EncodeTicket(n.transport.Ticket())
}

// Connect parses ticket, dials the described peer, and records it in
// the active set (deduplicated across repeated calls), emitting
// PeerConnected. It fails with types.ErrProtocol if ticket cannot be
// parsed.
func (n *Node) Connect(ctx context.Context, ticket string) error {
	t, err := DecodeTicket(ticket)
	if err != nil {
		return err
	}

	conn, err := n.transport.Dial(ctx, t)
	if err != nil {
		return err
	}

	isNew := n.recordPeer(t.NodeID, t)
	n.storeConn(t.NodeID, conn)
	if isNew {
		n.bus.Publish(types.P2pEvent{Kind: types.EventPeerConnected, PeerID: t.NodeID, At: now()})
	}
	return nil
}

// Disconnect drops peerID from the active set and emits
// PeerDisconnected, if it was present.
func (n *Node) Disconnect(peerID string) {
	n.mu.Lock()
	_, existed := n.active[peerID]
	delete(n.active, peerID)
	if conn, ok := n.conns[peerID]; ok {
		conn.Close()
		delete(n.conns, peerID)
	}
	n.mu.Unlock()

	if existed {
		n.bus.Publish(types.P2pEvent{Kind: types.EventPeerDisconnected, PeerID: peerID, At: now()})
	}
}

// ActivePeers returns the node ids currently recorded as connected.
func (n *Node) ActivePeers() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.active))
	for id := range n.active {
		out = append(out, id)
	}
	return out
}

// AddBlob inserts data into the local blob store under its content
// hash, announcing (path, hash) so a future SyncBlob pull from this
// node can be resolved back to a vault path.
func (n *Node) AddBlob(path string, data []byte) ([32]byte, error) {
	hash, err := n.blobs.Put(data)
	if err != nil {
		return hash, err
	}
	n.annMu.Lock()
	n.announcements[hash] = BlobAnnouncement{Path: path, ContentHash: hash}
	n.annMu.Unlock()
	return hash, nil
}

// SyncBlob pulls the blob named contentHash from peerID over an
// already-established connection, storing it locally and emitting
// SyncStarted before the pull and SyncFinished/SyncFailed after.
// Errors are returned to the caller in addition to being published.
func (n *Node) SyncBlob(ctx context.Context, peerID string, contentHash [32]byte) error {
	n.bus.Publish(types.P2pEvent{Kind: types.EventSyncStarted, PeerID: peerID, ContentHash: contentHash, At: now()})

	data, path, err := n.pullBlob(ctx, peerID, contentHash)
	if err != nil {
		n.bus.Publish(types.P2pEvent{
			Kind: types.EventSyncFailed, PeerID: peerID, ContentHash: contentHash,
			Err: err.Error(), At: now(),
		})
		return err
	}

	if err := n.blobs.PutAt(contentHash, data); err != nil {
		n.bus.Publish(types.P2pEvent{
			Kind: types.EventSyncFailed, PeerID: peerID, ContentHash: contentHash,
			Err: err.Error(), At: now(),
		})
		return err
	}

	n.bus.Publish(types.P2pEvent{
		Kind: types.EventSyncFinished, PeerID: peerID, ContentHash: contentHash,
		Path: path, At: now(),
	})
	return nil
}

// pullBlob requests contentHash from peerID over the live connection
// recorded for it. The wire protocol is deliberately minimal — the
// concrete transport is explicitly out of scope (spec.md §1) — a bare
// 32-byte hash request followed by a length-prefixed response
// carrying the raw blob bytes.
func (n *Node) pullBlob(ctx context.Context, peerID string, contentHash [32]byte) ([]byte, string, error) {
	n.mu.Lock()
	conn, ok := n.conns[peerID]
	n.mu.Unlock()
	if !ok {
		return nil, "", fmt.Errorf("%w: no live connection to peer %s", types.ErrIO, peerID)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}

	if _, err := conn.Write(contentHash[:]); err != nil {
		return nil, "", fmt.Errorf("%w: request blob from %s: %v", types.ErrIO, peerID, err)
	}

	var lenBuf [8]byte
	if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
		return nil, "", fmt.Errorf("%w: read blob length from %s: %v", types.ErrIO, peerID, err)
	}
	size := binary.BigEndian.Uint64(lenBuf[:])
	if size == 0 {
		return nil, "", fmt.Errorf("%w: peer %s does not hold blob %x", types.ErrProtocol, peerID, contentHash)
	}
	if size > maxBlobSize {
		return nil, "", fmt.Errorf("%w: blob from %s exceeds size limit", types.ErrProtocol, peerID)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, "", fmt.Errorf("%w: read blob from %s: %v", types.ErrIO, peerID, err)
	}

	path := ""
	n.annMu.RLock()
	if ann, ok := n.announcements[contentHash]; ok {
		path = ann.Path
	}
	n.annMu.RUnlock()

	return data, path, nil
}

// maxBlobSize bounds a single pulled blob; the spec treats blobs as
// whole-file encryption units, never chunked, so this just guards
// against a misbehaving peer streaming forever.
const maxBlobSize = 1 << 30 // 1 GiB

// GetBlob returns the raw bytes stored under contentHash, if any.
func (n *Node) GetBlob(contentHash [32]byte) ([]byte, bool, error) {
	return n.blobs.Get(contentHash)
}

// Subscribe returns a new subscription to this node's P2pEvent bus.
func (n *Node) Subscribe() *Subscription {
	return n.bus.Subscribe()
}

// Close releases the underlying transport.
func (n *Node) Close() error {
	return n.transport.Close()
}

func (n *Node) recordPeer(peerID string, t types.Ticket) (isNew bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, existed := n.active[peerID]
	n.active[peerID] = t
	return !existed
}

func (n *Node) storeConn(peerID string, conn Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conns[peerID] = conn
}

// now is a seam so tests could substitute a fixed clock; production
// always uses the wall clock.
var now = time.Now
