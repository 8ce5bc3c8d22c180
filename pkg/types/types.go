package types

import (
	"time"

	"github.com/google/uuid"
)

// FileEntry is the side-table record for a single vault-relative path.
// It carries metadata that does not contribute to the MST root hash.
type FileEntry struct {
	Path         string
	Size         uint64
	ContentHash  [32]byte // BLAKE3 of plaintext content
	LastModified time.Time
}

// EncryptedBlob is the on-wire/on-disk representation of an encrypted
// payload: an AEAD ciphertext (tag included) and its nonce.
type EncryptedBlob struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
}

// Ticket is the serializable handle used to bootstrap a direct peer
// connection: a node identifier plus the network addresses it is
// currently reachable at.
type Ticket struct {
	NodeID    string   `json:"node_id"`
	Addresses []string `json:"addresses"`
}

// DeviceRecord is a row in the directory relay's devices relation.
type DeviceRecord struct {
	DeviceID uuid.UUID
	Name     string
	Ticket   string
	LastSeen time.Time
}

// VaultState is a row in the directory relay's vault_state relation —
// the latest advertised MST root hash for a vault.
type VaultState struct {
	VaultID   string
	RootHash  [32]byte
	UpdatedAt time.Time
}

// SyncStatus is process-lifetime state describing the Sync Engine's
// current activity. It is recreated on restart and never persisted.
type SyncStatus struct {
	IsSyncing      bool
	LastSync       *time.Time
	PeersConnected uint32
}

// P2pEventKind enumerates the events the Peer Node broadcasts to the
// Sync Engine.
type P2pEventKind string

const (
	EventPeerConnected    P2pEventKind = "peer_connected"
	EventPeerDisconnected P2pEventKind = "peer_disconnected"
	EventSyncStarted      P2pEventKind = "sync_started"
	EventSyncFinished     P2pEventKind = "sync_finished"
	EventSyncFailed       P2pEventKind = "sync_failed"
)

// P2pEvent is a single event emitted on the Peer Node's broadcast bus.
type P2pEvent struct {
	Kind        P2pEventKind
	PeerID      string
	ContentHash [32]byte // set for SyncStarted/SyncFinished/SyncFailed
	Path        string   // set when a BlobAnnouncement accompanied the blob
	Err         string   // set for SyncFailed
	At          time.Time
}

// ChangeKind classifies a Watcher event.
type ChangeKind string

const (
	ChangeContent ChangeKind = "content_changed"
	ChangeRemoved ChangeKind = "removed"
	ChangeIgnored ChangeKind = "ignored"
)

// ChangeEvent is a single semantic filesystem change emitted by the
// Watcher, classified by ChangeKind.
type ChangeEvent struct {
	Kind ChangeKind
	Path string // filesystem path as reported by fsnotify, under the vault root
}

// MirrorConfig identifies the hosted repository a Remote Mirror targets.
type MirrorConfig struct {
	Owner  string
	Repo   string
	Branch string
	Token  string
}

// RelayConfig identifies the hosted Directory Relay a device
// advertises itself and its vault's root hash to.
type RelayConfig struct {
	// DSN is the Postgres connection string.
	DSN string
	// VaultID names this vault in the relay's vault_state relation.
	VaultID string
	// DeviceName is this device's human-readable name in the relay's
	// devices relation.
	DeviceName string
}
