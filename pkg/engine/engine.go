package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/overspend1/oversync/pkg/crypto"
	"github.com/overspend1/oversync/pkg/log"
	"github.com/overspend1/oversync/pkg/metrics"
	"github.com/overspend1/oversync/pkg/mirror"
	"github.com/overspend1/oversync/pkg/mst"
	"github.com/overspend1/oversync/pkg/peer"
	"github.com/overspend1/oversync/pkg/relay"
	"github.com/overspend1/oversync/pkg/storage"
	"github.com/overspend1/oversync/pkg/types"
	"github.com/overspend1/oversync/pkg/watcher"
)

// relayAdvertiseInterval is how often the Engine refreshes its device
// row in the Directory Relay, comfortably inside the 5-minute
// freshness window GetActivePeers filters on.
const relayAdvertiseInterval = 2 * time.Minute

// Config holds everything needed to construct an Engine for one vault.
type Config struct {
	// VaultPath is the directory tree being synchronized.
	VaultPath string
	// P2PDataDir holds the Peer Node's identity and blob store.
	P2PDataDir string
	// ListenAddr is the address the Peer Node's transport binds.
	// Empty selects an ephemeral port on loopback.
	ListenAddr string
	// EncryptionKey is the 32-byte vault encryption key (already
	// derived — see pkg/crypto.DeriveKey for turning raw pairing
	// material into this shape).
	EncryptionKey [crypto.KeySize]byte
	// Mirror, if non-nil, enables the optional Remote Mirror leg.
	Mirror *types.MirrorConfig
	// Relay, if non-nil, enables the optional Directory Relay leg.
	Relay *types.RelayConfig
}

// Engine is the Sync Engine: it exclusively owns the Encryptor and
// Vault Indexer, and holds shared handles to the Peer Node and the
// optional Remote Mirror so the two background tasks below may use
// them concurrently with foreground control-surface calls.
type Engine struct {
	vaultPath string

	enc    *crypto.Encryptor
	idx    *mst.Indexer
	node   *peer.Node
	mirror *mirror.Mirror
	watch  *watcher.Watcher
	store  *storage.Store

	relay           *relay.Relay
	relayVaultID    string
	relayDeviceID   uuid.UUID
	relayDeviceName string

	statusMu sync.RWMutex
	status   types.SyncStatus

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Engine. It builds, in order, the Encryptor, the
// local storage file, the Indexer (restoring its side table from
// disk), the Peer Node, the optional Remote Mirror, a Watcher rooted
// at cfg.VaultPath, and the optional Directory Relay — matching the teacher's NewManager
// sequential-construction-with-wrapped-errors style. It does not yet
// start the background tasks; call Start for that.
func New(cfg Config) (*Engine, error) {
	if err := os.MkdirAll(cfg.VaultPath, 0755); err != nil {
		return nil, fmt.Errorf("%w: create vault directory: %v", types.ErrIO, err)
	}
	if err := os.MkdirAll(cfg.P2PDataDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: create p2p data directory: %v", types.ErrIO, err)
	}

	enc, err := crypto.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("construct encryptor: %w", err)
	}

	store, err := storage.Open(cfg.P2PDataDir, "oversync.db")
	if err != nil {
		return nil, fmt.Errorf("%w: open local store: %v", types.ErrIO, err)
	}

	sideTable, err := store.Bucket(mst.SideTableBucket())
	if err != nil {
		store.Close()
		return nil, err
	}
	idx, err := mst.Open(sideTable)
	if err != nil {
		store.Close()
		return nil, err
	}

	listenAddr := cfg.ListenAddr
	if listenAddr == "" {
		listenAddr = "127.0.0.1:0"
	}
	node, err := peer.Open(cfg.P2PDataDir, store, listenAddr)
	if err != nil {
		store.Close()
		return nil, err
	}

	var mir *mirror.Mirror
	if cfg.Mirror != nil {
		mir = mirror.New(*cfg.Mirror, enc)
	}

	w, err := watcher.New(cfg.VaultPath)
	if err != nil {
		node.Close()
		store.Close()
		return nil, err
	}

	var (
		rel             *relay.Relay
		relayDeviceID   uuid.UUID
		relayVaultID    string
		relayDeviceName string
	)
	if cfg.Relay != nil {
		relayBucket, err := store.Bucket("relay")
		if err != nil {
			w.Close()
			node.Close()
			store.Close()
			return nil, err
		}
		relayDeviceID, err = relay.LoadOrCreateDeviceID(relayBucket)
		if err != nil {
			w.Close()
			node.Close()
			store.Close()
			return nil, err
		}
		rel, err = relay.Open(context.Background(), cfg.Relay.DSN)
		if err != nil {
			w.Close()
			node.Close()
			store.Close()
			return nil, err
		}
		relayVaultID = cfg.Relay.VaultID
		if relayVaultID == "" {
			relayVaultID = cfg.VaultPath
		}
		relayDeviceName = cfg.Relay.DeviceName
	}

	return &Engine{
		vaultPath:       cfg.VaultPath,
		enc:             enc,
		idx:             idx,
		node:            node,
		mirror:          mir,
		watch:           w,
		store:           store,
		relay:           rel,
		relayVaultID:    relayVaultID,
		relayDeviceID:   relayDeviceID,
		relayDeviceName: relayDeviceName,
	}, nil
}

// Start spawns the watcher task and the peer event task and begins
// accepting inbound peer connections. Start returns immediately; the
// tasks run until Shutdown is called.
func (e *Engine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(3)
	go func() { defer e.wg.Done(); e.watch.Run() }()
	go func() { defer e.wg.Done(); e.watcherTask() }()
	go func() { defer e.wg.Done(); e.peerEventTask(ctx) }()

	go func() {
		if err := e.node.Run(ctx); err != nil {
			log.WithComponent("engine").Error().Err(err).Msg("peer node run loop exited")
		}
	}()

	if e.relay != nil {
		e.wg.Add(1)
		go func() { defer e.wg.Done(); e.relayTask(ctx) }()
	}
}

// Shutdown stops both background tasks, closes the watcher and peer
// node, and releases the local store. Detached dispatch tasks already
// in flight are not individually cancelled; they may complete or fail
// with a transport-closed error, per the design's cancellation model.
func (e *Engine) Shutdown() error {
	if e.cancel != nil {
		e.cancel()
	}
	if err := e.watch.Close(); err != nil {
		log.WithComponent("engine").Warn().Err(err).Msg("closing watcher")
	}
	e.wg.Wait()
	if err := e.node.Close(); err != nil {
		log.WithComponent("engine").Warn().Err(err).Msg("closing peer node")
	}
	if e.relay != nil {
		if err := e.relay.Close(); err != nil {
			log.WithComponent("engine").Warn().Err(err).Msg("closing relay connection")
		}
	}
	return e.store.Close()
}

// GetStatus returns a snapshot of the current sync status under the
// shared lock.
func (e *Engine) GetStatus() types.SyncStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// GetRecentActivity returns up to the 10 most recently modified files.
func (e *Engine) GetRecentActivity() []types.FileEntry {
	return e.idx.RecentActivity(10)
}

// GenerateTicket returns this device's peer ticket for sharing out of
// band.
func (e *Engine) GenerateTicket() string {
	return e.node.Ticket()
}

// ConnectPeer connects to the device described by ticket.
func (e *Engine) ConnectPeer(ctx context.Context, ticket string) error {
	return e.node.Connect(ctx, ticket)
}

// IndexedFileCount implements metrics.StatusSource.
func (e *Engine) IndexedFileCount() int { return e.idx.Count() }

// PeersConnectedCount implements metrics.StatusSource.
func (e *Engine) PeersConnectedCount() uint32 {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status.PeersConnected
}

// watcherTask is the Watcher task: it consumes ChangeEvents in order
// and, for each, synchronously updates the Indexer before detaching
// any network I/O. Because the Indexer update happens before dispatch
// and the Watcher's channel is single-consumer, ContentChanged(P)
// followed by Removed(P) is guaranteed to leave the index in the
// removed state even if earlier network dispatches for P are still
// in flight.
func (e *Engine) watcherTask() {
	logger := log.WithComponent("watcher-task")
	for ev := range e.watch.Events() {
		rel, err := e.relativePath(ev.Path)
		if err != nil {
			logger.Error().Err(err).Str("path", ev.Path).Msg("event outside vault root")
			continue
		}

		timer := metrics.NewTimer()
		switch ev.Kind {
		case types.ChangeContent:
			e.handleContentChanged(rel, ev.Path)
		case types.ChangeRemoved:
			e.handleRemoved(rel)
		case types.ChangeIgnored:
			// drop
		}
		timer.ObserveDuration(metrics.WatchEventLatency)
	}
}

func (e *Engine) handleContentChanged(relPath, absPath string) {
	logger := log.WithPath(relPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		logger.Error().Err(err).Msg("read changed file")
		return
	}

	root, err := e.idx.UpdateFile(relPath, content, time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("update index")
		return
	}
	logger.Debug().Str("root_hash", fmt.Sprintf("%x", root)).Msg("indexed content change")
	e.touchLastSync()

	go e.dispatchToPeer(relPath, content)
	if e.mirror != nil {
		go e.dispatchToMirror(relPath, content)
	}
	if e.relay != nil {
		go e.dispatchToRelay(root)
	}
}

func (e *Engine) handleRemoved(relPath string) {
	logger := log.WithPath(relPath)
	root, err := e.idx.RemoveFile(relPath)
	if err != nil {
		logger.Error().Err(err).Msg("remove from index")
		return
	}
	e.touchLastSync()

	if e.relay != nil {
		go e.dispatchToRelay(root)
	}
}

// dispatchToPeer encrypts content and announces it to the P2P blob
// store. It never blocks the Watcher task: it always runs detached,
// and its errors are logged and dropped — the next event for this
// path re-enters the pipeline (design §7/§9).
func (e *Engine) dispatchToPeer(relPath string, content []byte) {
	blob, err := e.enc.Encrypt(content)
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("peer_encrypt").Inc()
		log.WithPath(relPath).Error().Err(err).Msg("encrypt for peer dispatch")
		return
	}
	envelope, err := json.Marshal(blob)
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("peer_encode").Inc()
		log.WithPath(relPath).Error().Err(err).Msg("encode blob envelope")
		return
	}
	if _, err := e.node.AddBlob(relPath, envelope); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("peer_add_blob").Inc()
		log.WithPath(relPath).Error().Err(err).Msg("add blob to peer store")
		return
	}
	metrics.BlobUploadsTotal.Inc()
}

// dispatchToMirror encrypts content, uploads it as a blob, and
// advances the mirror's branch ref with one commit per changed file
// (the per-file flush policy resolved in the design notes).
func (e *Engine) dispatchToMirror(relPath string, content []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sha, err := e.mirror.UploadFile(ctx, content)
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("mirror_upload").Inc()
		log.WithPath(relPath).Error().Err(err).Msg("upload to remote mirror")
		return
	}

	message := fmt.Sprintf("sync: update %s", relPath)
	if err := e.mirror.UpdateState(ctx, relPath, sha, message); err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("mirror_commit").Inc()
		log.WithPath(relPath).Error().Err(err).Msg("advance remote mirror branch")
		return
	}
	metrics.MirrorCommitsTotal.Inc()
}

// dispatchToRelay advertises root as this vault's latest root hash to
// the Directory Relay, per spec.md §4.7's "advertised after each local
// index mutation" vault_state policy. The relay is purely a discovery
// hint, so a failure here is logged and dropped like any other
// detached dispatch.
func (e *Engine) dispatchToRelay(root [32]byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := e.relay.UpsertVaultState(ctx, types.VaultState{
		VaultID:   e.relayVaultID,
		RootHash:  root,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("relay_vault_state").Inc()
		log.WithComponent("relay-dispatch").Error().Err(err).Msg("advertise vault root hash")
	}
}

// relayTask periodically refreshes this device's row in the Directory
// Relay (ticket and last-seen timestamp) so other devices can discover
// it via GetActivePeers, and advertises the vault's current root hash
// once on startup in case no mutation follows.
func (e *Engine) relayTask(ctx context.Context) {
	e.advertiseDevice(ctx)
	e.dispatchToRelay(e.idx.RootHash())

	ticker := time.NewTicker(relayAdvertiseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.advertiseDevice(ctx)
		}
	}
}

func (e *Engine) advertiseDevice(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := e.relay.UpsertDevice(reqCtx, types.DeviceRecord{
		DeviceID: e.relayDeviceID,
		Name:     e.relayDeviceName,
		Ticket:   e.node.Ticket(),
		LastSeen: time.Now(),
	})
	if err != nil {
		metrics.SyncErrorsTotal.WithLabelValues("relay_device").Inc()
		log.WithComponent("relay-dispatch").Error().Err(err).Msg("advertise device")
	}
}

// peerEventTask is the Peer event task: it updates connection status
// from PeerConnected/PeerDisconnected using saturating arithmetic, and
// applies inbound blobs on SyncFinished. It runs independently of the
// Watcher task, coordinating with it only through the status lock.
func (e *Engine) peerEventTask(ctx context.Context) {
	sub := e.node.Subscribe()
	defer sub.Close()

	logger := log.WithComponent("peer-event-task")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case types.EventPeerConnected:
				e.adjustPeersConnected(1)
			case types.EventPeerDisconnected:
				e.adjustPeersConnected(-1)
			case types.EventSyncFinished:
				if ev.Path != "" {
					if err := e.applyRemoteBlob(ev.Path, ev.ContentHash); err != nil {
						logger.Error().Err(err).Str("path", ev.Path).Msg("apply remote blob")
					}
				}
			case types.EventSyncFailed:
				metrics.SyncErrorsTotal.WithLabelValues("peer_sync").Inc()
				logger.Warn().Str("peer_id", ev.PeerID).Str("error", ev.Err).Msg("peer sync failed")
			}
		}
	}
}

func (e *Engine) adjustPeersConnected(delta int) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	if delta > 0 {
		e.status.PeersConnected++
		return
	}
	if e.status.PeersConnected > 0 {
		e.status.PeersConnected--
	}
}

func (e *Engine) touchLastSync() {
	now := time.Now()
	e.statusMu.Lock()
	e.status.LastSync = &now
	e.statusMu.Unlock()
}

// relativePath converts an absolute filesystem path reported by the
// Watcher into a POSIX path relative to the vault root.
func (e *Engine) relativePath(absPath string) (string, error) {
	rel, err := filepath.Rel(e.vaultPath, absPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrIO, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s escapes vault root", types.ErrProtocol, absPath)
	}
	return filepath.ToSlash(rel), nil
}
