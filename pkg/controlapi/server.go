package controlapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/overspend1/oversync/pkg/crypto"
	"github.com/overspend1/oversync/pkg/engine"
	"github.com/overspend1/oversync/pkg/log"
	"github.com/overspend1/oversync/pkg/metrics"
	"github.com/overspend1/oversync/pkg/types"
)

// response is the envelope every handler replies with: Ok plus either
// the operation's payload fields or Error.
type response struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Status   *types.SyncStatus `json:"status,omitempty"`
	Ticket   string            `json:"ticket,omitempty"`
	Activity []types.FileEntry `json:"activity,omitempty"`
}

// mirrorRequest is the wire shape of an optional MirrorConfig in an
// initialize_sync request body.
type mirrorRequest struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Token  string `json:"token"`
}

// relayRequest is the wire shape of an optional RelayConfig in an
// initialize_sync request body.
type relayRequest struct {
	DSN        string `json:"dsn"`
	VaultID    string `json:"vault_id"`
	DeviceName string `json:"device_name"`
}

type initializeSyncRequest struct {
	VaultPath     string         `json:"vault_path"`
	EncryptionKey []byte         `json:"encryption_key"`
	Mirror        *mirrorRequest `json:"mirror,omitempty"`
	Relay         *relayRequest  `json:"relay,omitempty"`
}

type connectPeerRequest struct {
	Ticket string `json:"ticket"`
}

// Server is the control surface's HTTP server. Before initialize_sync
// is called, every other operation fails with types.ErrNotInitialized.
type Server struct {
	dataDir    string
	listenAddr string

	mu        sync.RWMutex
	eng       *engine.Engine
	collector *metrics.Collector

	http *http.Server
}

// NewServer builds a Server that will bind listenAddr once Start is
// called. dataDir is where the Peer Node's identity and blob store
// live, independent of whatever vault path initialize_sync is given.
func NewServer(dataDir, listenAddr string) *Server {
	s := &Server{dataDir: dataDir, listenAddr: listenAddr}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /initialize_sync", s.handleInitializeSync)
	mux.HandleFunc("GET /get_sync_status", s.handleGetSyncStatus)
	mux.HandleFunc("POST /generate_ticket", s.handleGenerateTicket)
	mux.HandleFunc("POST /connect_peer", s.handleConnectPeer)
	mux.HandleFunc("GET /get_recent_activity", s.handleGetRecentActivity)

	s.http = &http.Server{Addr: listenAddr, Handler: mux}
	return s
}

// Start blocks serving HTTP until the server is shut down.
func (s *Server) Start() error {
	log.WithComponent("controlapi").Info().Str("addr", s.listenAddr).Msg("control api listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("%w: control api serve: %v", types.ErrIO, err)
	}
	return nil
}

// Stop gracefully shuts down the HTTP server and, if initialized, the
// underlying Sync Engine.
func (s *Server) Stop(ctx context.Context) error {
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("%w: control api shutdown: %v", types.ErrIO, err)
	}

	s.mu.Lock()
	eng := s.eng
	collector := s.collector
	s.eng = nil
	s.collector = nil
	s.mu.Unlock()

	if collector != nil {
		collector.Stop()
	}
	if eng != nil {
		return eng.Shutdown()
	}
	return nil
}

func (s *Server) engineOrErr() (*engine.Engine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.eng == nil {
		return nil, types.ErrNotInitialized
	}
	return s.eng, nil
}

func (s *Server) handleInitializeSync(w http.ResponseWriter, r *http.Request) {
	var req initializeSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var mirrorCfg *types.MirrorConfig
	if req.Mirror != nil {
		mirrorCfg = &types.MirrorConfig{
			Owner:  req.Mirror.Owner,
			Repo:   req.Mirror.Repo,
			Branch: req.Mirror.Branch,
			Token:  req.Mirror.Token,
		}
	}

	var relayCfg *types.RelayConfig
	if req.Relay != nil {
		relayCfg = &types.RelayConfig{
			DSN:        req.Relay.DSN,
			VaultID:    req.Relay.VaultID,
			DeviceName: req.Relay.DeviceName,
		}
	}

	// Per spec.md §6, the supplied key material is padded or truncated
	// to exactly KeySize bytes, not run through a real KDF.
	key := crypto.DeriveKey(req.EncryptionKey)

	// The new Engine opens the same local store file in dataDir, which
	// stays locked until the previous Engine releases it, so the
	// previous one is shut down first.
	s.mu.Lock()
	previous, previousCollector := s.eng, s.collector
	s.eng, s.collector = nil, nil
	s.mu.Unlock()
	if previousCollector != nil {
		previousCollector.Stop()
	}
	if previous != nil {
		previous.Shutdown()
	}

	eng, err := engine.New(engine.Config{
		VaultPath:     req.VaultPath,
		P2PDataDir:    s.dataDir,
		EncryptionKey: key,
		Mirror:        mirrorCfg,
		Relay:         relayCfg,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	eng.Start()

	collector := metrics.NewCollector(eng)
	collector.Start()

	s.mu.Lock()
	s.eng, s.collector = eng, collector
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, response{Ok: true})
}

func (s *Server) handleGetSyncStatus(w http.ResponseWriter, r *http.Request) {
	eng, err := s.engineOrErr()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	status := eng.GetStatus()
	writeJSON(w, http.StatusOK, response{Ok: true, Status: &status})
}

func (s *Server) handleGenerateTicket(w http.ResponseWriter, r *http.Request) {
	eng, err := s.engineOrErr()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Ok: true, Ticket: eng.GenerateTicket()})
}

func (s *Server) handleConnectPeer(w http.ResponseWriter, r *http.Request) {
	eng, err := s.engineOrErr()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}

	var req connectPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := eng.ConnectPeer(r.Context(), req.Ticket); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Ok: true})
}

func (s *Server) handleGetRecentActivity(w http.ResponseWriter, r *http.Request) {
	eng, err := s.engineOrErr()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Ok: true, Activity: eng.GetRecentActivity()})
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, response{Ok: false, Error: err.Error()})
}
