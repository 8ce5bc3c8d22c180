package relay

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/overspend1/oversync/pkg/log"
	"github.com/overspend1/oversync/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	device_id  UUID PRIMARY KEY,
	name       TEXT NOT NULL,
	ticket     TEXT NOT NULL,
	last_seen  TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS vault_state (
	vault_id   TEXT PRIMARY KEY,
	root_hash  BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// Relay is the Directory Relay: a thin, purely-advisory discovery
// store over two Postgres relations. It is never consulted as
// authoritative state — a stale or unreachable relay degrades
// discovery, never correctness, since every fact it serves is
// re-verified by direct peer sync.
type Relay struct {
	db *sql.DB
}

// Open connects to dsn, failing fast if the connection cannot be
// established (the teacher's NewPostgresConnection idiom: a broken
// relay should surface immediately at startup, not on the first
// query), then ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Relay, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open relay database: %v", types.ErrIO, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping relay database: %v", types.ErrIO, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create relay schema: %v", types.ErrIO, err)
	}

	log.WithComponent("relay").Info().Msg("directory relay connection established")
	return newRelay(db), nil
}

// newRelay wraps an already-open, already-migrated *sql.DB. Exposed
// unexported so tests can inject a sqlmock connection without dialing
// a real Postgres instance.
func newRelay(db *sql.DB) *Relay {
	return &Relay{db: db}
}

// Close releases the connection pool.
func (r *Relay) Close() error {
	return r.db.Close()
}

// UpsertDevice advertises (or refreshes) a device's current ticket and
// last-seen timestamp, idempotently.
func (r *Relay) UpsertDevice(ctx context.Context, dev types.DeviceRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, name, ticket, last_seen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (device_id) DO UPDATE
		SET name = EXCLUDED.name, ticket = EXCLUDED.ticket, last_seen = EXCLUDED.last_seen
	`, dev.DeviceID, dev.Name, dev.Ticket, dev.LastSeen)
	if err != nil {
		return fmt.Errorf("%w: upsert device %s: %v", types.ErrIO, dev.DeviceID, err)
	}
	return nil
}

// UpsertVaultState advertises the latest root hash known for a vault.
func (r *Relay) UpsertVaultState(ctx context.Context, state types.VaultState) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vault_state (vault_id, root_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (vault_id) DO UPDATE
		SET root_hash = EXCLUDED.root_hash, updated_at = EXCLUDED.updated_at
	`, state.VaultID, state.RootHash[:], state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: upsert vault state %s: %v", types.ErrIO, state.VaultID, err)
	}
	return nil
}

// GetActivePeers returns every device that has advertised itself
// within the last five minutes.
func (r *Relay) GetActivePeers(ctx context.Context) ([]types.DeviceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, name, ticket, last_seen
		FROM devices
		WHERE last_seen > now() - interval '5 minutes'
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query active peers: %v", types.ErrIO, err)
	}
	defer rows.Close()

	var out []types.DeviceRecord
	for rows.Next() {
		var dev types.DeviceRecord
		if err := rows.Scan(&dev.DeviceID, &dev.Name, &dev.Ticket, &dev.LastSeen); err != nil {
			return nil, fmt.Errorf("%w: scan device row: %v", types.ErrIO, err)
		}
		out = append(out, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate active peers: %v", types.ErrIO, err)
	}
	return out, nil
}

// GetVaultState returns the latest advertised root hash for vaultID,
// if one has been published.
func (r *Relay) GetVaultState(ctx context.Context, vaultID string) (types.VaultState, bool, error) {
	var state types.VaultState
	var hash []byte
	state.VaultID = vaultID

	row := r.db.QueryRowContext(ctx, `
		SELECT root_hash, updated_at FROM vault_state WHERE vault_id = $1
	`, vaultID)
	switch err := row.Scan(&hash, &state.UpdatedAt); err {
	case nil:
		copy(state.RootHash[:], hash)
		return state, true, nil
	case sql.ErrNoRows:
		return types.VaultState{}, false, nil
	default:
		return types.VaultState{}, false, fmt.Errorf("%w: query vault state: %v", types.ErrIO, err)
	}
}
