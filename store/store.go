// Package store is the ASP's durable record of commitments, Merkle roots,
// nullifiers, and the sync cursor. It is backed by a single SQLite file
// opened in WAL mode via github.com/mattn/go-sqlite3, and guarded by a
// per-Store sync.Mutex that serializes every database access, reads
// included; only a nullifier-cache hit skips it.
package store

import (
	"database/sql"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/zylith-labs/asp/apperr"
	"github.com/zylith-labs/asp/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS commitments (
	leaf_index INTEGER PRIMARY KEY,
	commitment TEXT NOT NULL,
	deposit_tx TEXT,
	label TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS merkle_roots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	root TEXT NOT NULL,
	leaf_count INTEGER NOT NULL,
	submit_tx TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS nullifiers (
	nullifier_hash TEXT PRIMARY KEY,
	circuit_type TEXT NOT NULL,
	tx_hash TEXT,
	spent_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS sync_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the ASP's durable single-writer record. It is safe for
// concurrent use: every read and write of the database is serialized by mu.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	cacheMu    sync.RWMutex
	spentCache map[string]struct{}
}

// Open opens (creating if necessary) the SQLite file at path, sets WAL
// journaling and a 5s busy timeout, and runs idempotent migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, apperr.Database(err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Database(err)
	}
	return &Store{
		db:         db,
		spentCache: make(map[string]struct{}),
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertCommitment is idempotent on leaf_index: a duplicate write with an
// identical commitment value is a no-op; a duplicate with a different
// value is a conflict.
func (s *Store) InsertCommitment(leafIndex uint32, commitment, depositTx, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.getCommitmentLocked(leafIndex)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Value != commitment {
			return apperr.Newf(apperr.KindInvalidInput,
				"leaf_index %d already holds a different commitment", leafIndex)
		}
		return nil
	}

	_, err = s.db.Exec(
		`INSERT OR IGNORE INTO commitments (leaf_index, commitment, deposit_tx, label) VALUES (?, ?, ?, ?)`,
		leafIndex, commitment, nullable(depositTx), nullable(label),
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// GetCommitment returns the commitment row at leafIndex, or nil if absent.
func (s *Store) GetCommitment(leafIndex uint32) (*model.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCommitmentLocked(leafIndex)
}

func (s *Store) getCommitmentLocked(leafIndex uint32) (*model.Commitment, error) {
	row := s.db.QueryRow(
		`SELECT leaf_index, commitment, deposit_tx, label FROM commitments WHERE leaf_index = ?`,
		leafIndex,
	)
	var c model.Commitment
	var depositTx, label sql.NullString
	if err := row.Scan(&c.LeafIndex, &c.Value, &depositTx, &label); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Database(err)
	}
	c.DepositTx = depositTx.String
	c.Label = label.String
	return &c, nil
}

// FindCommitmentLeafIndex returns the leaf index holding the given
// commitment value, if any.
func (s *Store) FindCommitmentLeafIndex(commitment string) (uint32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT leaf_index FROM commitments WHERE commitment = ?`, commitment)
	var idx uint32
	if err := row.Scan(&idx); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, apperr.Database(err)
	}
	return idx, true, nil
}

// GetAllCommitments returns all commitment rows ordered by leaf_index
// ascending.
func (s *Store) GetAllCommitments() ([]model.Commitment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT leaf_index, commitment, deposit_tx, label FROM commitments ORDER BY leaf_index ASC`,
	)
	if err != nil {
		return nil, apperr.Database(err)
	}
	defer rows.Close()

	var out []model.Commitment
	for rows.Next() {
		var c model.Commitment
		var depositTx, label sql.NullString
		if err := rows.Scan(&c.LeafIndex, &c.Value, &depositTx, &label); err != nil {
			return nil, apperr.Database(err)
		}
		c.DepositTx = depositTx.String
		c.Label = label.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database(err)
	}
	return out, nil
}

// GetLeafCount returns the number of stored commitments.
func (s *Store) GetLeafCount() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT COUNT(*) FROM commitments`)
	var count uint32
	if err := row.Scan(&count); err != nil {
		return 0, apperr.Database(err)
	}
	return count, nil
}

// InsertRoot appends a row to the merkle_roots log. This table is
// append-only: every accepted tree mutation records one row.
func (s *Store) InsertRoot(root string, leafCount uint32, submitTx string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO merkle_roots (root, leaf_count, submit_tx) VALUES (?, ?, ?)`,
		root, leafCount, nullable(submitTx),
	)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// GetLatestRoot returns the root with the highest sequence number, or nil
// if no root has been recorded yet.
func (s *Store) GetLatestRoot() (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT root FROM merkle_roots ORDER BY id DESC LIMIT 1`)
	var root string
	if err := row.Scan(&root); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Database(err)
	}
	return &root, nil
}

// InsertNullifier marks a nullifier hash spent. Idempotent on hash: a
// duplicate insert is a silent no-op (first write wins).
func (s *Store) InsertNullifier(hash string, circuit model.CircuitType, txHash string) error {
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO nullifiers (nullifier_hash, circuit_type, tx_hash) VALUES (?, ?, ?)`,
		hash, string(circuit), nullable(txHash),
	)
	s.mu.Unlock()
	if err != nil {
		return apperr.Database(err)
	}

	s.cacheMu.Lock()
	s.spentCache[hash] = struct{}{}
	s.cacheMu.Unlock()
	return nil
}

// IsNullifierSpent reports whether hash has been recorded as spent. A
// write-through in-process cache fronts the hot-path check; the SQL
// table remains the durable source of truth.
func (s *Store) IsNullifierSpent(hash string) (bool, error) {
	s.cacheMu.RLock()
	_, cached := s.spentCache[hash]
	s.cacheMu.RUnlock()
	if cached {
		return true, nil
	}

	s.mu.Lock()
	row := s.db.QueryRow(`SELECT COUNT(*) FROM nullifiers WHERE nullifier_hash = ?`, hash)
	var count int
	err := row.Scan(&count)
	s.mu.Unlock()
	if err != nil {
		return false, apperr.Database(err)
	}
	if count > 0 {
		s.cacheMu.Lock()
		s.spentCache[hash] = struct{}{}
		s.cacheMu.Unlock()
		return true, nil
	}
	return false, nil
}

// GetNullifier returns the nullifier row for hash, or nil if unspent.
func (s *Store) GetNullifier(hash string) (*model.Nullifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT nullifier_hash, circuit_type, tx_hash FROM nullifiers WHERE nullifier_hash = ?`,
		hash,
	)
	var n model.Nullifier
	var circuit string
	var txHash sql.NullString
	if err := row.Scan(&n.Hash, &circuit, &txHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, apperr.Database(err)
	}
	n.CircuitType = model.CircuitType(circuit)
	n.TxHash = txHash.String
	return &n, nil
}

// GetSyncState returns the value stored under key, or empty string if
// unset.
func (s *Store) GetSyncState(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", apperr.Database(err)
	}
	return value, nil
}

// SetSyncState upserts the value stored under key.
func (s *Store) SetSyncState(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT OR REPLACE INTO sync_state (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// IsHealthy performs a cheap round-trip probe against the database.
func (s *Store) IsHealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	return s.db.QueryRow(`SELECT 1`).Scan(&one) == nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
