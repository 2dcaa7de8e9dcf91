package store

import (
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS matches (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp_ns  INTEGER NOT NULL,
    sequence      TEXT NOT NULL,
    source        TEXT NOT NULL,
    prev_hmac     BLOB NOT NULL,
    hmac          BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_matches_timestamp ON matches(timestamp_ns);
`

// ErrChainBroken is returned by VerifyChain when a record fails HMAC
// verification or the chain linkage is inconsistent.
var ErrChainBroken = errors.New("store: audit chain verification failed")

// Store is the SQLite audit store. Records are append-only; each record's
// HMAC covers the previous record's HMAC.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	hmacKey  []byte
	lastHMAC []byte
}

// Open opens or creates the audit database at path. hmacKey is the chain key
// derived from the device secret (see DeriveAuditKey) and must be at least
// 32 bytes.
func Open(path string, hmacKey []byte) (*Store, error) {
	if len(hmacKey) < 32 {
		return nil, errors.New("store: HMAC key must be at least 32 bytes")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		db.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	s := &Store{db: db, hmacKey: hmacKey}
	if err := s.loadChainHead(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// loadChainHead reads the newest record's HMAC so appends continue the chain
// across restarts. An empty table starts the chain from the genesis value.
func (s *Store) loadChainHead() error {
	var last []byte
	err := s.db.QueryRow(`SELECT hmac FROM matches ORDER BY id DESC LIMIT 1`).Scan(&last)
	switch {
	case err == sql.ErrNoRows:
		s.lastHMAC = make([]byte, sha256.Size)
	case err != nil:
		return fmt.Errorf("load chain head: %w", err)
	default:
		s.lastHMAC = last
	}
	return nil
}

// RecordMatch appends a completed sequence to the audit trail.
func (s *Store) RecordMatch(sequence, source string) (*Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &Match{
		TimestampNs: time.Now().UnixNano(),
		Sequence:    sequence,
		Source:      source,
		PrevHMAC:    s.lastHMAC,
	}
	m.HMAC = s.computeHMAC(m)

	result, err := s.db.Exec(`
		INSERT INTO matches (timestamp_ns, sequence, source, prev_hmac, hmac)
		VALUES (?, ?, ?, ?, ?)`,
		m.TimestampNs, m.Sequence, m.Source, m.PrevHMAC, m.HMAC,
	)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}
	if m.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	s.lastHMAC = m.HMAC
	return m, nil
}

// Matches returns up to limit most recent records, newest first. A limit of
// zero or less returns everything.
func (s *Store) Matches(limit int) ([]Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, timestamp_ns, sequence, source, prev_hmac, hmac
		FROM matches ORDER BY id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.TimestampNs, &m.Sequence, &m.Source, &m.PrevHMAC, &m.HMAC); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Count returns the number of audit records.
func (s *Store) Count() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n)
	return n, err
}

// VerifyChain walks the audit trail oldest-first, recomputing every HMAC and
// checking the linkage. It returns ErrChainBroken (wrapped with the failing
// record id) on the first inconsistency.
func (s *Store) VerifyChain() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, timestamp_ns, sequence, source, prev_hmac, hmac
		FROM matches ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	prev := make([]byte, sha256.Size)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.TimestampNs, &m.Sequence, &m.Source, &m.PrevHMAC, &m.HMAC); err != nil {
			return fmt.Errorf("scan match: %w", err)
		}
		if !hmac.Equal(m.PrevHMAC, prev) {
			return fmt.Errorf("%w: record %d: broken linkage", ErrChainBroken, m.ID)
		}
		if !hmac.Equal(m.HMAC, s.computeHMAC(&m)) {
			return fmt.Errorf("%w: record %d: HMAC mismatch", ErrChainBroken, m.ID)
		}
		prev = m.HMAC
	}
	return rows.Err()
}

// computeHMAC covers the record fields and the previous record's HMAC.
func (s *Store) computeHMAC(m *Match) []byte {
	mac := hmac.New(sha256.New, s.hmacKey)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(m.TimestampNs))
	mac.Write(ts[:])
	mac.Write([]byte(m.Sequence))
	mac.Write([]byte{0})
	mac.Write([]byte(m.Source))
	mac.Write([]byte{0})
	mac.Write(m.PrevHMAC)
	return mac.Sum(nil)
}
