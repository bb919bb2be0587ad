// Copyright (c) 2021 The Porta Network developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package compensate

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/porta-network/porta-staking/porta"
)

// Compensation a claim event observed on the feed and its settlement state.
type Compensation struct {
	EventID       string
	Vault         porta.Address
	Recipient     porta.Address
	Marker        uint64
	Observed      uint64
	Reimbursement *int64 // signed delta, nil until computed
	Compensated   bool
}

// Store is the worker's durable state. Every mutation is committed before
// the worker takes the next externally-visible step, so a crash mid-run
// resumes without double-paying.
type Store struct {
	db            *sql.DB
	initialMarker uint64
}

// OpenStore opens (creating if needed) the reconciliation database.
// initialMarker is the feed position a vault starts from before its first
// confirmed page.
func OpenStore(path string, initialMarker uint64) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.WithMessage(err, "open store")
	}

	s := &Store{db: db, initialMarker: initialMarker}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS markers (
			vault TEXT PRIMARY KEY,
			last_marker INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS compensations (
			event_id TEXT PRIMARY KEY,
			vault TEXT NOT NULL,
			recipient TEXT NOT NULL,
			marker INTEGER NOT NULL,
			observed INTEGER NOT NULL,
			reimbursement INTEGER,
			compensated INTEGER NOT NULL DEFAULT 0,
			conflicted INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_compensations_open ON compensations(compensated, conflicted)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return errors.WithMessage(err, "init schema")
		}
	}
	return nil
}

// LastMarker returns the position the vault's feed was consumed through.
// Markers are tracked per vault so one vault's progress never hides another
// vault's older events.
func (s *Store) LastMarker(vault porta.Address) (uint64, error) {
	var marker uint64
	err := s.db.QueryRow(`SELECT last_marker FROM markers WHERE vault = ?`, vault.String()).Scan(&marker)
	if err == sql.ErrNoRows {
		return s.initialMarker, nil
	}
	return marker, err
}

// SetLastMarker persists the vault's confirmed feed position.
func (s *Store) SetLastMarker(vault porta.Address, marker uint64) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO markers(vault, last_marker) VALUES (?, ?)`, vault.String(), marker)
	return err
}

// HasCompensation reports whether the event is already recorded.
func (s *Store) HasCompensation(eventID string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM compensations WHERE event_id = ?`, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// InsertCompensation records a newly discovered claim event.
func (s *Store) InsertCompensation(c *Compensation) error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO compensations(event_id, vault, recipient, marker, observed, compensated)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		c.EventID, c.Vault.String(), c.Recipient.String(), c.Marker, c.Observed,
	)
	return err
}

// SetReimbursement persists the computed delta for an event.
func (s *Store) SetReimbursement(eventID string, amount int64) error {
	_, err := s.db.Exec(`UPDATE compensations SET reimbursement = ? WHERE event_id = ?`, amount, eventID)
	return err
}

// MarkCompensated flags an event as settled.
func (s *Store) MarkCompensated(eventID string) error {
	_, err := s.db.Exec(`UPDATE compensations SET compensated = 1 WHERE event_id = ?`, eventID)
	return err
}

// MarkConflicted flags an event whose payment reference was consumed by a
// different recipient. Conflicted records leave the settlement queue but stay
// distinguishable from compensated ones for operator review.
func (s *Store) MarkConflicted(eventID string) error {
	_, err := s.db.Exec(`UPDATE compensations SET conflicted = 1 WHERE event_id = ?`, eventID)
	return err
}

// Conflicted returns the ids of events flagged as reference conflicts.
func (s *Store) Conflicted() ([]string, error) {
	rows, err := s.db.Query(`SELECT event_id FROM compensations WHERE conflicted = 1 ORDER BY marker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Uncompensated returns all open records in marker order.
func (s *Store) Uncompensated() ([]*Compensation, error) {
	rows, err := s.db.Query(
		`SELECT event_id, vault, recipient, marker, observed, reimbursement
		 FROM compensations WHERE compensated = 0 AND conflicted = 0 ORDER BY marker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Compensation
	for rows.Next() {
		var (
			c             Compensation
			vaultStr      string
			recipientStr  string
			reimbursement sql.NullInt64
		)
		if err := rows.Scan(&c.EventID, &vaultStr, &recipientStr, &c.Marker, &c.Observed, &reimbursement); err != nil {
			return nil, err
		}
		vaultAddr, err := porta.ParseAddress(vaultStr)
		if err != nil {
			return nil, errors.WithMessage(err, "corrupt vault address")
		}
		recipientAddr, err := porta.ParseAddress(recipientStr)
		if err != nil {
			return nil, errors.WithMessage(err, "corrupt recipient address")
		}
		c.Vault = *vaultAddr
		c.Recipient = *recipientAddr
		if reimbursement.Valid {
			v := reimbursement.Int64
			c.Reimbursement = &v
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}
