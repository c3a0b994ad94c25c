// Package storage provides persistence backends for machine state: a
// database/sql-backed store and a YAML file store. Both implement the
// hsm.Saver and hsm.Loader contracts.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/fluxorio/hsm/pkg/hsm"
)

// SQLStore persists machine state in two tables keyed by machine name:
// hsm_current holds the current leaf (NULL while the machine has not
// entered its initial state) and hsm_history one row per superstate memo.
// It is driver-agnostic; the schema sticks to portable SQL.
type SQLStore struct {
	db      *sql.DB
	machine string
	ctx     context.Context
	rebind  func(string) string
}

// SQLOption configures an SQLStore.
type SQLOption func(*SQLStore)

// WithContext sets the context used for all queries. Defaults to
// context.Background.
func WithContext(ctx context.Context) SQLOption {
	return func(s *SQLStore) { s.ctx = ctx }
}

// WithPostgresPlaceholders rewrites ? placeholders to $1..$n for drivers
// that only accept the numbered form, such as lib/pq.
func WithPostgresPlaceholders() SQLOption {
	return func(s *SQLStore) { s.rebind = rebindDollar }
}

// NewSQLStore creates a store writing the state of the named machine.
func NewSQLStore(db *sql.DB, machineName string, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:      db,
		machine: machineName,
		ctx:     context.Background(),
		rebind:  func(q string) string { return q },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init creates the schema if it does not exist.
func (s *SQLStore) Init() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS hsm_current (
			machine TEXT PRIMARY KEY,
			state TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS hsm_history (
			machine TEXT NOT NULL,
			superstate TEXT NOT NULL,
			child TEXT NOT NULL,
			PRIMARY KEY (machine, superstate)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(s.ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// SaveCurrentState implements hsm.Saver.
func (s *SQLStore) SaveCurrentState(id hsm.StateID, ok bool) error {
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(s.ctx, s.rebind(`DELETE FROM hsm_current WHERE machine = ?`), s.machine); err != nil {
		return fmt.Errorf("failed to clear current state: %w", err)
	}
	state := sql.NullString{String: string(id), Valid: ok}
	if _, err := tx.ExecContext(s.ctx, s.rebind(`INSERT INTO hsm_current (machine, state) VALUES (?, ?)`), s.machine, state); err != nil {
		return fmt.Errorf("failed to save current state: %w", err)
	}
	return tx.Commit()
}

// SaveHistoryStates implements hsm.Saver.
func (s *SQLStore) SaveHistoryStates(history map[hsm.StateID]hsm.StateID) error {
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(s.ctx, s.rebind(`DELETE FROM hsm_history WHERE machine = ?`), s.machine); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	for super, child := range history {
		if _, err := tx.ExecContext(s.ctx,
			s.rebind(`INSERT INTO hsm_history (machine, superstate, child) VALUES (?, ?, ?)`),
			s.machine, string(super), string(child)); err != nil {
			return fmt.Errorf("failed to save history for %s: %w", super, err)
		}
	}
	return tx.Commit()
}

// LoadCurrentState implements hsm.Loader.
func (s *SQLStore) LoadCurrentState() (hsm.StateID, bool, error) {
	var state sql.NullString
	err := s.db.QueryRowContext(s.ctx,
		s.rebind(`SELECT state FROM hsm_current WHERE machine = ?`), s.machine).Scan(&state)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load current state: %w", err)
	}
	return hsm.StateID(state.String), state.Valid, nil
}

// LoadHistoryStates implements hsm.Loader.
func (s *SQLStore) LoadHistoryStates() (map[hsm.StateID]hsm.StateID, error) {
	rows, err := s.db.QueryContext(s.ctx,
		s.rebind(`SELECT superstate, child FROM hsm_history WHERE machine = ?`), s.machine)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	history := make(map[hsm.StateID]hsm.StateID)
	for rows.Next() {
		var super, child string
		if err := rows.Scan(&super, &child); err != nil {
			return nil, err
		}
		history[hsm.StateID(super)] = hsm.StateID(child)
	}
	return history, rows.Err()
}

// rebindDollar rewrites ? placeholders to $1..$n.
func rebindDollar(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
