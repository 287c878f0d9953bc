package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/honeytrace/honeypot/internal/model"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("record not found")

// Store persists attack records in SQLite. It is safe for concurrent use;
// writers are serialised through a single connection.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	st := &Store{db: db}
	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS attack_records (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL DEFAULT '',
  source_address TEXT NOT NULL,
  port INTEGER NOT NULL,
  protocol TEXT NOT NULL,
  username TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  banner TEXT NOT NULL DEFAULT '',
  commands_json BLOB NOT NULL,
  successful INTEGER NOT NULL DEFAULT 0,
  close_reason TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_attack_records_source ON attack_records(source_address);
CREATE INDEX IF NOT EXISTS idx_attack_records_protocol ON attack_records(protocol);
CREATE INDEX IF NOT EXISTS idx_attack_records_started ON attack_records(started_at);
`)
	return err
}

// SaveRecord writes the full record. A record without an ID gets one
// assigned here, which the caller must keep for subsequent saves.
func (s *Store) SaveRecord(ctx context.Context, rec *model.AttackRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("session_id is empty")
	}
	if rec.StartedAt.IsZero() {
		return errors.New("started_at is zero")
	}
	if rec.Protocol == "" {
		return errors.New("protocol is empty")
	}

	commands := rec.Commands
	if commands == nil {
		commands = []model.CommandEntry{}
	}
	cmdJSON, err := json.Marshal(commands)
	if err != nil {
		return fmt.Errorf("encode commands: %w", err)
	}

	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	var endedAt string
	if !rec.EndedAt.IsZero() {
		endedAt = rec.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO attack_records(id, session_id, started_at, ended_at, source_address, port, protocol,
  username, password, banner, commands_json, successful, close_reason)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  ended_at = excluded.ended_at,
  username = excluded.username,
  password = excluded.password,
  banner = excluded.banner,
  commands_json = excluded.commands_json,
  successful = excluded.successful,
  close_reason = excluded.close_reason`,
		id,
		rec.SessionID,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		endedAt,
		rec.SourceAddress,
		rec.Port,
		string(rec.Protocol),
		rec.Username,
		rec.Password,
		rec.Banner,
		cmdJSON,
		boolToInt(rec.Successful),
		rec.CloseReason,
	)
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (s *Store) GetRecord(ctx context.Context, id string) (model.AttackRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, session_id, started_at, ended_at, source_address, port, protocol,
  username, password, banner, commands_json, successful, close_reason
FROM attack_records WHERE id = ?`, id)

	var (
		rec        model.AttackRecord
		startedAt  string
		endedAt    string
		protocol   string
		cmdJSON    []byte
		successful int
	)
	err := row.Scan(&rec.ID, &rec.SessionID, &startedAt, &endedAt, &rec.SourceAddress, &rec.Port, &protocol,
		&rec.Username, &rec.Password, &rec.Banner, &cmdJSON, &successful, &rec.CloseReason)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AttackRecord{}, ErrNotFound
	}
	if err != nil {
		return model.AttackRecord{}, err
	}

	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.AttackRecord{}, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if endedAt != "" {
		if rec.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
			return model.AttackRecord{}, fmt.Errorf("invalid ended_at %q: %w", endedAt, err)
		}
	}
	if err := json.Unmarshal(cmdJSON, &rec.Commands); err != nil {
		return model.AttackRecord{}, fmt.Errorf("decode commands: %w", err)
	}
	rec.Protocol = model.Protocol(protocol)
	rec.Successful = successful != 0
	return rec, nil
}

func (s *Store) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attack_records`).Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
