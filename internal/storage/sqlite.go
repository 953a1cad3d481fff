package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logx "irbridge/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrations string

const metaDevice = "device"

type sqliteStore struct {
	db    *sql.DB
	log   logx.Logger
	audit bool
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("state.path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", pragma), logx.Err(err))
		}
	}

	st := &sqliteStore{db: db, log: log, audit: cfg.Audit}
	if _, err := db.ExecContext(context.Background(), migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}

func (s *sqliteStore) Load(ctx context.Context) (State, error) {
	var st State

	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaDevice).Scan(&st.Device)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return State{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY pos`)
	if err != nil {
		return State{}, err
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return State{}, err
		}
		st.Users = append(st.Users, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	st.Preference = map[string]map[string][]string{}
	rows, err = s.db.QueryContext(ctx, `SELECT name FROM devices`)
	if err != nil {
		return State{}, err
	}
	for rows.Next() {
		var dev string
		if err := rows.Scan(&dev); err != nil {
			rows.Close()
			return State{}, err
		}
		st.Preference[dev] = map[string][]string{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT device, name, line FROM aliases ORDER BY device, name, pos`)
	if err != nil {
		return State{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var dev, name, line string
		if err := rows.Scan(&dev, &name, &line); err != nil {
			return State{}, err
		}
		m := st.Preference[dev]
		if m == nil {
			m = map[string][]string{}
			st.Preference[dev] = m
		}
		m[name] = append(m[name], line)
	}
	return st, rows.Err()
}

// Save replaces every table in one transaction.
func (s *sqliteStore) Save(ctx context.Context, st State) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, q := range []string{`DELETE FROM users`, `DELETE FROM aliases`, `DELETE FROM devices`} {
		if _, err = tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaDevice, st.Device,
	); err != nil {
		return err
	}
	for i, id := range st.Users {
		if _, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO users(id, pos) VALUES(?, ?)`, id, i); err != nil {
			return err
		}
	}
	for dev, aliases := range st.Preference {
		if _, err = tx.ExecContext(ctx, `INSERT INTO devices(name) VALUES(?)`, dev); err != nil {
			return err
		}
		for name, lines := range aliases {
			for i, line := range lines {
				if _, err = tx.ExecContext(ctx,
					`INSERT INTO aliases(device, name, pos, line) VALUES(?, ?, ?, ?)`,
					dev, name, i, line,
				); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if !s.audit {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, chat_id, from_id, device, action, payload, err) VALUES(?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.ChatID, e.FromID, nullStr(e.Device),
		e.Action, nullStr(e.Payload), nullStr(e.Error),
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
