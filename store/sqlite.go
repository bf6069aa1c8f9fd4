package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/evdnx/qsignals/logger"
)

// SQLiteStore keeps cooldown state in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log logger.Logger
}

// NewSQLiteStore opens (or creates) the database at path and runs migrations.
func NewSQLiteStore(path string, log logger.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// WAL lets the status probe read while the event loop writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	log.Info("cooldown_store_opened", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS last_trades (
			label      TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			traded_at  INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (label, symbol)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrapf(err, "exec %q", stmt[:40])
		}
	}
	return nil
}

// LastTradeTime returns the zero time when nothing was recorded yet.
func (s *SQLiteStore) LastTradeTime(ctx context.Context, label, symbol string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nanos int64
	err := s.db.QueryRowContext(ctx,
		`SELECT traded_at FROM last_trades WHERE label = ? AND symbol = ?`,
		label, symbol,
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "load last trade %s/%s", label, symbol)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// SaveTradeTime upserts the last trade time for label and symbol.
func (s *SQLiteStore) SaveTradeTime(ctx context.Context, label, symbol string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `INSERT INTO last_trades (label, symbol, traded_at, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT(label, symbol) DO UPDATE SET
			traded_at  = excluded.traded_at,
			updated_at = excluded.updated_at`,
		label, symbol, t.UnixNano(), time.Now().Unix(),
	)
	return errors.Wrapf(err, "save last trade %s/%s", label, symbol)
}

func (s *SQLiteStore) Close() error {
	s.log.Info("cooldown_store_closing")
	return s.db.Close()
}
