// Package sqldb is the database/sql backend for MySQL and SQLite.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store"
	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
)

var ErrTxInProgress = errors.New("transaction already in progress")

// execer is the statement surface shared by *sql.Conn, *sql.Tx and *sql.DB.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

type sqlStore struct {
	cfg  store.DBConfig
	db   *sql.DB
	conn *sql.Conn
	tx   *sql.Tx
}

func New(config store.DBConfig) (store.Backend, error) {
	switch config.Vendor {
	case store.VendorMySQL, store.VendorSQLite:
		return &sqlStore{cfg: config}, nil
	}
	return nil, fmt.Errorf("%s: %w", config.Vendor, store.ErrUnsupportedVendor)
}

func driverName(vendor string) string {
	if vendor == store.VendorMySQL {
		return "mysql"
	}
	return "sqlite"
}

func dataSource(cfg store.DBConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if cfg.Vendor == store.VendorSQLite {
		return cfg.DBName
	}
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	mc.DBName = cfg.DBName
	mc.MultiStatements = true
	return mc.FormatDSN()
}

func (s *sqlStore) Connect(ctx context.Context) error {
	db, err := sql.Open(driverName(s.cfg.Vendor), dataSource(s.cfg))
	if err != nil {
		return err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return err
	}
	s.db, s.conn = db, conn
	return nil
}

func (s *sqlStore) Disconnect() {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
}

func (s *sqlStore) current() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

func (s *sqlStore) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.current().ExecContext(ctx, query, args...)
}

func (s *sqlStore) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.current().QueryContext(ctx, query, args...)
}

func (s *sqlStore) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return s.current().PrepareContext(ctx, query)
}

func (s *sqlStore) Cursor(_ context.Context) (cursor.Cursor, error) {
	if s.conn == nil {
		return nil, store.ErrNotConnected
	}
	return newCursor(s, s.cfg.Vendor, s.cfg.UseTZ), nil
}

func (s *sqlStore) Begin(ctx context.Context) error {
	if s.conn == nil {
		return store.ErrNotConnected
	}
	if s.tx != nil {
		return ErrTxInProgress
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *sqlStore) Commit(_ context.Context) error {
	return s.end((*sql.Tx).Commit)
}

func (s *sqlStore) Rollback(_ context.Context) error {
	return s.end((*sql.Tx).Rollback)
}

func (s *sqlStore) end(fn func(*sql.Tx) error) error {
	if s.tx == nil {
		return store.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return fn(tx)
}
