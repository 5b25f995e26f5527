package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store"
	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
)

var ErrTxInProgress = errors.New("transaction already in progress")

// querier is the statement surface shared by a pooled connection and a
// transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type pgStore struct {
	ctx    context.Context
	cfg    store.DBConfig
	cancel context.CancelFunc
	p      *pgxpool.Pool
	conn   *pgxpool.Conn
	tx     pgx.Tx
}

func New(config store.DBConfig) store.Backend {
	return &pgStore{cfg: config}
}

func connURL(cfg store.DBConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		cfg.Username, cfg.Password, cfg.Addr, cfg.Port, cfg.DBName)
}

func (s *pgStore) Connect(ctx context.Context) error {
	var err error
	var c *pgxpool.Config
	c, err = pgxpool.ParseConfig(connURL(s.cfg))
	if err != nil {
		return err
	}
	// one session per store, so transactions span every cursor
	c.MaxConns = 1
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.p, err = pgxpool.NewWithConfig(s.ctx, c)
	if err != nil {
		s.cancel()
		return err
	}
	s.conn, err = s.p.Acquire(s.ctx)
	if err != nil {
		s.p.Close()
		s.cancel()
		return err
	}
	return nil
}

func (s *pgStore) Disconnect() {
	if s.tx != nil {
		_ = s.tx.Rollback(s.ctx)
		s.tx = nil
	}
	if s.conn != nil {
		s.conn.Release()
		s.conn = nil
	}
	s.cancel()
	s.p.Close()
}

func (s *pgStore) current() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

func (s *pgStore) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.current().Exec(ctx, sql, args...)
}

func (s *pgStore) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.current().Query(ctx, sql, args...)
}

func (s *pgStore) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return s.current().SendBatch(ctx, b)
}

func (s *pgStore) Cursor(_ context.Context) (cursor.Cursor, error) {
	if s.conn == nil {
		return nil, store.ErrNotConnected
	}
	return newCursor(s), nil
}

func (s *pgStore) Begin(ctx context.Context) error {
	if s.conn == nil {
		return store.ErrNotConnected
	}
	if s.tx != nil {
		return ErrTxInProgress
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *pgStore) Commit(ctx context.Context) error {
	return s.end(ctx, pgx.Tx.Commit)
}

func (s *pgStore) Rollback(ctx context.Context) error {
	return s.end(ctx, pgx.Tx.Rollback)
}

func (s *pgStore) end(ctx context.Context, fn func(pgx.Tx, context.Context) error) error {
	if s.tx == nil {
		return store.ErrNoTransaction
	}
	tx := s.tx
	s.tx = nil
	return fn(tx, ctx)
}
