package store

import (
	"context"

	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
	"github.com/jmakaron/dbcursor/internal/pkg/timeprovider"
	"github.com/jmakaron/dbcursor/pkg/logger"
)

// Conn owns one backend session and the state its cursors report into: the
// dirty flag and the query log. It is not safe for concurrent use.
type Conn struct {
	backend Backend
	ops     *Ops
	cfg     DBConfig
	log     *logger.Logger
	clock   timeprovider.Provider

	connected bool
	inTx      bool
	dirty     bool
	queries   []cursor.QueryLogEntry
}

var _ cursor.Connection = (*Conn)(nil)

func NewConn(b Backend, cfg DBConfig, log *logger.Logger) (*Conn, error) {
	ops, err := NewOps(cfg.Vendor)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Conn{backend: b, ops: ops, cfg: cfg, log: log, clock: timeprovider.RealProvider{}}, nil
}

// SetClock replaces the clock debug cursors time statements with.
func (c *Conn) SetClock(p timeprovider.Provider) {
	c.clock = p
}

func (c *Conn) Connect(ctx context.Context) error {
	if err := c.WrapErrors(func() error { return c.backend.Connect(ctx) }); err != nil {
		return err
	}
	c.connected = true
	return nil
}

func (c *Conn) Close() {
	if !c.connected {
		return
	}
	c.backend.Disconnect()
	c.connected = false
	c.inTx = false
}

// Cursor returns a new instrumented cursor, the debug variant when the
// connection is configured for it.
func (c *Conn) Cursor(ctx context.Context) (cursor.Cursor, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	var raw cursor.Cursor
	err := c.WrapErrors(func() error {
		var err error
		raw, err = c.backend.Cursor(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c.cfg.Debug {
		return cursor.NewDebug(raw, c, c.log, c.clock), nil
	}
	return cursor.New(raw, c), nil
}

func (c *Conn) SetDirty() {
	c.dirty = true
}

func (c *Conn) IsDirty() bool {
	return c.dirty
}

func (c *Conn) WrapErrors(fn func() error) error {
	return dberr.Wrap(fn)
}

func (c *Conn) Ops() cursor.Ops {
	return c.ops
}

// VendorOps exposes the concrete vendor rules.
func (c *Conn) VendorOps() *Ops {
	return c.ops
}

func (c *Conn) AppendQuery(e cursor.QueryLogEntry) {
	c.queries = append(c.queries, e)
}

// Queries returns a copy of the query log.
func (c *Conn) Queries() []cursor.QueryLogEntry {
	out := make([]cursor.QueryLogEntry, len(c.queries))
	copy(out, c.queries)
	return out
}

func (c *Conn) ResetQueries() {
	c.queries = nil
}

func (c *Conn) Debug() bool {
	return c.cfg.Debug
}

func (c *Conn) UseTZ() bool {
	return c.cfg.UseTZ
}

func (c *Conn) InTransaction() bool {
	return c.inTx
}

func (c *Conn) Begin(ctx context.Context) error {
	if !c.connected {
		return ErrNotConnected
	}
	if err := c.WrapErrors(func() error { return c.backend.Begin(ctx) }); err != nil {
		return err
	}
	c.inTx = true
	return nil
}

// Commit ends the open transaction, if any, and marks the connection clean.
func (c *Conn) Commit(ctx context.Context) error {
	return c.finish(ctx, c.backend.Commit)
}

// Rollback discards the open transaction, if any, and marks the connection
// clean.
func (c *Conn) Rollback(ctx context.Context) error {
	return c.finish(ctx, c.backend.Rollback)
}

func (c *Conn) finish(ctx context.Context, end func(context.Context) error) error {
	if !c.connected {
		return ErrNotConnected
	}
	if c.inTx {
		// The backend drops its transaction whatever the outcome.
		err := c.WrapErrors(func() error { return end(ctx) })
		c.inTx = false
		if err != nil {
			return err
		}
	}
	c.dirty = false
	return nil
}
