package cursor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
	"github.com/jmakaron/dbcursor/internal/pkg/timeprovider"
	"github.com/jmakaron/dbcursor/pkg/logger"
)

type fakeConn struct {
	dirty   bool
	wraps   int
	queries []QueryLogEntry
}

func (c *fakeConn) SetDirty() { c.dirty = true }

func (c *fakeConn) WrapErrors(fn func() error) error {
	c.wraps++
	return dberr.Wrap(fn)
}

func (c *fakeConn) Ops() Ops { return fakeOps{} }

func (c *fakeConn) AppendQuery(e QueryLogEntry) { c.queries = append(c.queries, e) }

type fakeOps struct{}

func (fakeOps) LastExecutedQuery(_ Cursor, sql string, params []any) string {
	return fmt.Sprintf("%s -- %v", sql, params)
}

type fakeCursor struct {
	conn       *fakeConn
	err        error
	panicMsg   string
	dirtySeen  bool
	calls      []string
	rows       []Row
	manyParams [][]any
}

func (f *fakeCursor) record(name string) error {
	f.calls = append(f.calls, name)
	f.dirtySeen = f.conn.dirty
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.err
}

func (f *fakeCursor) Execute(_ context.Context, _ string, _ []any) error {
	return f.record("execute")
}

func (f *fakeCursor) ExecuteMany(_ context.Context, _ string, params ParamSeq) error {
	for p := range params.All() {
		f.manyParams = append(f.manyParams, p)
	}
	return f.record("executemany")
}

func (f *fakeCursor) CallProc(_ context.Context, _ string, _ []any) error {
	return f.record("callproc")
}

func (f *fakeCursor) FetchOne() (Row, error) {
	if err := f.record("fetchone"); err != nil {
		return nil, err
	}
	return f.rows[0], nil
}

func (f *fakeCursor) FetchMany(size int) ([]Row, error) {
	if err := f.record("fetchmany"); err != nil {
		return nil, err
	}
	return f.rows[:size], nil
}

func (f *fakeCursor) FetchAll() ([]Row, error) {
	if err := f.record("fetchall"); err != nil {
		return nil, err
	}
	return f.rows, nil
}

func (f *fakeCursor) NextSet() (bool, error) {
	return false, f.record("nextset")
}

func (f *fakeCursor) Close() error {
	return f.record("close")
}

func (f *fakeCursor) Description() []Column {
	f.calls = append(f.calls, "description")
	return []Column{{Name: "id", TypeName: "INT8"}}
}

func (f *fakeCursor) RowCount() int64 {
	f.calls = append(f.calls, "rowcount")
	return int64(len(f.rows))
}

func (f *fakeCursor) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for _, r := range f.rows {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func TestMutatingCallsMarkDirtyBeforeDelegating(t *testing.T) {
	ctx := context.Background()
	mutators := map[string]func(c Cursor) error{
		"execute":     func(c Cursor) error { return c.Execute(ctx, "UPDATE t SET a = 1", nil) },
		"executemany": func(c Cursor) error { return c.ExecuteMany(ctx, "INSERT INTO t VALUES ($1)", ParamList{{1}}) },
		"callproc":    func(c Cursor) error { return c.CallProc(ctx, "proc", []any{1}) },
	}
	for name, call := range mutators {
		t.Run(name, func(t *testing.T) {
			conn := &fakeConn{}
			raw := &fakeCursor{conn: conn, err: &pgconn.PgError{Code: "23505", Message: "duplicate key"}}
			err := call(New(raw, conn))
			if !conn.dirty || !raw.dirtySeen {
				t.Fatalf("expected connection to be dirty before the raw call")
			}
			if !errors.Is(err, dberr.ErrIntegrity) {
				t.Fatalf("expected translated integrity error, got %v", err)
			}
			var pgErr *pgconn.PgError
			if !errors.As(err, &pgErr) {
				t.Errorf("expected driver error to remain reachable")
			}
		})
	}
}

func TestReadCallsDoNotMarkDirty(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn, rows: []Row{{1}, {2}, {3}}}
	c := New(raw, conn)

	one, err := c.FetchOne()
	if err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	many, err := c.FetchMany(2)
	if err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	all, err := c.FetchAll()
	if err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if _, err = c.NextSet(); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if err = c.Close(); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if conn.dirty {
		t.Errorf("expected read calls to leave the connection clean")
	}
	if diff := deep.Equal(one, Row{1}); diff != nil {
		t.Errorf("unexpected fetchone result: %v", diff)
	}
	if len(many) != 2 || len(all) != 3 {
		t.Errorf("unexpected fetch results %v %v", many, all)
	}
	if conn.wraps != 5 {
		t.Errorf("expected 5 error wrapped calls, got %d", conn.wraps)
	}

	if c.RowCount() != 3 || len(c.Description()) != 1 {
		t.Errorf("expected plain forwarding of rowcount and description")
	}
	if conn.wraps != 5 {
		t.Errorf("expected rowcount and description to bypass error wrapping, got %d wraps", conn.wraps)
	}
}

func TestFetchErrorsAreTranslated(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn, err: dberr.ErrCursorClosed}
	c := New(raw, conn)
	if _, err := c.FetchAll(); !errors.Is(err, dberr.ErrInterface) {
		t.Errorf("expected interface error, got %v", err)
	}
	if err := c.Close(); dberr.Kind(err) != dberr.ErrInterface {
		t.Errorf("expected interface error kind, got %v", err)
	}
}

func TestRowsDelegates(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn, rows: []Row{{"a"}, {"b"}}}
	var got []Row
	for r, err := range New(raw, conn).Rows() {
		if err != nil {
			t.Fatalf("unexpected error, %+v", err)
		}
		got = append(got, r)
	}
	if diff := deep.Equal(got, raw.rows); diff != nil {
		t.Errorf("unexpected rows: %v", diff)
	}
	if conn.wraps != 0 || conn.dirty {
		t.Errorf("expected iteration without added behavior")
	}
}

func newDebug(t *testing.T, raw *fakeCursor, conn *fakeConn) (*DebugWrapper, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	clock := &timeprovider.StepProvider{Start: time.Unix(1000, 0), Step: 12 * time.Millisecond}
	return NewDebug(raw, conn, logger.NewWithCore(core), clock), logs
}

func TestDebugExecuteLogsQuery(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn}
	c, logs := newDebug(t, raw, conn)

	if err := c.Execute(context.Background(), "SELECT $1", []any{7}); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	expected := []QueryLogEntry{{SQL: "SELECT $1 -- [7]", Time: "0.012"}}
	if diff := deep.Equal(conn.queries, expected); diff != nil {
		t.Errorf("unexpected query log: %v", diff)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one log record, got %d", len(entries))
	}
	e := entries[0]
	if e.Message != "(0.012) SELECT $1 -- [7]; args=[7]" {
		t.Errorf("unexpected message '%s'", e.Message)
	}
	if e.LoggerName != LoggerName || e.Level != zap.DebugLevel {
		t.Errorf("unexpected logger %s at %v", e.LoggerName, e.Level)
	}
	fields := e.ContextMap()
	if fields["sql"] != "SELECT $1 -- [7]" || fields["duration"] != 0.012 {
		t.Errorf("unexpected fields %+v", fields)
	}
	if _, ok := fields["params"]; !ok {
		t.Errorf("expected params field")
	}
}

func TestDebugExecuteFailureStillLogs(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn, err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}
	c, logs := newDebug(t, raw, conn)

	err := c.Execute(context.Background(), "SELECT * FROM missing", nil)
	if !errors.Is(err, dberr.ErrProgramming) {
		t.Fatalf("expected translated programming error, got %v", err)
	}
	if !conn.dirty || !raw.dirtySeen {
		t.Errorf("expected dirty mark before the failing call")
	}
	if len(conn.queries) != 1 || logs.Len() != 1 {
		t.Errorf("expected exactly one query log entry and one record, got %d and %d", len(conn.queries), logs.Len())
	}
}

func TestDebugExecutePanicStillLogs(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn, panicMsg: "driver exploded"}
	c, logs := newDebug(t, raw, conn)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Errorf("expected panic to propagate")
			}
		}()
		_ = c.Execute(context.Background(), "SELECT 1", nil)
	}()
	if len(conn.queries) != 1 || logs.Len() != 1 {
		t.Errorf("expected cleanup to run on panic, got %d entries and %d records", len(conn.queries), logs.Len())
	}
}

func TestDebugExecuteMany(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn}
	c, logs := newDebug(t, raw, conn)
	ctx := context.Background()

	if err := c.ExecuteMany(ctx, "INSERT INTO t VALUES ($1)", ParamList{{1}, {2}, {3}}); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	single := ParamIter(func(yield func([]any) bool) {
		for i := range 2 {
			if !yield([]any{i}) {
				return
			}
		}
	})
	raw.err = errors.New("connection reset")
	if err := c.ExecuteMany(ctx, "INSERT INTO t VALUES ($1)", single); !errors.Is(err, dberr.ErrDatabase) {
		t.Fatalf("expected translated error, got %v", err)
	}
	expected := []QueryLogEntry{
		{SQL: "3 times: INSERT INTO t VALUES ($1)", Time: "0.012"},
		{SQL: "? times: INSERT INTO t VALUES ($1)", Time: "0.012"},
	}
	if diff := deep.Equal(conn.queries, expected); diff != nil {
		t.Errorf("unexpected query log: %v", diff)
	}
	if len(raw.manyParams) != 5 {
		t.Errorf("expected all parameter sets to reach the raw cursor, got %d", len(raw.manyParams))
	}
	if logs.Len() != 2 {
		t.Fatalf("expected two records, got %d", logs.Len())
	}
	if msg := logs.All()[1].Message; msg != "(0.012) INSERT INTO t VALUES ($1); args=?" {
		t.Errorf("unexpected message '%s'", msg)
	}
}

func TestDebugInheritsForwarding(t *testing.T) {
	conn := &fakeConn{}
	raw := &fakeCursor{conn: conn, rows: []Row{{1}}}
	c, logs := newDebug(t, raw, conn)
	if err := c.CallProc(context.Background(), "proc", nil); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if _, err := c.FetchAll(); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if !conn.dirty {
		t.Errorf("expected callproc to mark dirty")
	}
	if len(conn.queries) != 0 || logs.Len() != 0 {
		t.Errorf("expected only execute calls to be logged")
	}
}
