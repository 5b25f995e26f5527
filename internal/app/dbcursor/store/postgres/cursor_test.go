package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/go-test/deep"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
)

type fakeRows struct {
	fields []pgconn.FieldDescription
	data   [][]any
	tag    string
	err    error
	pos    int
	closed bool
}

func (r *fakeRows) Close() { r.closed = true }

func (r *fakeRows) Err() error { return r.err }

func (r *fakeRows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag(r.tag) }

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }

func (r *fakeRows) Next() bool {
	if r.err != nil || r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(...any) error { return errors.New("not implemented") }

func (r *fakeRows) Values() ([]any, error) { return r.data[r.pos-1], nil }

func (r *fakeRows) RawValues() [][]byte { return nil }

func (r *fakeRows) Conn() *pgx.Conn { return nil }

type fakeBatch struct {
	tags   []string
	err    error
	pos    int
	closed bool
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) {
	if b.err != nil && b.pos == len(b.tags) {
		return pgconn.CommandTag{}, b.err
	}
	b.pos++
	return pgconn.NewCommandTag(b.tags[b.pos-1]), nil
}

func (b *fakeBatch) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }

func (b *fakeBatch) QueryRow() pgx.Row { return nil }

func (b *fakeBatch) Close() error {
	b.closed = true
	return nil
}

type fakeQuerier struct {
	rows    *fakeRows
	err     error
	batch   *fakeBatch
	sql     string
	args    []any
	batched int
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not implemented")
}

func (q *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.sql, q.args = sql, args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func (q *fakeQuerier) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	q.batched = b.Len()
	return q.batch
}

func TestCursorExecuteSelect(t *testing.T) {
	rows := &fakeRows{
		fields: []pgconn.FieldDescription{
			{Name: "id", DataTypeOID: pgtype.Int4OID},
			{Name: "name", DataTypeOID: pgtype.TextOID},
			{Name: "x", DataTypeOID: 999999},
		},
		data: [][]any{{int32(1), "a", nil}, {int32(2), "b", nil}},
		tag:  "SELECT 2",
	}
	q := &fakeQuerier{rows: rows}
	c := newCursor(q)
	ctx := context.Background()

	if err := c.Execute(ctx, "SELECT id, name, x FROM t WHERE id > $1", []any{0}); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if !rows.closed {
		t.Errorf("expected rows to be closed")
	}
	expected := []cursor.Column{{Name: "id", TypeName: "int4"}, {Name: "name", TypeName: "text"}, {Name: "x", TypeName: "oid:999999"}}
	if diff := deep.Equal(c.Description(), expected); diff != nil {
		t.Errorf("unexpected description: %v", diff)
	}
	if c.RowCount() != 2 {
		t.Errorf("expected rowcount 2, got %d", c.RowCount())
	}
	all, err := c.FetchAll()
	if err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if diff := deep.Equal(all, []cursor.Row{{int32(1), "a", nil}, {int32(2), "b", nil}}); diff != nil {
		t.Errorf("unexpected rows: %v", diff)
	}
	if ok, err := c.NextSet(); ok || !errors.Is(err, dberr.ErrUnsupportedOperation) {
		t.Errorf("expected unsupported nextset, got %v, %v", ok, err)
	}
}

func TestCursorExecuteNoResult(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{tag: "UPDATE 3"}}
	c := newCursor(q)
	if err := c.Execute(context.Background(), "UPDATE t SET a = 1", nil); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if c.RowCount() != 3 || c.Description() != nil {
		t.Errorf("unexpected result state %d, %v", c.RowCount(), c.Description())
	}
	if _, err := c.FetchOne(); !errors.Is(err, dberr.ErrNoResultSet) {
		t.Errorf("expected ErrNoResultSet, got %v", err)
	}

	q.rows = &fakeRows{tag: "SELECT 0", fields: []pgconn.FieldDescription{{Name: "a", DataTypeOID: pgtype.TextOID}}, err: errors.New("lost")}
	if err := c.Execute(context.Background(), "SELECT a FROM t", nil); err == nil {
		t.Errorf("expected row error to surface")
	}
	q.err = &pgconn.PgError{Code: "42P01"}
	if err := c.Execute(context.Background(), "SELECT * FROM missing", nil); !errors.As(err, new(*pgconn.PgError)) {
		t.Errorf("expected raw driver error, got %v", err)
	}

	_ = c.Close()
	if err := c.Execute(context.Background(), "SELECT 1", nil); !errors.Is(err, dberr.ErrCursorClosed) {
		t.Errorf("expected ErrCursorClosed, got %v", err)
	}
}

func TestCursorExecuteMany(t *testing.T) {
	batch := &fakeBatch{tags: []string{"INSERT 0 1", "INSERT 0 1", "INSERT 0 1"}}
	q := &fakeQuerier{batch: batch}
	c := newCursor(q)
	params := cursor.ParamList{{1}, {2}, {3}}
	if err := c.ExecuteMany(context.Background(), "INSERT INTO t VALUES ($1)", params); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if q.batched != 3 || !batch.closed || c.RowCount() != 3 {
		t.Errorf("unexpected batch state %d, %v, %d", q.batched, batch.closed, c.RowCount())
	}

	failing := &fakeBatch{tags: []string{"INSERT 0 1"}, err: &pgconn.PgError{Code: "23505"}}
	q.batch = failing
	err := c.ExecuteMany(context.Background(), "INSERT INTO t VALUES ($1)", cursor.ParamList{{1}, {1}})
	if !errors.As(err, new(*pgconn.PgError)) || !failing.closed {
		t.Errorf("expected batch failure and close, got %v", err)
	}

	q.batched = -1
	if err = c.ExecuteMany(context.Background(), "INSERT INTO t VALUES ($1)", cursor.ParamList{}); err != nil || q.batched != -1 {
		t.Errorf("expected empty parameter list to skip the batch, got %v", err)
	}
}

func TestCursorCallProc(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{tag: "SELECT 0", fields: []pgconn.FieldDescription{{Name: "r", DataTypeOID: pgtype.Int4OID}}}}
	c := newCursor(q)
	if err := c.CallProc(context.Background(), "public.totals", []any{1, "x"}); err != nil {
		t.Fatalf("unexpected error, %+v", err)
	}
	if q.sql != `SELECT * FROM "public"."totals"($1, $2)` {
		t.Errorf("unexpected statement %q", q.sql)
	}
	if diff := deep.Equal(q.args, []any{1, "x"}); diff != nil {
		t.Errorf("unexpected args: %v", diff)
	}
}
