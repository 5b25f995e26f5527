package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
)

// pgCursor runs statements on a querier and buffers their results.
type pgCursor struct {
	cursor.Buffer
	q     querier
	types *pgtype.Map
}

var _ cursor.Cursor = (*pgCursor)(nil)

func newCursor(q querier) *pgCursor {
	return &pgCursor{Buffer: cursor.NewBuffer(), q: q, types: pgtype.NewMap()}
}

func (c *pgCursor) Execute(ctx context.Context, sql string, params []any) error {
	if err := c.Open(); err != nil {
		return err
	}
	c.Clear()
	rows, err := c.q.Query(ctx, sql, params...)
	if err != nil {
		return err
	}
	defer rows.Close()
	columns := c.columns(rows)
	var out []cursor.Row
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return err
		}
		out = append(out, cursor.Row(vals))
	}
	if err = rows.Err(); err != nil {
		return err
	}
	c.Load(columns, out, rows.CommandTag().RowsAffected())
	return nil
}

func (c *pgCursor) columns(rows pgx.Rows) []cursor.Column {
	fields := rows.FieldDescriptions()
	if len(fields) == 0 {
		return nil
	}
	columns := make([]cursor.Column, 0, len(fields))
	for _, f := range fields {
		col := cursor.Column{Name: f.Name, TypeName: fmt.Sprintf("oid:%d", f.DataTypeOID)}
		if t, ok := c.types.TypeForOID(f.DataTypeOID); ok {
			col.TypeName = t.Name
		}
		columns = append(columns, col)
	}
	return columns
}

// ExecuteMany sends one statement per parameter set in a single batch.
// RowCount is the sum of the affected rows.
func (c *pgCursor) ExecuteMany(ctx context.Context, sql string, params cursor.ParamSeq) error {
	if err := c.Open(); err != nil {
		return err
	}
	c.Clear()
	batch := &pgx.Batch{}
	for p := range params.All() {
		batch.Queue(sql, p...)
	}
	if batch.Len() == 0 {
		c.Load(nil, nil, 0)
		return nil
	}
	br := c.q.SendBatch(ctx, batch)
	var total int64
	for range batch.Len() {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return err
		}
		total += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return err
	}
	c.Load(nil, nil, total)
	return nil
}

// CallProc selects from the set returning function name.
func (c *pgCursor) CallProc(ctx context.Context, name string, params []any) error {
	marks := make([]string, len(params))
	for i := range params {
		marks[i] = fmt.Sprintf("$%d", i+1)
	}
	ident := pgx.Identifier(strings.Split(name, ".")).Sanitize()
	return c.Execute(ctx, fmt.Sprintf("SELECT * FROM %s(%s)", ident, strings.Join(marks, ", ")), params)
}

func (c *pgCursor) NextSet() (bool, error) {
	if err := c.Open(); err != nil {
		return false, err
	}
	return false, fmt.Errorf("nextset: %w", dberr.ErrUnsupportedOperation)
}
