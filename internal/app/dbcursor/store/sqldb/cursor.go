package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store"
	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
)

// rowKeywords open statements that produce a result set.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"WITH":     true,
	"PRAGMA":   true,
	"SHOW":     true,
	"VALUES":   true,
	"EXPLAIN":  true,
	"DESCRIBE": true,
	"DESC":     true,
	"CALL":     true,
}

func returnsRows(query string) bool {
	fields := strings.Fields(strings.TrimLeft(skipComments(query), "( \t\r\n"))
	if len(fields) == 0 {
		return false
	}
	if rowKeywords[strings.ToUpper(fields[0])] {
		return true
	}
	return strings.Contains(strings.ToUpper(query), " RETURNING ")
}

// skipComments drops the comments and whitespace leading query.
func skipComments(query string) string {
	for {
		query = strings.TrimLeft(query, " \t\r\n")
		switch {
		case strings.HasPrefix(query, "/*"):
			end := strings.Index(query[2:], "*/")
			if end < 0 {
				return ""
			}
			query = query[end+4:]
		case strings.HasPrefix(query, "--"), strings.HasPrefix(query, "#"):
			end := strings.IndexByte(query, '\n')
			if end < 0 {
				return ""
			}
			query = query[end+1:]
		default:
			return query
		}
	}
}

type sqlCursor struct {
	cursor.Buffer
	q      execer
	vendor string
	useTZ  bool
}

var _ cursor.Cursor = (*sqlCursor)(nil)

func newCursor(q execer, vendor string, useTZ bool) *sqlCursor {
	return &sqlCursor{Buffer: cursor.NewBuffer(), q: q, vendor: vendor, useTZ: useTZ}
}

func (c *sqlCursor) Execute(ctx context.Context, query string, params []any) error {
	if err := c.Open(); err != nil {
		return err
	}
	c.Clear()
	args := adaptParams(params)
	if !returnsRows(query) {
		res, err := c.q.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			n = -1
		}
		c.Load(nil, nil, n)
		return nil
	}
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	first := true
	for {
		columns, data, err := c.readSet(rows)
		if err != nil {
			return err
		}
		if first {
			c.Load(columns, data, int64(len(data)))
			first = false
		} else {
			c.Queue(columns, data)
		}
		if !rows.NextResultSet() {
			break
		}
	}
	return rows.Err()
}

func (c *sqlCursor) readSet(rows *sql.Rows) ([]cursor.Column, []cursor.Row, error) {
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, err
	}
	columns := make([]cursor.Column, len(types))
	for i, t := range types {
		columns[i] = cursor.Column{Name: t.Name(), TypeName: t.DatabaseTypeName()}
	}
	var out []cursor.Row
	for rows.Next() {
		vals := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err = rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		row := make(cursor.Row, len(columns))
		for i, v := range vals {
			if row[i], err = convertValue(columns[i].TypeName, v, c.useTZ); err != nil {
				return nil, nil, fmt.Errorf("column %s: %w", columns[i].Name, err)
			}
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

// ExecuteMany runs a prepared statement once per parameter set. RowCount is
// the sum of the affected rows.
func (c *sqlCursor) ExecuteMany(ctx context.Context, query string, params cursor.ParamSeq) error {
	if err := c.Open(); err != nil {
		return err
	}
	c.Clear()
	stmt, err := c.q.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()
	var total int64
	for p := range params.All() {
		res, err := stmt.ExecContext(ctx, adaptParams(p)...)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	c.Load(nil, nil, total)
	return nil
}

// CallProc issues CALL on MySQL. SQLite has no stored procedures.
func (c *sqlCursor) CallProc(ctx context.Context, name string, params []any) error {
	if err := c.Open(); err != nil {
		return err
	}
	if c.vendor != store.VendorMySQL {
		return fmt.Errorf("callproc on %s: %w", c.vendor, dberr.ErrUnsupportedOperation)
	}
	ops, err := store.NewOps(c.vendor)
	if err != nil {
		return err
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if limit := ops.MaxNameLength(); p == "" || len(p) > limit {
			return &dberr.Error{Kind: dberr.ErrProgramming, Err: fmt.Errorf("procedure name %q: part must be 1 to %d characters", name, limit)}
		}
		parts[i] = ops.QuoteName(p)
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(params)), ", ")
	return c.Execute(ctx, fmt.Sprintf("CALL %s(%s)", strings.Join(parts, "."), marks), params)
}
