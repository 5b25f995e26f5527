package store

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
	"github.com/jmakaron/dbcursor/internal/pkg/typecast"
)

// Ops holds the vendor specific SQL rendering rules.
type Ops struct {
	vendor string
}

var _ cursor.Ops = (*Ops)(nil)

func NewOps(vendor string) (*Ops, error) {
	switch vendor {
	case VendorPostgres, VendorMySQL, VendorSQLite:
		return &Ops{vendor: vendor}, nil
	}
	return nil, fmt.Errorf("%s: %w", vendor, ErrUnsupportedVendor)
}

func (o *Ops) Vendor() string {
	return o.vendor
}

// LastExecutedQuery renders sql with params substituted for their
// placeholders. SQLite has no client side rendering, the statement and its
// parameters are reported side by side.
func (o *Ops) LastExecutedQuery(_ cursor.Cursor, sql string, params []any) string {
	switch o.vendor {
	case VendorSQLite:
		return fmt.Sprintf("QUERY = %q - PARAMS = %v", sql, params)
	case VendorMySQL:
		if params == nil {
			return sql
		}
		next := 0
		return substitute(sql, '?', func(_ int) (string, bool) {
			if next >= len(params) {
				return "", false
			}
			next++
			return o.literal(params[next-1]), true
		})
	default:
		if params == nil {
			return sql
		}
		return substitute(sql, '$', func(n int) (string, bool) {
			if n < 1 || n > len(params) {
				return "", false
			}
			return o.literal(params[n-1]), true
		})
	}
}

// substitute replaces placeholders outside of quoted literals and
// identifiers. For '$' the placeholder number is passed to fn.
func substitute(sql string, mark byte, fn func(n int) (string, bool)) string {
	var sb strings.Builder
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == mark && mark == '?':
			if lit, ok := fn(0); ok {
				sb.WriteString(lit)
				continue
			}
		case ch == mark:
			j := i + 1
			for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
				j++
			}
			if j > i+1 {
				n, _ := strconv.Atoi(sql[i+1 : j])
				if lit, ok := fn(n); ok {
					sb.WriteString(lit)
					i = j - 1
					continue
				}
			}
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}

func (o *Ops) literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(x)
	case []byte:
		if o.vendor == VendorMySQL {
			return "X'" + hex.EncodeToString(x) + "'"
		}
		return `'\x` + hex.EncodeToString(x) + "'"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32, float64:
		return fmt.Sprint(x)
	case time.Time:
		return quoteString(x.Format("2006-01-02 15:04:05.999999Z07:00"))
	case pgtype.Numeric:
		if t := typecast.FormatDecimal(x); t.Valid {
			return t.String
		}
		return "NULL"
	case driver.Valuer:
		dv, err := x.Value()
		if err != nil {
			return quoteString(fmt.Sprint(v))
		}
		return o.literal(dv)
	}
	return quoteString(fmt.Sprint(v))
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// MaxNameLength is the identifier length limit of the vendor, 0 when
// unlimited.
func (o *Ops) MaxNameLength() int {
	switch o.vendor {
	case VendorPostgres:
		return 63
	case VendorMySQL:
		return 64
	}
	return 0
}

func (o *Ops) QuoteName(name string) string {
	q := `"`
	if o.vendor == VendorMySQL {
		q = "`"
	}
	if strings.HasPrefix(name, q) && strings.HasSuffix(name, q) && len(name) > 1 {
		return name
	}
	return q + strings.ReplaceAll(name, q, q+q) + q
}

// AdaptDecimal renders a decimal field value for storage.
func (o *Ops) AdaptDecimal(v any, maxDigits, decimalPlaces int) (string, error) {
	return typecast.FormatNumber(v, maxDigits, decimalPlaces)
}
