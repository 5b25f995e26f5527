package sqldb

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/jmakaron/dbcursor/internal/pkg/typecast"
)

// baseType strips length and precision from a declared column type.
func baseType(name string) string {
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(strings.TrimSpace(name))
}

func isBinary(base string) bool {
	switch base {
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BIT", "GEOMETRY":
		return true
	}
	return false
}

// convertValue maps a scanned driver value to the typed value of its
// declared column type. Text dates, times, timestamps and decimals are
// parsed; SQL NULL becomes an invalid value of the column's type.
func convertValue(typeName string, v any, useTZ bool) (any, error) {
	base := baseType(typeName)
	var s string
	switch x := v.(type) {
	case nil:
		return nullOf(base), nil
	case []byte:
		if isBinary(base) {
			return x, nil
		}
		s = string(x)
	case string:
		s = x
	case time.Time:
		return convertTime(base, x, useTZ), nil
	default:
		return v, nil
	}
	switch base {
	case "DATE":
		return typecast.ParseDate(s)
	case "TIME":
		return typecast.ParseTime(s)
	case "DATETIME", "TIMESTAMP":
		return typecast.ParseTimestamp(s, useTZ)
	case "DECIMAL", "NUMERIC":
		return typecast.ParseDecimal(s)
	}
	return s, nil
}

func nullOf(base string) any {
	switch base {
	case "DATE":
		return pgtype.Date{}
	case "TIME":
		return pgtype.Time{}
	case "DATETIME", "TIMESTAMP":
		return pgtype.Timestamp{}
	case "DECIMAL", "NUMERIC":
		return pgtype.Numeric{}
	}
	return nil
}

// convertTime handles drivers that decode temporal columns themselves. The
// wall clock is kept and tagged like a parsed timestamp.
func convertTime(base string, t time.Time, useTZ bool) any {
	switch base {
	case "DATE":
		return pgtype.Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), Valid: true}
	case "DATETIME", "TIMESTAMP":
		return pgtype.Timestamp{
			Time:  time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), typecast.Location(useTZ)),
			Valid: true,
		}
	}
	return t
}

// adaptParams converts parameters the drivers cannot bind natively.
func adaptParams(params []any) []any {
	if params == nil {
		return nil
	}
	out := make([]any, len(params))
	for i, p := range params {
		switch x := p.(type) {
		case pgtype.Numeric:
			out[i] = nullableText(typecast.FormatDecimal(x))
		case *pgtype.Numeric:
			if x == nil {
				out[i] = nil
				continue
			}
			out[i] = nullableText(typecast.FormatDecimal(*x))
		default:
			out[i] = p
		}
	}
	return out
}

func nullableText(t pgtype.Text) any {
	if !t.Valid {
		return nil
	}
	return t.String
}
