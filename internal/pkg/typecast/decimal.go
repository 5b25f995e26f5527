package typecast

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrPrecision       = errors.New("value exceeds precision")
	ErrUnsupportedType = errors.New("unsupported type")
)

var big10 = big.NewInt(10)

// PostgreSQL numeric limits: digits before and after the decimal point.
const (
	maxIntegerDigits  = 131072
	maxFractionDigits = 16383
)

// ParseDecimal parses an arbitrary precision decimal. Plain and exponent
// notation are accepted, as are NaN and ±Infinity.
func ParseDecimal(s string) (pgtype.Numeric, error) {
	if s == "" {
		return pgtype.Numeric{}, nil
	}
	mantissa, exponent := strings.TrimSpace(s), int64(0)
	if i := strings.IndexAny(mantissa, "eE"); i >= 0 && !strings.Contains(mantissa, "Inf") {
		e, err := strconv.ParseInt(mantissa[i+1:], 10, 64)
		if err != nil {
			return pgtype.Numeric{}, fmt.Errorf("decimal %q: %w", s, ErrInvalidFormat)
		}
		mantissa, exponent = mantissa[:i], e
	}
	if mantissa == "" {
		return pgtype.Numeric{}, fmt.Errorf("decimal %q: %w", s, ErrInvalidFormat)
	}
	var n pgtype.Numeric
	if err := n.Scan(mantissa); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("decimal %q: %w: %v", s, ErrInvalidFormat, err)
	}
	if exponent != 0 {
		if n.NaN || n.InfinityModifier != pgtype.Finite {
			return pgtype.Numeric{}, fmt.Errorf("decimal %q: %w", s, ErrInvalidFormat)
		}
		exponent += int64(n.Exp)
		if exponent < math.MinInt32 || exponent > math.MaxInt32 {
			return pgtype.Numeric{}, fmt.Errorf("decimal %q exponent out of range: %w", s, ErrInvalidFormat)
		}
		n.Exp = int32(exponent)
	}
	if err := checkScale(n); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("decimal %q: %w", s, err)
	}
	return n, nil
}

func checkScale(n pgtype.Numeric) error {
	if n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return nil
	}
	if int64(n.Exp) < -maxFractionDigits {
		return fmt.Errorf("more than %d fraction digits: %w", maxFractionDigits, ErrInvalidFormat)
	}
	digits := int64(len(new(big.Int).Abs(n.Int).String()))
	if int64(n.Exp)+digits > maxIntegerDigits {
		return fmt.Errorf("more than %d integer digits: %w", maxIntegerDigits, ErrInvalidFormat)
	}
	return nil
}

// FormatDecimal renders n in plain notation. Trailing zeros of the fraction are
// kept as parsed.
func FormatDecimal(n pgtype.Numeric) pgtype.Text {
	if !n.Valid {
		return pgtype.Text{}
	}
	switch {
	case n.NaN:
		return pgtype.Text{String: "NaN", Valid: true}
	case n.InfinityModifier == pgtype.Infinity:
		return pgtype.Text{String: "Infinity", Valid: true}
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return pgtype.Text{String: "-Infinity", Valid: true}
	}
	b, err := n.MarshalJSON()
	if err != nil {
		return pgtype.Text{}
	}
	return pgtype.Text{String: string(b), Valid: true}
}

// FormatNumber renders value with exactly decimalPlaces digits after the point.
//
// A pgtype.Numeric is rounded half to even and must fit in maxDigits digits
// once rounded, otherwise ErrPrecision is returned. Floats are formatted
// directly without a digit limit.
func FormatNumber(value any, maxDigits, decimalPlaces int) (string, error) {
	switch v := value.(type) {
	case pgtype.Numeric:
		return formatNumeric(v, maxDigits, decimalPlaces)
	case *pgtype.Numeric:
		if v == nil {
			return "", fmt.Errorf("nil numeric: %w", ErrUnsupportedType)
		}
		return formatNumeric(*v, maxDigits, decimalPlaces)
	case float64:
		return strconv.FormatFloat(v, 'f', decimalPlaces, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', decimalPlaces, 64), nil
	}
	return "", fmt.Errorf("%T: %w", value, ErrUnsupportedType)
}

func formatNumeric(n pgtype.Numeric, maxDigits, places int) (string, error) {
	if !n.Valid {
		return "", fmt.Errorf("null numeric: %w", ErrUnsupportedType)
	}
	if n.NaN {
		return "NaN", nil
	}
	if n.InfinityModifier != pgtype.Finite {
		return "", fmt.Errorf("infinite numeric: %w", ErrPrecision)
	}
	if places < 0 {
		places = 0
	}
	q := quantize(n.Int, n.Exp, int32(-places))
	digits := q.String()
	negative := n.Int.Sign() < 0
	if q.Sign() < 0 {
		digits = digits[1:]
	}
	if len(digits) > maxDigits {
		return "", fmt.Errorf("%s needs %d digits, max is %d: %w", FormatDecimal(n).String, len(digits), maxDigits, ErrPrecision)
	}
	if len(digits) <= places {
		digits = strings.Repeat("0", places-len(digits)+1) + digits
	}
	var sb strings.Builder
	if negative {
		sb.WriteByte('-')
	}
	if places == 0 {
		sb.WriteString(digits)
		return sb.String(), nil
	}
	sb.WriteString(digits[:len(digits)-places])
	sb.WriteByte('.')
	sb.WriteString(digits[len(digits)-places:])
	return sb.String(), nil
}

// quantize rescales coef*10^exp to a coefficient for 10^target, rounding half
// to even.
func quantize(coef *big.Int, exp, target int32) *big.Int {
	if exp >= target {
		scale := new(big.Int).Exp(big10, big.NewInt(int64(exp-target)), nil)
		return scale.Mul(scale, coef)
	}
	div := new(big.Int).Exp(big10, big.NewInt(int64(target-exp)), nil)
	q, r := new(big.Int).QuoRem(coef, div, new(big.Int))
	r.Abs(r)
	r.Lsh(r, 1)
	if c := r.Cmp(div); c > 0 || (c == 0 && q.Bit(0) == 1) {
		if coef.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return q
}
