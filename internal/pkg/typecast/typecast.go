// Package typecast converts between the textual values a database driver may
// return and native date, time, timestamp and decimal values.
//
// Results use the nullable pgtype representations: an empty input yields a
// value with Valid set to false.
package typecast

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

var ErrInvalidFormat = errors.New("invalid format")

// Naive is the location naive timestamps are placed in. It is a fixed zero
// offset with no transitions, so every wall clock reading is representable.
var Naive = time.FixedZone("", 0)

const microsPerSecond = 1000000

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := parseYMD(s, time.UTC)
	if err != nil {
		return pgtype.Date{}, err
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

func parseYMD(s string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("date %q: %w", s, ErrInvalidFormat)
	}
	var ymd [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q: %w: %v", s, ErrInvalidFormat, err)
		}
		ymd[i] = v
	}
	t := time.Date(ymd[0], time.Month(ymd[1]), ymd[2], 0, 0, 0, 0, loc)
	// time.Date normalizes overflow, a real date round-trips
	if t.Year() != ymd[0] || int(t.Month()) != ymd[1] || t.Day() != ymd[2] || ymd[0] < 1 || ymd[0] > 9999 {
		return time.Time{}, fmt.Errorf("date %q out of range: %w", s, ErrInvalidFormat)
	}
	return t, nil
}

// ParseTime parses "HH:MM:SS[.ffffff]". Zone information is not retained.
func ParseTime(s string) (pgtype.Time, error) {
	if s == "" {
		return pgtype.Time{}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return pgtype.Time{}, fmt.Errorf("time %q: %w", s, ErrInvalidFormat)
	}
	seconds, frac, hasFrac := strings.Cut(parts[2], ".")
	var micros int64
	if hasFrac {
		f, err := strconv.ParseFloat("."+frac, 64)
		if err != nil {
			return pgtype.Time{}, fmt.Errorf("time %q: %w: %v", s, ErrInvalidFormat, err)
		}
		micros = int64(f * microsPerSecond)
	}
	h, m, sec, err := clock(parts[0], parts[1], seconds)
	if err != nil {
		return pgtype.Time{}, fmt.Errorf("time %q: %w", s, err)
	}
	if micros < 0 || micros >= microsPerSecond {
		return pgtype.Time{}, fmt.Errorf("time %q fraction out of range: %w", s, ErrInvalidFormat)
	}
	total := (int64(h)*3600+int64(m)*60+int64(sec))*microsPerSecond + micros
	return pgtype.Time{Microseconds: total, Valid: true}, nil
}

func clock(hs, ms, ss string) (h, m, s int, err error) {
	vals := [3]*int{&h, &m, &s}
	for i, str := range []string{hs, ms, ss} {
		v, convErr := strconv.Atoi(str)
		if convErr != nil {
			return 0, 0, 0, fmt.Errorf("%w: %v", ErrInvalidFormat, convErr)
		}
		*vals[i] = v
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || s < 0 || s > 59 {
		return 0, 0, 0, fmt.Errorf("clock out of range: %w", ErrInvalidFormat)
	}
	return h, m, s, nil
}

// ParseTimestamp parses "YYYY-MM-DD[ HH:MM:SS[.ffffff][±zz]]".
//
// A trailing UTC offset is split off and discarded, it is never applied to the
// result. With useTZ the value is placed in time.UTC, otherwise in Naive.
func ParseTimestamp(s string, useTZ bool) (pgtype.Timestamp, error) {
	if s == "" {
		return pgtype.Timestamp{}, nil
	}
	loc := Location(useTZ)
	if !strings.Contains(s, " ") {
		t, err := parseYMD(s, loc)
		if err != nil {
			return pgtype.Timestamp{}, err
		}
		return pgtype.Timestamp{Time: t, Valid: true}, nil
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return pgtype.Timestamp{}, fmt.Errorf("timestamp %q: %w", s, ErrInvalidFormat)
	}
	day, err := parseYMD(fields[0], loc)
	if err != nil {
		return pgtype.Timestamp{}, err
	}
	clockPart, _ := SplitOffset(fields[1])
	parts := strings.Split(clockPart, ":")
	if len(parts) < 3 {
		return pgtype.Timestamp{}, fmt.Errorf("timestamp %q: %w", s, ErrInvalidFormat)
	}
	seconds, frac, _ := strings.Cut(parts[2], ".")
	micros, err := strconv.Atoi((frac + "000000")[:6])
	if err != nil {
		return pgtype.Timestamp{}, fmt.Errorf("timestamp %q: %w: %v", s, ErrInvalidFormat, err)
	}
	h, m, sec, err := clock(parts[0], parts[1], seconds)
	if err != nil {
		return pgtype.Timestamp{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	if micros < 0 {
		return pgtype.Timestamp{}, fmt.Errorf("timestamp %q: %w", s, ErrInvalidFormat)
	}
	t := time.Date(day.Year(), day.Month(), day.Day(), h, m, sec, micros*1000, loc)
	return pgtype.Timestamp{Time: t, Valid: true}, nil
}

// Location returns the location ParseTimestamp places its results in.
func Location(useTZ bool) *time.Location {
	if useTZ {
		return time.UTC
	}
	return Naive
}

// SplitOffset separates a trailing "-zz" or "+zz" offset from the clock part of
// a timestamp. It must only be given the time portion, the date's own hyphens
// would otherwise match.
func SplitOffset(t string) (clock, offset string) {
	if i := strings.IndexByte(t, '-'); i >= 0 {
		return t[:i], t[i:]
	}
	if i := strings.IndexByte(t, '+'); i >= 0 {
		return t[:i], t[i:]
	}
	return t, ""
}
