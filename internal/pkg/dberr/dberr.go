// Package dberr normalizes driver specific errors into a small, stable set of
// error kinds. Every kind is a sentinel usable with errors.Is; the driver error
// stays reachable through errors.As.
package dberr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

var (
	ErrError        = errors.New("error")
	ErrInterface    = errors.New("interface error")
	ErrDatabase     = errors.New("database error")
	ErrData         = errors.New("data error")
	ErrOperational  = errors.New("operational error")
	ErrIntegrity    = errors.New("integrity error")
	ErrInternal     = errors.New("internal error")
	ErrProgramming  = errors.New("programming error")
	ErrNotSupported = errors.New("not supported error")

	// ErrCursorClosed is returned by raw cursors used after Close.
	ErrCursorClosed = errors.New("cursor already closed")
	// ErrNoResultSet is returned by fetch calls when no statement produced rows.
	ErrNoResultSet = errors.New("no results to fetch")
	// ErrUnsupportedOperation is returned by raw cursors for capabilities the
	// backend lacks (nextset on postgres, callproc on sqlite).
	ErrUnsupportedOperation = errors.New("operation not supported by backend")
)

var parents = map[error]error{
	ErrInterface:    ErrError,
	ErrDatabase:     ErrError,
	ErrData:         ErrDatabase,
	ErrOperational:  ErrDatabase,
	ErrIntegrity:    ErrDatabase,
	ErrInternal:     ErrDatabase,
	ErrProgramming:  ErrDatabase,
	ErrNotSupported: ErrDatabase,
}

// Error is a translated driver error.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes the kind, its ancestors and the original error.
func (e *Error) Unwrap() []error {
	errs := []error{}
	for k := e.Kind; k != nil; k = parents[k] {
		errs = append(errs, k)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Kind returns the most specific kind of err, or nil when err was not
// translated.
func Kind(err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return nil
}

type classifier func(error) (error, bool)

var classifiers []classifier

func register(c classifier) {
	classifiers = append(classifiers, c)
}

// Translate maps err onto the taxonomy. nil stays nil and errors that were
// already translated are returned unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return err
	}
	return &Error{Kind: classify(err), Err: err}
}

func classify(err error) error {
	for _, c := range classifiers {
		if kind, ok := c(err); ok {
			return kind
		}
	}
	switch {
	case errors.Is(err, ErrCursorClosed):
		return ErrInterface
	case errors.Is(err, ErrNoResultSet):
		return ErrProgramming
	case errors.Is(err, ErrUnsupportedOperation):
		return ErrNotSupported
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrOperational
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ErrOperational
	}
	return ErrDatabase
}

// Wrap runs fn and translates the error it returns.
func Wrap(fn func() error) error {
	return Translate(fn())
}
