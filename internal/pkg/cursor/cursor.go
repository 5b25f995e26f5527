// Package cursor wraps a raw database cursor with connection level
// instrumentation: dirty state tracking, error normalization and, in debug
// mode, a per statement query log.
//
// Cursors are not safe for concurrent use.
package cursor

import (
	"context"
	"iter"
	"slices"
)

type Row []any

type Column struct {
	Name     string `json:"name"`
	TypeName string `json:"type"`
}

// ParamSeq is the parameter collection of ExecuteMany. Collections that also
// implement Len report their size in the query log.
type ParamSeq interface {
	All() iter.Seq[[]any]
}

// ParamList is a sized, reusable parameter collection.
type ParamList [][]any

func (l ParamList) All() iter.Seq[[]any] {
	return slices.Values(l)
}

func (l ParamList) Len() int {
	return len(l)
}

// ParamIter is a single pass parameter collection of unknown size.
type ParamIter iter.Seq[[]any]

func (p ParamIter) All() iter.Seq[[]any] {
	return iter.Seq[[]any](p)
}

// Cursor is the capability set shared by raw driver cursors and their
// wrappers. A nil params slice means the statement is sent without binding.
type Cursor interface {
	Execute(ctx context.Context, sql string, params []any) error
	ExecuteMany(ctx context.Context, sql string, params ParamSeq) error
	CallProc(ctx context.Context, name string, params []any) error
	FetchOne() (Row, error)
	FetchMany(size int) ([]Row, error)
	FetchAll() ([]Row, error)
	NextSet() (bool, error)
	Close() error
	Description() []Column
	RowCount() int64
	Rows() iter.Seq2[Row, error]
}

// QueryLogEntry is one executed statement. Time is in seconds with three
// decimals.
type QueryLogEntry struct {
	SQL  string `json:"sql"`
	Time string `json:"time"`
}

type Ops interface {
	// LastExecutedQuery renders sql as sent by c, parameters bound.
	LastExecutedQuery(c Cursor, sql string, params []any) string
}

// Connection is the owner of a wrapped cursor.
type Connection interface {
	SetDirty()
	// WrapErrors runs fn and returns its error translated into the
	// connection's error taxonomy.
	WrapErrors(fn func() error) error
	Ops() Ops
	AppendQuery(QueryLogEntry)
}
