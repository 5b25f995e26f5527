package cursor

import (
	"context"
	"iter"
)

type capability string

const (
	capCallProc    capability = "callproc"
	capClose       capability = "close"
	capExecute     capability = "execute"
	capExecuteMany capability = "executemany"
	capFetchOne    capability = "fetchone"
	capFetchMany   capability = "fetchmany"
	capFetchAll    capability = "fetchall"
	capNextSet     capability = "nextset"
)

var (
	setDirtyCaps = map[capability]bool{
		capExecute:     true,
		capExecuteMany: true,
		capCallProc:    true,
	}
	wrapErrorCaps = map[capability]bool{
		capCallProc:    true,
		capClose:       true,
		capExecute:     true,
		capExecuteMany: true,
		capFetchOne:    true,
		capFetchMany:   true,
		capFetchAll:    true,
		capNextSet:     true,
	}
)

// Wrapper forwards every capability to the raw cursor. Mutating calls mark the
// connection dirty before delegating and driver errors are translated by the
// connection.
type Wrapper struct {
	cursor Cursor
	db     Connection
}

var _ Cursor = (*Wrapper)(nil)

func New(c Cursor, db Connection) *Wrapper {
	return &Wrapper{cursor: c, db: db}
}

// Raw returns the wrapped cursor.
func (w *Wrapper) Raw() Cursor {
	return w.cursor
}

func (w *Wrapper) call(c capability, fn func() error) error {
	if setDirtyCaps[c] {
		w.db.SetDirty()
	}
	if wrapErrorCaps[c] {
		return w.db.WrapErrors(fn)
	}
	return fn()
}

func callValue[T any](w *Wrapper, c capability, fn func() (T, error)) (T, error) {
	var v T
	err := w.call(c, func() error {
		var err error
		v, err = fn()
		return err
	})
	return v, err
}

func (w *Wrapper) Execute(ctx context.Context, sql string, params []any) error {
	return w.call(capExecute, func() error { return w.cursor.Execute(ctx, sql, params) })
}

func (w *Wrapper) ExecuteMany(ctx context.Context, sql string, params ParamSeq) error {
	return w.call(capExecuteMany, func() error { return w.cursor.ExecuteMany(ctx, sql, params) })
}

func (w *Wrapper) CallProc(ctx context.Context, name string, params []any) error {
	return w.call(capCallProc, func() error { return w.cursor.CallProc(ctx, name, params) })
}

func (w *Wrapper) FetchOne() (Row, error) {
	return callValue(w, capFetchOne, w.cursor.FetchOne)
}

func (w *Wrapper) FetchMany(size int) ([]Row, error) {
	return callValue(w, capFetchMany, func() ([]Row, error) { return w.cursor.FetchMany(size) })
}

func (w *Wrapper) FetchAll() ([]Row, error) {
	return callValue(w, capFetchAll, w.cursor.FetchAll)
}

func (w *Wrapper) NextSet() (bool, error) {
	return callValue(w, capNextSet, w.cursor.NextSet)
}

func (w *Wrapper) Close() error {
	return w.call(capClose, w.cursor.Close)
}

func (w *Wrapper) Description() []Column {
	return w.cursor.Description()
}

func (w *Wrapper) RowCount() int64 {
	return w.cursor.RowCount()
}

// Rows iterates the current result set of the raw cursor as is.
func (w *Wrapper) Rows() iter.Seq2[Row, error] {
	return w.cursor.Rows()
}
