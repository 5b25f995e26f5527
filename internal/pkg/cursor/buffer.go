package cursor

import (
	"iter"

	"github.com/jmakaron/dbcursor/internal/pkg/dberr"
)

type resultSet struct {
	columns []Column
	rows    []Row
}

// Buffer holds a client side result set. Raw cursors embed it to get the
// fetch half of Cursor.
type Buffer struct {
	columns  []Column
	sets     []resultSet
	rows     []Row
	pos      int
	rowCount int64
	closed   bool
}

func NewBuffer() Buffer {
	return Buffer{rowCount: -1}
}

// Load replaces the current result with rows described by columns. A nil
// columns slice marks a statement that produced no result set.
func (b *Buffer) Load(columns []Column, rows []Row, rowCount int64) {
	b.columns = columns
	b.rows = rows
	b.pos = 0
	b.rowCount = rowCount
}

// Clear drops the current result and every queued one.
func (b *Buffer) Clear() {
	b.Load(nil, nil, -1)
	b.sets = nil
}

// Open reports dberr.ErrCursorClosed once Close has been called.
func (b *Buffer) Open() error {
	if b.closed {
		return dberr.ErrCursorClosed
	}
	return nil
}

func (b *Buffer) ready() error {
	if err := b.Open(); err != nil {
		return err
	}
	if b.columns == nil {
		return dberr.ErrNoResultSet
	}
	return nil
}

// FetchOne returns the next row, or nil once the result is exhausted.
func (b *Buffer) FetchOne() (Row, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	if b.pos >= len(b.rows) {
		return nil, nil
	}
	b.pos++
	return b.rows[b.pos-1], nil
}

// FetchMany returns up to size rows. A size below one fetches a single row.
func (b *Buffer) FetchMany(size int) ([]Row, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	size = max(size, 1)
	end := min(b.pos+size, len(b.rows))
	out := b.rows[b.pos:end]
	b.pos = end
	return out, nil
}

func (b *Buffer) FetchAll() ([]Row, error) {
	if err := b.ready(); err != nil {
		return nil, err
	}
	out := b.rows[b.pos:]
	b.pos = len(b.rows)
	return out, nil
}

func (b *Buffer) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for {
			r, err := b.FetchOne()
			if err != nil {
				yield(nil, err)
				return
			}
			if r == nil || !yield(r, nil) {
				return
			}
		}
	}
}

func (b *Buffer) Description() []Column {
	return b.columns
}

// RowCount is -1 until a statement has run.
func (b *Buffer) RowCount() int64 {
	return b.rowCount
}

// Queue stores an additional result set for NextSet.
func (b *Buffer) Queue(columns []Column, rows []Row) {
	b.sets = append(b.sets, resultSet{columns: columns, rows: rows})
}

// NextSet advances to the next queued result set.
func (b *Buffer) NextSet() (bool, error) {
	if err := b.Open(); err != nil {
		return false, err
	}
	if len(b.sets) == 0 {
		return false, nil
	}
	next := b.sets[0]
	b.sets = b.sets[1:]
	b.Load(next.columns, next.rows, int64(len(next.rows)))
	return true, nil
}

func (b *Buffer) Close() error {
	b.Clear()
	b.closed = true
	return nil
}
