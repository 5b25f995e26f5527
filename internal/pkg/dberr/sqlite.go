package dberr

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteCodes = map[int]error{
	sqlite3.SQLITE_ERROR:      ErrOperational,
	sqlite3.SQLITE_INTERNAL:   ErrInternal,
	sqlite3.SQLITE_PERM:       ErrOperational,
	sqlite3.SQLITE_ABORT:      ErrOperational,
	sqlite3.SQLITE_BUSY:       ErrOperational,
	sqlite3.SQLITE_LOCKED:     ErrOperational,
	sqlite3.SQLITE_NOMEM:      ErrOperational,
	sqlite3.SQLITE_READONLY:   ErrOperational,
	sqlite3.SQLITE_INTERRUPT:  ErrOperational,
	sqlite3.SQLITE_IOERR:      ErrOperational,
	sqlite3.SQLITE_CORRUPT:    ErrDatabase,
	sqlite3.SQLITE_FULL:       ErrOperational,
	sqlite3.SQLITE_CANTOPEN:   ErrOperational,
	sqlite3.SQLITE_SCHEMA:     ErrOperational,
	sqlite3.SQLITE_TOOBIG:     ErrData,
	sqlite3.SQLITE_CONSTRAINT: ErrIntegrity,
	sqlite3.SQLITE_MISMATCH:   ErrData,
	sqlite3.SQLITE_MISUSE:     ErrInterface,
	sqlite3.SQLITE_RANGE:      ErrProgramming,
	sqlite3.SQLITE_NOTADB:     ErrDatabase,
}

func init() {
	register(classifySQLite)
}

func classifySQLite(err error) (error, bool) {
	var liteErr *sqlite.Error
	if !errors.As(err, &liteErr) {
		return nil, false
	}
	// extended result codes carry the primary code in the low byte
	if kind, ok := sqliteCodes[liteErr.Code()&0xff]; ok {
		return kind, true
	}
	return ErrDatabase, true
}
