package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE class -> kind.
var pgClasses = map[string]error{
	"0A": ErrNotSupported,
	"20": ErrProgramming,
	"21": ErrProgramming,
	"22": ErrData,
	"23": ErrIntegrity,
	"24": ErrInternal,
	"25": ErrInternal,
	"26": ErrInternal,
	"27": ErrOperational,
	"28": ErrOperational,
	"2B": ErrInternal,
	"2D": ErrInternal,
	"2F": ErrInternal,
	"34": ErrOperational,
	"38": ErrInternal,
	"39": ErrInternal,
	"3B": ErrInternal,
	"3D": ErrProgramming,
	"3F": ErrProgramming,
	"40": ErrOperational,
	"42": ErrProgramming,
	"44": ErrProgramming,
	"53": ErrOperational,
	"54": ErrOperational,
	"55": ErrOperational,
	"57": ErrOperational,
	"58": ErrOperational,
	"F0": ErrInternal,
	"HV": ErrOperational,
	"P0": ErrInternal,
	"XX": ErrInternal,
}

func init() {
	register(classifyPostgres)
}

func classifyPostgres(err error) (error, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 {
			if kind, ok := pgClasses[pgErr.Code[:2]]; ok {
				return kind, true
			}
		}
		return ErrDatabase, true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ErrOperational, true
	}
	if pgconn.Timeout(err) {
		return ErrOperational, true
	}
	return nil, false
}
