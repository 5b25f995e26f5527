package dberr

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

var mysqlNumbers = map[uint16]error{
	1048: ErrIntegrity, // column cannot be null
	1062: ErrIntegrity, // duplicate entry
	1169: ErrIntegrity,
	1216: ErrIntegrity,
	1217: ErrIntegrity,
	1451: ErrIntegrity,
	1452: ErrIntegrity,
	1557: ErrIntegrity,
	1264: ErrData, // out of range
	1265: ErrData,
	1292: ErrData,
	1366: ErrData,
	1406: ErrData, // data too long
	1054: ErrProgramming,
	1064: ErrProgramming, // syntax
	1146: ErrProgramming,
	1149: ErrProgramming,
	1235: ErrNotSupported,
	1040: ErrOperational,
	1045: ErrOperational,
	1205: ErrOperational, // lock wait timeout
	1213: ErrOperational, // deadlock
	2002: ErrOperational,
	2003: ErrOperational,
	2006: ErrOperational,
	2013: ErrOperational,
}

func init() {
	register(classifyMySQL)
}

func classifyMySQL(err error) (error, bool) {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if kind, ok := mysqlNumbers[myErr.Number]; ok {
			return kind, true
		}
		if myErr.Number >= 2000 && myErr.Number < 3000 {
			// client side errors
			return ErrOperational, true
		}
		return ErrDatabase, true
	}
	if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, mysql.ErrMalformPkt) {
		return ErrInterface, true
	}
	return nil, false
}
