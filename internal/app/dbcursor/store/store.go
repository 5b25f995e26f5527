package store

import (
	"context"
	"errors"

	"github.com/jmakaron/dbcursor/internal/pkg/cursor"
)

var (
	ErrUnsupportedVendor = errors.New("unsupported vendor")
	ErrNotConnected      = errors.New("store not connected")
	ErrNoTransaction     = errors.New("no transaction in progress")
)

const (
	VendorPostgres = "postgres"
	VendorMySQL    = "mysql"
	VendorSQLite   = "sqlite"
)

type DBConfig struct {
	Vendor   string `json:"vendor" yaml:"vendor"`
	DSN      string `json:"dsn" yaml:"dsn"`
	Addr     string `json:"addr" yaml:"addr"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"db_name" yaml:"db_name"`
	// Debug selects the debug cursor, which keeps a query log.
	Debug bool `json:"debug" yaml:"debug"`
	// UseTZ tags parsed timestamps as UTC instead of naive local time.
	UseTZ bool `json:"use_tz" yaml:"use_tz"`
}

// Backend is a single database session handing out raw cursors.
type Backend interface {
	Connect(context.Context) error
	Disconnect()
	Cursor(context.Context) (cursor.Cursor, error)
	Begin(context.Context) error
	Commit(context.Context) error
	Rollback(context.Context) error
}
