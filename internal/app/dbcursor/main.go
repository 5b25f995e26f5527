package dbcursor

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/config"
	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store"
	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store/postgres"
	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store/sqldb"
	"github.com/jmakaron/dbcursor/internal/app/dbcursor/types"
	httpsrv "github.com/jmakaron/dbcursor/internal/pkg/http"
	"github.com/jmakaron/dbcursor/internal/pkg/kafka/kp"
	"github.com/jmakaron/dbcursor/pkg/logger"
)

type ServiceComponent struct {
	log    *logger.Logger
	cfg    *config.AppConfig
	ep     *httpsrv.HTTPService
	kp     kp.KafkaProducer
	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes every use of conn
	mu        sync.Mutex
	conn      *store.Conn
	published int
}

func New(log *logger.Logger) *ServiceComponent {
	return &ServiceComponent{log: log}
}

func openBackend(cfg store.DBConfig) (store.Backend, error) {
	switch cfg.Vendor {
	case store.VendorPostgres:
		return postgres.New(cfg), nil
	case store.VendorMySQL, store.VendorSQLite:
		return sqldb.New(cfg)
	}
	return nil, fmt.Errorf("%s: %w", cfg.Vendor, store.ErrUnsupportedVendor)
}

func (c *ServiceComponent) Init(cfg *config.AppConfig) error {
	c.cfg = cfg
	b, err := openBackend(c.cfg.Db)
	if err != nil {
		return err
	}
	if c.conn, err = store.NewConn(b, c.cfg.Db, c.log); err != nil {
		return err
	}
	if c.cfg.Kp.Enabled() {
		c.kp = kp.New(c.cfg.Kp)
	}
	c.ep = &httpsrv.HTTPService{}
	return nil
}

func (c *ServiceComponent) Start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if err := c.conn.Connect(c.ctx); err != nil {
		c.log.Debug("could not connect to db")
		return err
	}
	if c.kp != nil {
		if err := c.kp.Connect(c.ctx); err != nil {
			c.log.Debug("could not connect to kafka")
			c.conn.Close()
			return err
		}
	}
	layout, spec := c.getRestAPI()
	if err := c.ep.Init(c.cfg.HttpCfg, layout, spec, c.log); err != nil {
		c.log.Debug("could not initialize http service component")
		c.disconnect()
		return err
	}
	if err := c.ep.Start(); err != nil {
		c.log.Debug("could not start http service component")
		c.disconnect()
		return err
	}
	return nil
}

func (c *ServiceComponent) disconnect() {
	if c.kp != nil {
		c.kp.Disconnect()
	}
	c.mu.Lock()
	c.conn.Close()
	c.mu.Unlock()
}

func (c *ServiceComponent) Stop() {
	if err := c.ep.Stop(); err != nil {
		c.log.Error(fmt.Sprintf("failed to stop http service component, %+v", err))
	}
	c.disconnect()
	c.cancel()
}

// publishQueries sends the query log entries added since the last call.
// Callers hold mu.
func (c *ServiceComponent) publishQueries() {
	entries := c.conn.Queries()
	if c.published > len(entries) {
		c.published = 0
	}
	fresh := entries[c.published:]
	c.published = len(entries)
	if c.kp == nil || len(fresh) == 0 {
		return
	}
	evts := make([]kp.KEvent, len(fresh))
	for i, e := range fresh {
		evts[i] = types.NewQueryEvent(c.cfg.Db.Vendor, c.published-len(fresh)+i, e)
	}
	if err := c.kp.PublishWithRetry(evts...); err != nil {
		c.log.Error(fmt.Sprintf("failed to publish %d query log entries, %+v", len(evts), err))
	}
}
