package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jmakaron/dbcursor/internal/app/dbcursor/store"
	"github.com/jmakaron/dbcursor/internal/pkg/http"
	"github.com/jmakaron/dbcursor/internal/pkg/kafka/kp"
)

var ErrUnknownFormat = errors.New("unknown config format")

type AppConfig struct {
	HttpCfg http.HTTPServiceCfg `json:"http" yaml:"http"`
	Db      store.DBConfig      `json:"db" yaml:"db"`
	Kp      kp.ProducerCfg      `json:"kp" yaml:"kp"`
}

// ParseConfigFile reads a JSON or YAML config, picked by file extension.
func ParseConfigFile(path string) (*AppConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg AppConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		return nil, fmt.Errorf("%s: %w", ext, ErrUnknownFormat)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Db.Vendor == "" {
		cfg.Db.Vendor = store.VendorPostgres
	}
	return &cfg, nil
}
