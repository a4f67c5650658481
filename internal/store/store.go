// Package store provides the Document Store drivers: in-memory, SQLite and a
// directory of JSON files.
package store

import (
	"context"
	"fmt"

	"gihan9a/positionmodeler/internal/config"
	"gihan9a/positionmodeler/internal/document"

	"github.com/golang/glog"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
)

// Open creates the store selected by cfg.Driver. The caller owns the result
// and must Close it.
func Open(ctx context.Context, cfg config.StoreConfig) (document.Store, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		glog.Infof("Using in-memory document store")
		return NewMemoryStore(), nil
	case DriverSQLite:
		glog.Infof("Using sqlite document store: %s", cfg.DSN)
		return NewSQLiteStore(ctx, cfg.DSN)
	case DriverFile:
		glog.Infof("Using file document store: %s", cfg.Dir)
		return NewFileStore(cfg.Dir)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
