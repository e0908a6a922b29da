package store

import (
	"github.com/docref/docref/pkg/config"
	"github.com/docref/docref/pkg/observability/logger"
	"github.com/docref/docref/pkg/store/mongodb"
)

// NewStoreAdapter initializes the document-store adapter from config.
// It verifies connectivity before returning; there is no lazy connect and
// no fallback between stores.
func NewStoreAdapter(cfg config.StoreConfig, log logger.Logger) (*mongodb.Adapter, error) {
	return mongodb.NewAdapter(mongodb.Config{
		URL:              cfg.URL,
		Database:         cfg.Database,
		ConnectTimeout:   cfg.ConnectTimeout,
		OperationTimeout: cfg.OperationTimeout,
	}, log)
}
