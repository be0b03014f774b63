package providers

import (
	"fmt"
	"freedomwall/internal/docstore"
	"freedomwall/internal/structures"
)

// NewStoreProvider opens the document store backend selected in the config.
func NewStoreProvider(conf *structures.Config, logger Logger) (docstore.Backend, error) {
	switch conf.Store.Backend {
	case "", "memory":
		logger.Infof(TypeApp, "Using in-memory document store")
		return docstore.NewMemoryStore(), nil
	case "sqlite":
		store, err := docstore.OpenSQLite(conf.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store %s: %w", conf.Store.Path, err)
		}
		logger.Infof(TypeApp, "Using sqlite document store at %s", conf.Store.Path)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", conf.Store.Backend)
	}
}
