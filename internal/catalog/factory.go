package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"pixsync/internal/catalog/migrations"
	"pixsync/internal/config"
	"pixsync/internal/pix"
)

// NewCatalogFromConfig creates a Catalog based on the catalog config type.
// For file-backed catalogs the single-writer lock is acquired before the
// database is opened and held until Close.
func NewCatalogFromConfig(cfg config.CatalogConfig) (pix.Catalog, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite catalog")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
		dbPath := filepath.Join(cfg.DataDir, "catalog.db")

		lock, err := AcquireLock(dbPath + ".lock")
		if err != nil {
			return nil, err
		}

		c, err := NewCatalog(dbPath)
		if err != nil {
			lock.Release()
			return nil, err
		}
		c.lock = lock

		if err := migrations.MigrateUp(c.db); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrating catalog: %w", err)
		}
		return c, nil
	case "memory":
		c, err := NewCatalog(":memory:")
		if err != nil {
			return nil, err
		}
		if err := migrations.MigrateUp(c.db); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrating catalog: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown catalog type: %s", cfg.Type)
	}
}
