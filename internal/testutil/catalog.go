package testutil

import (
	"testing"

	"pixsync/internal/catalog"
	"pixsync/internal/catalog/migrations"
	"pixsync/internal/pix"
)

// NewTestCatalog creates a new in-memory SQLite catalog with all
// migrations applied. The catalog is automatically closed when the test
// completes.
func NewTestCatalog(t *testing.T) pix.Catalog {
	t.Helper()

	sqlDB, err := catalog.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open catalog: %v", err)
	}

	if err := migrations.MigrateUp(sqlDB); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply migrations: %v", err)
	}

	cat := catalog.NewCatalogFromDB(sqlDB)

	t.Cleanup(func() {
		cat.Close()
	})

	return cat
}
