package db

import (
	"github.com/pkg/errors"

	"github.com/NikhilTirunagiri/petal-v1/internal/profile"
	"github.com/NikhilTirunagiri/petal-v1/store"
	"github.com/NikhilTirunagiri/petal-v1/store/db/postgres"
	"github.com/NikhilTirunagiri/petal-v1/store/db/sqlite"
)

// ============================================================================
// DATABASE SUPPORT POLICY
// ============================================================================
// This project supports only PostgreSQL and SQLite databases.
//
// PostgreSQL: Full support for production use, including vector search
// through the pgvector extension.
// SQLite: Development/testing only. Vector search is not available; callers
// fall back to keyword search.
// ============================================================================

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.New("unknown db driver: only 'postgres' and 'sqlite' are supported")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
