// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/renwaldo/shopsight/internal/profile"
	"github.com/renwaldo/shopsight/store"
	"github.com/renwaldo/shopsight/store/db/postgres"
	"github.com/renwaldo/shopsight/store/db/sqlite"
)

// NewDriver creates a new store driver based on the profile.
// Vector search over item documents requires the postgres driver; the sqlite
// driver serves catalog-only deployments and tests.
func NewDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "postgres":
		return postgres.NewDB(profile)
	case "sqlite":
		return sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
