package db

import (
	"github.com/pkg/errors"

	"github.com/lightpath-ai/lightpath/internal/profile"
	"github.com/lightpath-ai/lightpath/store"
	"github.com/lightpath-ai/lightpath/store/db/postgres"
	"github.com/lightpath-ai/lightpath/store/db/sqlite"
)

// NewDBDriver creates the store driver named by the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	case "postgres":
		return postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
