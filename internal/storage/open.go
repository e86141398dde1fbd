package storage

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Options selects and addresses a Database backend
type Options struct {
	Driver      string // "postgres" or "sqlite"
	PostgresURL string
	SQLitePath  string
}

// Open connects to the configured backend and ensures the detector's schema
func Open(ctx context.Context, opts Options) (Database, error) {
	var (
		db  Database
		err error
	)

	switch opts.Driver {
	case "postgres":
		db, err = NewPostgres(ctx, opts.PostgresURL)
	case "sqlite":
		db, err = NewSQLite(ctx, opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logrus.Infof("Connected to %s database", db.GetName())
	return db, nil
}
