// Package store persists journal sessions. It provides the record source
// read by exports and the sink written by imports.
//
// Two backends implement core.SessionStore:
//
//   - SQLite: a single local journal file, used by the CLI and small installs
//   - Postgres: a pgx connection pool for shared deployments
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/afterflow/internal/config"
	"github.com/JonMunkholm/afterflow/internal/core"
)

// Store is a SessionStore that owns resources.
type Store interface {
	core.SessionStore
	Close() error
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverSQLite, "":
		return OpenSQLite(ctx, cfg.Path)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown database driver: %q", cfg.Driver)
	}
}

// prepareRecords assigns IDs and creation times to records that lack them.
// The input slice is not modified.
func prepareRecords(records []core.SessionRecord, now time.Time) []core.SessionRecord {
	out := make([]core.SessionRecord, len(records))
	for i, r := range records {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		out[i] = r
	}
	return out
}
