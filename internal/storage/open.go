package storage

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	logx "eurobot/pkg/logx"
)

// Store is the persistence surface the app and services use: finished-job
// history and the notifier's dedup window.
type Store interface {
	AppendJob(ctx context.Context, r JobRecord) error
	RecentJobs(ctx context.Context, limit int) ([]JobRecord, error)
	PruneJobs(ctx context.Context, olderThan time.Time) (int64, error)
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store, or returns (nil, nil) when
// storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "none":
		return nil, nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.Newf("unknown storage driver: %s", driver)
	}
}
