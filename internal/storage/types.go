package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// JobRecord is a dispatch job in its terminal state.
// Keep it compact and schema-stable.
type JobRecord struct {
	JobID         int64
	Action        string
	Status        string
	Title         string
	Nation        string
	DispatchID    int64
	Error         string
	InitiatorID   int64
	InitiatorName string
	CreatedAt     time.Time
	FinishedAt    time.Time
}
