// Package storage persists dispatch job history and notifier dedup keys in
// SQLite. Storage is optional; a nil Store disables persistence.
package storage
