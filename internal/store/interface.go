package store

import (
	"context"
	"errors"
	"fmt"

	"stock-watch/internal/model"
)

// Backends accepted by Open
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrNotFound is returned when a notification record does not exist
var ErrNotFound = errors.New("not found")

// StateStore defines durable storage for monitor state and notification history.
// Both the JSON FileStore and the SQLiteStore implement this interface.
type StateStore interface {
	// Load returns the stored state for key, or an empty state when the record
	// is missing or unreadable. It never fails.
	Load(ctx context.Context, key string) model.MonitorState
	// Save replaces the record for key. A crash mid-write keeps the previous record.
	Save(ctx context.Context, key string, state model.MonitorState) error
	// Keys lists every stored state key
	Keys(ctx context.Context) ([]string, error)

	// Notification history
	RecordNotification(ctx context.Context, rec *model.NotificationRecord) error
	ListNotifications(ctx context.Context, productKey string, limit int) ([]*model.NotificationRecord, error)
	GetNotification(ctx context.Context, id string) (*model.NotificationRecord, error)

	Close() error
}

// Ensure both stores implement the interface
var (
	_ StateStore = (*FileStore)(nil)
	_ StateStore = (*SQLiteStore)(nil)
)

// Open creates the store selected by backend inside dataDir
func Open(backend, dataDir string) (StateStore, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dataDir)
	case BackendSQLite:
		return NewSQLite(dataDir)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}
