package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"stock-watch/internal/model"
)

const (
	stateFileName   = "state.json"
	historyFileName = "notification_history.json"

	maxHistoryRecords = 500
)

// FileStore keeps monitor state and notification history in JSON files
type FileStore struct {
	mu      sync.Mutex
	dataDir string
}

// stateDocument is the on-disk layout of state.json
type stateDocument struct {
	Version int                           `json:"version"`
	States  map[string]model.MonitorState `json:"states"`
}

// NewFileStore creates a FileStore rooted at dataDir
func NewFileStore(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

func (s *FileStore) statePath() string {
	return filepath.Join(s.dataDir, stateFileName)
}

func (s *FileStore) historyPath() string {
	return filepath.Join(s.dataDir, historyFileName)
}

// Load reads the state for key from disk on every call
func (s *FileStore) Load(ctx context.Context, key string) model.MonitorState {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readStates()
	if err != nil {
		slog.WarnContext(ctx, "state file unreadable, starting empty", "path", s.statePath(), "err", err)
		return model.MonitorState{}
	}
	return doc.States[key].Clone()
}

// Save rewrites state.json with key replaced
func (s *FileStore) Save(ctx context.Context, key string, state model.MonitorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readStates()
	if err != nil {
		// a corrupt document is replaced rather than blocking every later save
		slog.WarnContext(ctx, "replacing unreadable state file", "path", s.statePath(), "err", err)
		doc = &stateDocument{}
	}
	if doc.States == nil {
		doc.States = make(map[string]model.MonitorState)
	}
	doc.Version = 1
	doc.States[key] = state.Clone()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := writeFileAtomic(s.statePath(), data); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return nil
}

// Keys lists state keys in sorted order
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readStates()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc.States))
	for k := range doc.States {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// readStates returns an empty document when the file does not exist yet
func (s *FileStore) readStates() (*stateDocument, error) {
	data, err := os.ReadFile(s.statePath())
	if os.IsNotExist(err) {
		return &stateDocument{States: map[string]model.MonitorState{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &doc, nil
}

// RecordNotification appends rec to the history file, keeping the newest records
func (s *FileStore) RecordNotification(ctx context.Context, rec *model.NotificationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readHistory()
	if err != nil {
		slog.WarnContext(ctx, "replacing unreadable notification history", "path", s.historyPath(), "err", err)
		history = nil
	}
	history = append(history, rec)
	if len(history) > maxHistoryRecords {
		history = history[len(history)-maxHistoryRecords:]
	}

	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notification history: %w", err)
	}
	if err := writeFileAtomic(s.historyPath(), data); err != nil {
		return fmt.Errorf("failed to write notification history: %w", err)
	}
	return nil
}

// ListNotifications returns newest first, optionally filtered by product key.
// A limit of zero or less returns everything.
func (s *FileStore) ListNotifications(ctx context.Context, productKey string, limit int) ([]*model.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readHistory()
	if err != nil {
		return nil, err
	}
	out := make([]*model.NotificationRecord, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		rec := history[i]
		if productKey != "" && rec.ProductKey != productKey {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetNotification returns a single record by ID
func (s *FileStore) GetNotification(ctx context.Context, id string) (*model.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.readHistory()
	if err != nil {
		return nil, err
	}
	for _, rec := range history {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *FileStore) readHistory() ([]*model.NotificationRecord, error) {
	data, err := os.ReadFile(s.historyPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var history []*model.NotificationRecord
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification history: %w", err)
	}
	return history, nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

// writeFileAtomic writes to a temp file in the same directory and renames it
// over path, so readers see either the old or the new content.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
