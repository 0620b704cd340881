package store

import (
	"context"
	"fmt"
)

// CopyResult counts what Copy moved
type CopyResult struct {
	States        int
	Notifications int
}

// Copy writes every state and notification record of src into dst.
// History is inserted oldest first so dst keeps the same ordering.
func Copy(ctx context.Context, src, dst StateStore) (CopyResult, error) {
	var res CopyResult

	keys, err := src.Keys(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to list state keys: %w", err)
	}
	for _, k := range keys {
		if err := dst.Save(ctx, k, src.Load(ctx, k)); err != nil {
			return res, fmt.Errorf("failed to copy state %q: %w", k, err)
		}
		res.States++
	}

	history, err := src.ListNotifications(ctx, "", 0)
	if err != nil {
		return res, fmt.Errorf("failed to list notifications: %w", err)
	}
	for i := len(history) - 1; i >= 0; i-- {
		if err := dst.RecordNotification(ctx, history[i]); err != nil {
			return res, fmt.Errorf("failed to copy notification %s: %w", history[i].ID, err)
		}
		res.Notifications++
	}
	return res, nil
}

// Files lists the JSON documents the store writes
func (s *FileStore) Files() []string {
	return []string{s.statePath(), s.historyPath()}
}
