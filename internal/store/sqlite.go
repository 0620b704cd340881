package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"stock-watch/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps monitor state and notification history in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates) stock-watch.db inside dataDir
func NewSQLite(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "stock-watch.db")

	// WAL mode keeps readers off the writer's back; each statement is atomic
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000", dbPath)
	return NewSQLiteDSN(dsn)
}

// NewSQLiteDSN opens a database from a raw DSN such as ":memory:"
func NewSQLiteDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection so that :memory: databases are shared by every query
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// migrate creates tables and indexes
func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS monitor_state (
		key TEXT PRIMARY KEY,
		last_seen_quantity INTEGER,
		last_seen_in_stock INTEGER,
		last_notified_quantity INTEGER,
		last_notified_in_stock INTEGER,
		last_notification_key TEXT,
		last_notification_time INTEGER,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notification_history (
		id TEXT PRIMARY KEY,
		product_key TEXT NOT NULL,
		product_url TEXT NOT NULL,
		kind TEXT NOT NULL,
		previous_quantity INTEGER,
		new_quantity INTEGER,
		in_stock INTEGER NOT NULL,
		subject TEXT NOT NULL,
		deliveries TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notification_history_product ON notification_history(product_key, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_notification_history_created ON notification_history(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the state for key, empty when missing or unreadable
func (s *SQLiteStore) Load(ctx context.Context, key string) model.MonitorState {
	row := s.db.QueryRowContext(ctx, `
		SELECT last_seen_quantity, last_seen_in_stock,
		       last_notified_quantity, last_notified_in_stock,
		       last_notification_key, last_notification_time
		FROM monitor_state WHERE key = ?`, key)

	var (
		seenQty, seenStock         sql.NullInt64
		notifiedQty, notifiedStock sql.NullInt64
		notifKey                   sql.NullString
		notifTime                  sql.NullInt64
	)
	err := row.Scan(&seenQty, &seenStock, &notifiedQty, &notifiedStock, &notifKey, &notifTime)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MonitorState{}
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to load state, starting empty", "key", key, "err", err)
		return model.MonitorState{}
	}

	st := model.MonitorState{
		LastSeenQuantity:     intFromNull(seenQty),
		LastSeenInStock:      boolFromNull(seenStock),
		LastNotifiedQuantity: intFromNull(notifiedQty),
		LastNotifiedInStock:  boolFromNull(notifiedStock),
	}
	if notifKey.Valid {
		k := notifKey.String
		st.LastNotificationKey = &k
	}
	if notifTime.Valid {
		t := time.Unix(0, notifTime.Int64).UTC()
		st.LastNotificationTime = &t
	}
	return st
}

// Save upserts the state row for key
func (s *SQLiteStore) Save(ctx context.Context, key string, state model.MonitorState) error {
	var notifTime sql.NullInt64
	if state.LastNotificationTime != nil {
		notifTime = sql.NullInt64{Int64: state.LastNotificationTime.UnixNano(), Valid: true}
	}
	var notifKey sql.NullString
	if state.LastNotificationKey != nil {
		notifKey = sql.NullString{String: *state.LastNotificationKey, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitor_state (
			key, last_seen_quantity, last_seen_in_stock,
			last_notified_quantity, last_notified_in_stock,
			last_notification_key, last_notification_time, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			last_seen_quantity = excluded.last_seen_quantity,
			last_seen_in_stock = excluded.last_seen_in_stock,
			last_notified_quantity = excluded.last_notified_quantity,
			last_notified_in_stock = excluded.last_notified_in_stock,
			last_notification_key = excluded.last_notification_key,
			last_notification_time = excluded.last_notification_time,
			updated_at = excluded.updated_at
	`, key,
		nullFromInt(state.LastSeenQuantity), nullFromBool(state.LastSeenInStock),
		nullFromInt(state.LastNotifiedQuantity), nullFromBool(state.LastNotifiedInStock),
		notifKey, notifTime, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Keys lists state keys in sorted order
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM monitor_state ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RecordNotification inserts a history row
func (s *SQLiteStore) RecordNotification(ctx context.Context, rec *model.NotificationRecord) error {
	deliveries, err := json.Marshal(rec.Deliveries)
	if err != nil {
		return fmt.Errorf("failed to marshal deliveries: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO notification_history (
			id, product_key, product_url, kind, previous_quantity, new_quantity,
			in_stock, subject, deliveries, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.ProductKey, rec.ProductURL, string(rec.Kind),
		nullFromInt(rec.PreviousQuantity), nullFromInt(rec.NewQuantity),
		rec.InStock, rec.Subject, string(deliveries), rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	return nil
}

const historyColumns = `id, product_key, product_url, kind, previous_quantity, new_quantity,
	in_stock, subject, deliveries, created_at`

// ListNotifications returns newest first, optionally filtered by product key
func (s *SQLiteStore) ListNotifications(ctx context.Context, productKey string, limit int) ([]*model.NotificationRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `SELECT ` + historyColumns + ` FROM notification_history`
	args := []any{}
	if productKey != "" {
		query += ` WHERE product_key = ?`
		args = append(args, productKey)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.NotificationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetNotification returns one history row
func (s *SQLiteStore) GetNotification(ctx context.Context, id string) (*model.NotificationRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM notification_history WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*model.NotificationRecord, error) {
	var (
		rec             model.NotificationRecord
		kind            string
		prevQty, newQty sql.NullInt64
		deliveries      string
		createdAt       int64
	)
	err := sc.Scan(&rec.ID, &rec.ProductKey, &rec.ProductURL, &kind, &prevQty, &newQty,
		&rec.InStock, &rec.Subject, &deliveries, &createdAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = model.NotificationKind(kind)
	rec.PreviousQuantity = intFromNull(prevQty)
	rec.NewQuantity = intFromNull(newQty)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(deliveries), &rec.Deliveries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deliveries: %w", err)
	}
	return &rec, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	return model.IntPtr(int(n.Int64))
}

func boolFromNull(n sql.NullInt64) *bool {
	if !n.Valid {
		return nil
	}
	return model.BoolPtr(n.Int64 != 0)
}

func nullFromInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFromBool(v *bool) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	if *v {
		return sql.NullInt64{Int64: 1, Valid: true}
	}
	return sql.NullInt64{Int64: 0, Valid: true}
}
