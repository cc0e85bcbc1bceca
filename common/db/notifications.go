package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// NotificationsTable holds the console notification history.
const NotificationsTable = "admin_notifications"

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS admin_notifications (
	id         UUID PRIMARY KEY,
	category   TEXT NOT NULL,
	source     TEXT NOT NULL,
	message    TEXT NOT NULL,
	details    JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS admin_notifications_created_at_idx ON admin_notifications (created_at DESC);
`

// NotificationRecord is one row of admin_notifications.
type NotificationRecord struct {
	ID        string
	Category  string
	Source    string
	Message   string
	Details   []string
	CreatedAt time.Time
}

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NotificationStore persists notifications.
type NotificationStore struct {
	q Querier
}

// NewNotificationStore creates a store on q.
func NewNotificationStore(q Querier) *NotificationStore {
	return &NotificationStore{q: q}
}

// Insert stores rec. Inserting an id twice is a no-op.
func (s *NotificationStore) Insert(ctx context.Context, rec NotificationRecord) error {
	details := rec.Details
	if details == nil {
		details = []string{}
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO admin_notifications (id, category, source, message, details, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Category, rec.Source, rec.Message, details, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting notification %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns up to limit notifications, newest first.
func (s *NotificationStore) ListRecent(ctx context.Context, limit int) ([]NotificationRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id::text, category, source, message, details, created_at
		FROM admin_notifications
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (NotificationRecord, error) {
		var rec NotificationRecord
		err := row.Scan(&rec.ID, &rec.Category, &rec.Source, &rec.Message, &rec.Details, &rec.CreatedAt)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning notifications: %w", err)
	}
	return records, nil
}
