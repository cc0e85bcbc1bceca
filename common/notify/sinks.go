package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LexiconIndonesia/crawler-admin-service/common"
	"github.com/LexiconIndonesia/crawler-admin-service/common/db"
	"github.com/LexiconIndonesia/crawler-admin-service/common/messaging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes notifications to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, n Notification) error {
	var ev *zerolog.Event
	switch n.Category {
	case CategoryError:
		ev = s.logger.Error()
	case CategoryWarning:
		ev = s.logger.Warn()
	default:
		ev = s.logger.Info()
	}
	ev.Str("id", n.ID).
		Str("category", string(n.Category)).
		Str("source", n.Source).
		Strs("details", n.Details).
		Msg(n.Message)
	return nil
}

// NatsSink publishes notifications as JSON on <prefix>.<category>.
type NatsSink struct {
	publisher messaging.Publisher
	prefix    string
}

func NewNatsSink(publisher messaging.Publisher, prefix string) *NatsSink {
	if prefix == "" {
		prefix = common.NotificationSubjectPrefix
	}
	return &NatsSink{publisher: publisher, prefix: prefix}
}

func (s *NatsSink) Name() string { return "nats" }

// Subject returns the subject n is published on.
func (s *NatsSink) Subject(n Notification) string {
	return fmt.Sprintf("%s.%s", s.prefix, n.Category)
}

func (s *NatsSink) Deliver(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}
	return s.publisher.PublishSync(ctx, s.Subject(n), data)
}

// RecordWriter is the write side of db.NotificationStore.
type RecordWriter interface {
	Insert(ctx context.Context, rec db.NotificationRecord) error
}

// StoreSink keeps notification history in PostgreSQL.
type StoreSink struct {
	store RecordWriter
}

func NewStoreSink(store RecordWriter) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string { return "postgres" }

func (s *StoreSink) Deliver(ctx context.Context, n Notification) error {
	return s.store.Insert(ctx, ToRecord(n))
}

// ToRecord converts n to its table row.
func ToRecord(n Notification) db.NotificationRecord {
	return db.NotificationRecord{
		ID:        n.ID,
		Category:  string(n.Category),
		Source:    n.Source,
		Message:   n.Message,
		Details:   n.Details,
		CreatedAt: n.CreatedAt,
	}
}

// FromRecord converts a table row back to a notification.
func FromRecord(rec db.NotificationRecord) Notification {
	return Notification{
		ID:        rec.ID,
		Category:  Category(rec.Category),
		Source:    rec.Source,
		Message:   rec.Message,
		Details:   rec.Details,
		CreatedAt: rec.CreatedAt,
	}
}

// DefaultLogSink logs through the global logger with a component field.
func DefaultLogSink() *LogSink {
	return NewLogSink(log.With().Str("component", "notify").Logger())
}
