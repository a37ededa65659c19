package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/gitter-badger/ashaw-notes/internal/feed"
	"github.com/gitter-badger/ashaw-notes/pkg/kafka"
	"github.com/gitter-badger/ashaw-notes/pkg/metrics"
	"github.com/gitter-badger/ashaw-notes/pkg/resilience"
)

// EventRecorder persists a single feed event.
type EventRecorder interface {
	Record(ctx context.Context, event feed.Event) error
}

// HandleEvent returns the Kafka message handler that archives feed events.
// Undecodable messages are logged and committed so a poison message cannot
// wedge the consumer group; storage failures are retried and then surfaced,
// leaving the message uncommitted for redelivery. Each record attempt is
// bounded by recordTimeout so a hung database write cannot stall the
// consumer loop indefinitely (zero means unbounded).
func HandleEvent(recorder EventRecorder, m *metrics.Metrics, retryCfg resilience.RetryConfig, recordTimeout time.Duration) kafka.MessageHandler {
	logger := slog.Default().With("component", "archive-consumer")
	return func(ctx context.Context, key, value []byte) error {
		event, err := kafka.DecodeJSON[feed.Event](value)
		if err != nil {
			logger.Warn("skipping undecodable event", "key", string(key), "error", err)
			return nil
		}
		if err := resilience.Retry(ctx, "archive-record", retryCfg, func() error {
			return resilience.WithTimeout(ctx, recordTimeout, "archive-record", func(ctx context.Context) error {
				return recorder.Record(ctx, event)
			})
		}); err != nil {
			return err
		}
		m.ArchiveEventsTotal.WithLabelValues(string(event.Type)).Inc()
		logger.Debug("event archived", "type", event.Type, "note_ts", event.Timestamp)
		return nil
	}
}
