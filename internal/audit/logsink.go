package audit

import (
	"context"
	"log/slog"
)

// LogSink writes trade events to the structured log. It backs deployments
// that ship audit data through log collection instead of a database.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a sink over the given logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Append implements Sink.
func (s *LogSink) Append(_ context.Context, event Event) error {
	s.logger.Info("trade event",
		"action", event.Action,
		"shop_id", event.ShopID,
		"item_id", event.ItemID,
		"item_type", event.ItemType,
		"price", event.Price,
		"actor", event.Actor,
	)
	return nil
}
