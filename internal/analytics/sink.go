package analytics

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Sink records analytics events into a Redis stream. Recording is
// best-effort: failures are logged and never propagated, and a nil Sink
// drops everything, so an unconfigured sink is not an error.
type Sink struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

// New returns a Sink, or nil when no Redis address is configured.
func New(addr, stream string, logger *slog.Logger) *Sink {
	if addr == "" {
		logger.Warn("analytics sink not configured, events will be dropped")
		return nil
	}

	return &Sink{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		stream: stream,
		logger: logger.With("component", "analytics"),
	}
}

func (s *Sink) Record(ctx context.Context, event string, fields map[string]interface{}) {
	if s == nil {
		return
	}

	values := make(map[string]interface{}, len(fields)+1)
	values["event"] = event
	for k, v := range fields {
		values[k] = v
	}

	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: values,
	}).Err(); err != nil {
		s.logger.Warn("failed to record analytics event", "event", event, "error", err)
	}
}

func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
