package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"placement-pipeline/internal/common/logger"
	"placement-pipeline/internal/common/metrics"
)

// Emitter queues events for asynchronous delivery. Emit never returns an
// error: failures are logged and counted, not propagated, so a committed
// transition stays committed.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// RedisEmitter pushes events onto a Redis list consumed by the dispatcher.
type RedisEmitter struct {
	client *redis.Client
	queue  string
	log    logger.Logger
}

func NewRedisEmitter(client *redis.Client, queue string, log logger.Logger) *RedisEmitter {
	return &RedisEmitter{client: client, queue: queue, log: log}
}

func (e *RedisEmitter) Emit(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.NotificationsDropped.Inc()
		e.log.Error("failed to encode notification event", map[string]interface{}{
			"event_type":     string(ev.EventType),
			"application_id": ev.ApplicationID,
			"error":          err.Error(),
		})
		return
	}

	if err := e.client.LPush(ctx, e.queue, payload).Err(); err != nil {
		metrics.NotificationsDropped.Inc()
		e.log.Warn("failed to queue notification event", map[string]interface{}{
			"event_type":     string(ev.EventType),
			"application_id": ev.ApplicationID,
			"error":          err.Error(),
		})
		return
	}

	metrics.NotificationsEmitted.WithLabelValues(string(ev.EventType)).Inc()
}

// NopEmitter discards every event. Used in tests and when no queue is
// configured.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, ev Event) {}

// CollectingEmitter records events in memory so tests can assert on what
// the engine emitted.
type CollectingEmitter struct {
	Events []Event
}

func (c *CollectingEmitter) Emit(ctx context.Context, ev Event) {
	c.Events = append(c.Events, ev)
}
