package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventIDHeader carries the gateway's delivery-independent event id.
const EventIDHeader = "X-Razorpay-Event-Id"

// EventDeduper remembers webhook event ids that were already handled.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type redisEventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisEventDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+":"+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *redisEventDeduper) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, d.prefix+":"+eventID, "1", d.ttl).Err()
}

type memoryEventDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
	now    func() time.Time
}

func newMemoryEventDeduper(ttl time.Duration) *memoryEventDeduper {
	now := time.Now()
	return &memoryEventDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
		now:    time.Now,
	}
}

func (d *memoryEventDeduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	exp, ok := d.seen[eventID]
	return ok && exp.After(d.now()), nil
}

func (d *memoryEventDeduper) Mark(_ context.Context, eventID string) error {
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.seen[eventID] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for id, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, id)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}
	return nil
}

// NewEventDeduper builds a Redis deduper and falls back to in-memory on failure.
func NewEventDeduper(addr, pass string, db int, ttl time.Duration) (EventDeduper, error) {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	if addr == "" {
		return newMemoryEventDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return newMemoryEventDeduper(ttl), err
	}

	return &redisEventDeduper{
		client: client,
		prefix: "paysync:webhook",
		ttl:    ttl,
	}, nil
}

// WebhookEventDedup short-circuits deliveries whose event id was already
// handled successfully. An id is remembered only after the handler answers
// 2xx, so failed deliveries are retried in full. The per-entity marker in
// the database stays authoritative; this only spares it repeat work.
func WebhookEventDedup(deduper EventDeduper, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if deduper == nil {
				return next(c)
			}
			eventID := c.Request().Header.Get(EventIDHeader)
			if eventID == "" {
				return next(c)
			}

			ctx := c.Request().Context()
			seen, err := deduper.Seen(ctx, eventID)
			if err != nil {
				logger.Warn("webhook dedup lookup failed", zap.String("event_id", eventID), zap.Error(err))
				return next(c)
			}
			if seen {
				return c.JSON(http.StatusOK, map[string]interface{}{
					"status": true,
					"msg":    "duplicate",
					"obj":    nil,
				})
			}

			if err := next(c); err != nil {
				return err
			}
			if status := c.Response().Status; status >= 200 && status < 300 {
				if err := deduper.Mark(ctx, eventID); err != nil {
					logger.Warn("webhook dedup mark failed", zap.String("event_id", eventID), zap.Error(err))
				}
			}
			return nil
		}
	}
}
