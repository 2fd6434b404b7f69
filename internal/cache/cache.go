package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tourbook/internal/model"
)

const (
	eventsKey         = "tourbook:events:all"
	idempotencyPrefix = "tourbook:idempotency:"

	DefaultEventsTTL      = time.Minute
	DefaultIdempotencyTTL = 24 * time.Hour
)

// Cache holds the public event listing and the idempotency keys of payment submissions.
type Cache interface {
	GetEvents(ctx context.Context) ([]model.Event, bool)
	SetEvents(ctx context.Context, events []model.Event)
	InvalidateEvents(ctx context.Context)
	// Claim records key and reports whether this call was the first to do so.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string)
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string
	Password       string
	DB             int
	EventsTTL      time.Duration
	IdempotencyTTL time.Duration
}

type redisCache struct {
	client         *redis.Client
	log            *zerolog.Logger
	eventsTTL      time.Duration
	idempotencyTTL time.Duration
}

// New returns a redis backed cache, or a pass-through one when no address is configured.
func New(cfg Config, log *zerolog.Logger) Cache {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if cfg.Addr == "" {
		log.Warn().Msg("redis address is not configured, caching and duplicate submission checks are disabled")
		return Noop{}
	}
	return NewRedis(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg, log)
}

func NewRedis(client *redis.Client, cfg Config, log *zerolog.Logger) Cache {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if cfg.EventsTTL <= 0 {
		cfg.EventsTTL = DefaultEventsTTL
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}
	return &redisCache{
		client:         client,
		log:            log,
		eventsTTL:      cfg.EventsTTL,
		idempotencyTTL: cfg.IdempotencyTTL,
	}
}

func (c *redisCache) GetEvents(ctx context.Context) ([]model.Event, bool) {
	data, err := c.client.Get(ctx, eventsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Msg("failed to read events from cache")
		}
		return nil, false
	}

	var events []model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		c.log.Warn().Err(err).Msg("dropping undecodable events cache entry")
		c.InvalidateEvents(ctx)
		return nil, false
	}
	return events, true
}

func (c *redisCache) SetEvents(ctx context.Context, events []model.Event) {
	data, err := json.Marshal(events)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to encode events for cache")
		return
	}
	if err := c.client.Set(ctx, eventsKey, data, c.eventsTTL).Err(); err != nil {
		c.log.Warn().Err(err).Msg("failed to write events to cache")
	}
}

func (c *redisCache) InvalidateEvents(ctx context.Context) {
	if err := c.client.Del(ctx, eventsKey).Err(); err != nil {
		c.log.Warn().Err(err).Msg("failed to invalidate events cache")
	}
}

func (c *redisCache) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.client.SetNX(ctx, idempotencyPrefix+key, time.Now().Unix(), c.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (c *redisCache) Release(ctx context.Context, key string) {
	if err := c.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
	}
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Noop never caches and lets every submission through.
type Noop struct{}

func (Noop) GetEvents(context.Context) ([]model.Event, bool) { return nil, false }
func (Noop) SetEvents(context.Context, []model.Event) {}
func (Noop) InvalidateEvents(context.Context) {}
func (Noop) Claim(context.Context, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) {}
func (Noop) Ping(context.Context) error { return nil }
