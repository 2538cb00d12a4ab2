// Package heartbeat publishes the dispatcher's status summary to Redis so
// external monitors can watch queue health without touching the database.
// Publishing is optional and best-effort: a missing or unreachable Redis
// degrades to a log line, never a failed dispatch pass.
package heartbeat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/mrz1836/go-cache"
	"github.com/rs/zerolog"

	"github.com/quarryworks/foreman/internal/domain"
	foremanerrors "github.com/quarryworks/foreman/internal/errors"
)

// Publisher pushes status summaries to an external channel.
type Publisher interface {
	Publish(ctx context.Context, summary domain.StatusSummary) error
	Close() error
}

// RedisPublisher writes the summary as JSON under a single key with a TTL,
// so a crashed dispatcher's heartbeat disappears on its own.
type RedisPublisher struct {
	client *cache.Client
	key    string
	ttl    time.Duration
	logger zerolog.Logger
}

// Ensure RedisPublisher implements Publisher.
var _ Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis at url (redis://host:port) and returns
// a publisher writing under key with the given ttl.
func NewRedisPublisher(ctx context.Context, url, key string, ttl time.Duration, logger zerolog.Logger) (*RedisPublisher, error) {
	if url == "" {
		return nil, foremanerrors.Wrap(foremanerrors.ErrEmptyValue, "redis url")
	}
	if key == "" {
		return nil, foremanerrors.Wrap(foremanerrors.ErrEmptyValue, "heartbeat key")
	}

	client, err := cache.Connect(ctx, url, 0, 10, 0, 240*time.Second, true, false)
	if err != nil {
		return nil, foremanerrors.Wrapf(err, "failed to connect to redis at %s", url)
	}

	// Fail fast on a bad URL instead of surfacing it on the first pass.
	conn, err := client.GetConnectionWithContext(ctx)
	if err != nil {
		client.Close()
		return nil, foremanerrors.Wrap(err, "failed to get redis connection")
	}
	defer func() { _ = conn.Close() }()
	if _, err := redis.DoContext(conn, ctx, "PING"); err != nil {
		client.Close()
		return nil, foremanerrors.Wrapf(err, "failed to ping redis at %s", url)
	}

	return &RedisPublisher{client: client, key: key, ttl: ttl, logger: logger}, nil
}

// Publish writes the summary. The TTL keeps a dead dispatcher from leaving a
// stale green heartbeat behind.
func (p *RedisPublisher) Publish(ctx context.Context, summary domain.StatusSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return foremanerrors.Wrap(err, "failed to encode heartbeat")
	}

	conn, err := p.client.GetConnectionWithContext(ctx)
	if err != nil {
		return foremanerrors.Wrap(err, "failed to get redis connection")
	}
	defer func() { _ = conn.Close() }()

	if err := cache.SetExpRaw(conn, p.key, string(payload), p.ttl); err != nil {
		return foremanerrors.Wrapf(err, "failed to write heartbeat key %s", p.key)
	}

	p.logger.Debug().
		Str("key", p.key).
		Int("total_tasks", summary.Total()).
		Msg("heartbeat published")
	return nil
}

// Close releases the connection pool.
func (p *RedisPublisher) Close() error {
	p.client.Close()
	return nil
}
