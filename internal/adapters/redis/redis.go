// Package redis coordinates rectify runs across processes: a per-zone lock
// so two runs never write the same zone concurrently, and an invalidation
// message once a run has committed.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/poyrazK/zonekeeper/internal/core/domain"
	"github.com/poyrazK/zonekeeper/internal/core/ports"
)

// InvalidationChannel is shared with the caching front-ends.
const InvalidationChannel = "dns:invalidation"

const lockPrefix = "zonekeeper:lock:"

// releaseScript deletes the lock only while it still holds our token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Coordinator implements ports.ZoneLocker and ports.ChangeNotifier.
type Coordinator struct {
	client  *goredis.Client
	lockTTL time.Duration
	retry   time.Duration
	logger  *slog.Logger
}

var (
	_ ports.ZoneLocker     = (*Coordinator)(nil)
	_ ports.ChangeNotifier = (*Coordinator)(nil)
)

func NewCoordinator(addr string, password string, db int, lockTTL time.Duration, logger *slog.Logger) *Coordinator {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{client: rdb, lockTTL: lockTTL, retry: 100 * time.Millisecond, logger: logger}
}

// Lock blocks until the zone lock is acquired or ctx is done. The lock
// expires after the configured TTL if its holder dies.
func (c *Coordinator) Lock(ctx context.Context, zone domain.Name) (func(), error) {
	key := lockPrefix + string(zone)
	token := uuid.New().String()

	for {
		ok, err := c.client.SetNX(ctx, key, token, c.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", zone, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", zone, ctx.Err())
		case <-time.After(c.retry):
		}
	}

	return func() {
		// The run's context may already be cancelled; release regardless.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, c.client, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			c.logger.Error("failed to release zone lock", "zone", zone, "error", err)
		}
	}, nil
}

// ZoneRectified publishes "<zone>:*" so caches drop every entry of the zone.
func (c *Coordinator) ZoneRectified(ctx context.Context, zone domain.Name) error {
	msg := fmt.Sprintf("%s:*", zone)
	return c.client.Publish(ctx, InvalidationChannel, msg).Err()
}

// subscribe listens on the invalidation channel. The subscription is
// confirmed before it is returned.
func (c *Coordinator) subscribe(ctx context.Context) (*goredis.PubSub, error) {
	pubsub := c.client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	return pubsub, nil
}

// WatchInvalidations hands the zone of every invalidation message to each
// until ctx is done or each returns false. Payloads that are not "<zone>:*"
// are logged and skipped.
func (c *Coordinator) WatchInvalidations(ctx context.Context, each func(zone domain.Name) bool) error {
	pubsub, err := c.subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", InvalidationChannel, err)
	}
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("invalidation subscription closed")
			}
			zone, found := strings.CutSuffix(msg.Payload, ":*")
			if !found || zone == "" {
				c.logger.Warn("ignoring invalidation message", "payload", msg.Payload)
				continue
			}
			if !each(domain.Name(zone)) {
				return nil
			}
		}
	}
}

func (c *Coordinator) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Coordinator) Close() error {
	return c.client.Close()
}
