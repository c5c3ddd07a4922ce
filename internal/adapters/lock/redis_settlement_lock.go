// Package lock provides the distributed per-courier settlement lock.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/geexpress_backend/internal/apperrors"
	"github.com/SscSPs/geexpress_backend/internal/core/ports/services"
	"github.com/SscSPs/geexpress_backend/internal/middleware"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "geexpress:settlement:lock:"
	defaultTTL       = 30 * time.Second
	releaseTimeout   = 5 * time.Second
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Ensure RedisSettlementLock implements services.SettlementLocker
var _ services.SettlementLocker = (*RedisSettlementLock)(nil)

// RedisSettlementLock is a SETNX lock with a TTL, one key per courier.
type RedisSettlementLock struct {
	client    redis.UniversalClient
	ttl       time.Duration
	keyPrefix string
}

// NewRedisSettlementLock wraps an existing client. A non-positive ttl falls back to 30s.
func NewRedisSettlementLock(client redis.UniversalClient, ttl time.Duration) *RedisSettlementLock {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisSettlementLock{client: client, ttl: ttl, keyPrefix: defaultKeyPrefix}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (l *RedisSettlementLock) key(courierID string) string {
	return l.keyPrefix + courierID
}

// Acquire takes the courier's lock. It fails with ErrConflict while another
// settlement of the same courier holds it.
func (l *RedisSettlementLock) Acquire(ctx context.Context, courierID string) (func(), error) {
	key := l.key(courierID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: settlement lock unavailable: %v", apperrors.ErrExternalService, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: a settlement is already in progress for courier %s", apperrors.ErrConflict, courierID)
	}

	logger := middleware.GetLoggerFromCtx(ctx)
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			logger.Warn("Failed to release settlement lock", slog.String("courier_id", courierID), slog.String("error", err.Error()))
		}
	}
	return release, nil
}
