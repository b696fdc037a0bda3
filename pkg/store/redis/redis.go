package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merkledrop-labs/merkledrop-go/pkg/store"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixClaim       = "drop:claim:"
	keySetClaims         = "drop:claims:index"
	keySchemaVersion     = "drop:metadata:schema_version"
	currentSchemaVersion = "v1"
)

const opTimeout = 5 * time.Second

// RedisClaimStore is a claim store backed by Redis, suitable for deployments
// where several hosts serve claims against the same distribution.
//
// The flag write uses SETNX for an atomic check-and-set; because Redis cannot
// run the payout callback inside a server-side transaction, a payout failure
// is rolled back with a compensating delete. A crash between the SETNX and the
// delete leaves a set flag behind and requires operator intervention, which is
// the trade-off of a non-transactional backend.
type RedisClaimStore struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ store.IClaimStore = (*RedisClaimStore)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is an optional custom prefix prepended to all keys, for
	// multi-tenant setups. If empty, keys use the default "drop:" namespace.
	KeyPrefix string
}

// NewRedisClaimStore creates a new Redis-backed claim store.
func NewRedisClaimStore(cfg *RedisConfig, logger *zap.Logger) (*RedisClaimStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rs := &RedisClaimStore{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rs.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis claim store initialized", "address", cfg.Address, "db", cfg.DB)

	return rs, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisClaimStore) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisClaimStore) claimKey(addr common.Address) string {
	return r.prefixKey(keyPrefixClaim + addr.Hex())
}

// initSchema initializes or validates the schema version
func (r *RedisClaimStore) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// Claimed reports whether addr's flag is set.
func (r *RedisClaimStore) Claimed(addr common.Address) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return false, fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.client.Get(ctx, r.claimKey(addr)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to read claim flag for %s", addr.Hex())
	}
	return true, nil
}

// MarkClaimed sets addr's flag with SETNX, runs payout, and deletes the flag
// again if payout fails.
func (r *RedisClaimStore) MarkClaimed(addr common.Address, payout func() error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := r.claimKey(addr)

	set, err := r.client.SetNX(ctx, key, "1", 0).Result()
	if err != nil {
		return errors.Wrapf(err, "failed to write claim flag for %s", addr.Hex())
	}
	if !set {
		return store.ErrAlreadyMarked
	}

	if payout != nil {
		if payoutErr := payout(); payoutErr != nil {
			// Compensating delete so the claim stays retryable
			if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
				r.logger.Sugar().Errorw("Failed to roll back claim flag after payout failure",
					"address", addr.Hex(), "error", delErr)
			}
			return payoutErr
		}
	}

	if err := r.client.SAdd(ctx, r.prefixKey(keySetClaims), addr.Hex()).Err(); err != nil {
		r.logger.Sugar().Warnw("Failed to index claim flag", "address", addr.Hex(), "error", err)
	}

	return nil
}

// ListClaimed returns all flagged addresses from the index set.
func (r *RedisClaimStore) ListClaimed() ([]common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	members, err := r.client.SMembers(ctx, r.prefixKey(keySetClaims)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claim flags")
	}

	result := make([]common.Address, 0, len(members))
	for _, m := range members {
		result = append(result, common.HexToAddress(m))
	}
	return result, nil
}

// Close shuts down the Redis client. Idempotent.
func (r *RedisClaimStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

// HealthCheck pings the Redis server.
func (r *RedisClaimStore) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("claim store is closed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
