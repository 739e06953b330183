package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authgate/internal/organization/models"
)

const resolutionKeyPrefix = "authres:cred:"

// Redis is a Redis-backed ResolutionCache for deployments where multiple
// instances should share resolution state. TTL expiry is delegated to Redis;
// capacity is whatever the Redis deployment enforces (maxmemory + LRU policy).
//
// Credentials are secrets, so the Redis key is a SHA-256 digest of the
// credential rather than the raw string. Digest equality preserves the
// exact-credential keying contract.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis-backed resolution cache.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func resolutionKey(credential string) string {
	sum := sha256.Sum256([]byte(credential))
	return resolutionKeyPrefix + hex.EncodeToString(sum[:])
}

func (r *Redis) Get(ctx context.Context, credential string) (*models.Organization, bool, error) {
	payload, err := r.client.Get(ctx, resolutionKey(credential)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolution cache get: %w", err)
	}
	var org models.Organization
	if err := json.Unmarshal(payload, &org); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		_ = r.client.Del(ctx, resolutionKey(credential)).Err()
		return nil, false, nil
	}
	return &org, true, nil
}

func (r *Redis) Put(ctx context.Context, credential string, org *models.Organization, ttl time.Duration) error {
	payload, err := json.Marshal(org)
	if err != nil {
		return fmt.Errorf("resolution cache encode: %w", err)
	}
	return r.client.Set(ctx, resolutionKey(credential), payload, ttl).Err()
}

func (r *Redis) Bust(ctx context.Context, credential string) error {
	return r.client.Del(ctx, resolutionKey(credential)).Err()
}
