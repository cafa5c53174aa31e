package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/consentgate/internal/kv"
)

// Store persists visitor consent records in Redis.
// Values are written without TTL: a decision lives until overwritten.
type Store struct {
	client redis.Cmdable
}

// NewStore creates a new Redis store
func NewStore(client redis.Cmdable) *Store {
	return &Store{
		client: client,
	}
}

// Scope returns the store view for a single visitor
func (s *Store) Scope(visitorID string) kv.Store {
	return &visitorStore{store: s, visitorID: visitorID}
}

// CountVisitors returns the number of visitors that have written a key
func (s *Store) CountVisitors(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, AllVisitorsKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count visitors: %w", err)
	}
	return n, nil
}

type visitorStore struct {
	store     *Store
	visitorID string
}

// Get retrieves a visitor key; redis.Nil is reported as not found
func (v *visitorStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := v.store.client.Get(ctx, VisitorKey(v.visitorID, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores a visitor key and registers the visitor
func (v *visitorStore) Set(ctx context.Context, key, value string) error {
	pipe := v.store.client.TxPipeline()
	pipe.Set(ctx, VisitorKey(v.visitorID, key), value, 0)
	pipe.SAdd(ctx, AllVisitorsKey(), v.visitorID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
