package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts through a key-value interface.
type Store interface {
	Get(ctx context.Context, id string) (*Cart, bool, error)
	Set(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps carts as JSON documents with a sliding TTL.
type RedisStore struct {
	Client *redis.Client
	TTL    time.Duration
	Prefix string
}

func (s *RedisStore) key(id string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = "cart"
	}
	return prefix + ":" + id
}

func (s *RedisStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (*Cart, bool, error) {
	data, err := s.Client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load cart %s: %w", id, err)
	}
	var cart Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, false, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return &cart, true, nil
}

// Set implements Store. Every write refreshes the TTL.
func (s *RedisStore) Set(ctx context.Context, cart *Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", cart.ID, err)
	}
	if err := s.Client.Set(ctx, s.key(cart.ID), data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("store cart %s: %w", cart.ID, err)
	}
	return nil
}

// Delete implements Store. Deleting a missing cart is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.Client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete cart %s: %w", id, err)
	}
	return nil
}
