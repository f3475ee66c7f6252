package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/perkshop-portal/pkg/redis"
)

const defaultStoreTTL = 24 * time.Hour

// Store holds the canonical cart read model shared by every view of a user.
type Store interface {
	Save(ctx context.Context, cart *Cart) error
	Load(ctx context.Context, userID string) (*Cart, bool, error)
}

type redisStore struct {
	kv  redis.KV
	ttl time.Duration
}

// NewRedisStore keeps carts under ps:cart:<user>.
func NewRedisStore(kv redis.KV, ttl time.Duration) (Store, error) {
	if kv == nil {
		return nil, errors.New("redis kv required for cart store")
	}
	if ttl <= 0 {
		ttl = defaultStoreTTL
	}
	return &redisStore{kv: kv, ttl: ttl}, nil
}

func (s *redisStore) Save(ctx context.Context, cart *Cart) error {
	if cart == nil || cart.UserID == "" {
		return errors.New("cart user id required")
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	return s.kv.Set(ctx, redis.CartKey(cart.UserID), payload, s.ttl)
}

func (s *redisStore) Load(ctx context.Context, userID string) (*Cart, bool, error) {
	raw, err := s.kv.Get(ctx, redis.CartKey(userID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var cart Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, false, fmt.Errorf("decode cart: %w", err)
	}
	return &cart, true, nil
}
