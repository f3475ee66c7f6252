package inflight

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/redis"
	"github.com/google/uuid"
)

const (
	defaultTTL = 30 * time.Second

	ScopeCart   = "cart"
	ScopeOrder  = "order"
	ScopeHRSync = "hrsync"
)

// store defines the redis operations used by Guard.
type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
}

// Guard keeps at most one outstanding request per target entity.
// Each busy flag carries a TTL so a crashed holder cannot wedge the entity.
type Guard struct {
	store store
	ttl   time.Duration
}

// Lease is a held busy flag. Release is safe to call more than once.
type Lease struct {
	store store
	key   string
	owner string
}

// NewGuard constructs a Redis-backed guard.
func NewGuard(s store, ttl time.Duration) (*Guard, error) {
	if s == nil {
		return nil, errors.New("redis store required for inflight guard")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Guard{store: s, ttl: ttl}, nil
}

// Acquire marks scope/parts as busy. A held flag yields a CONFLICT error.
func (g *Guard) Acquire(ctx context.Context, scope string, parts ...string) (*Lease, error) {
	key := redis.InflightKey(scope, parts...)
	owner := uuid.NewString()
	ok, err := g.store.SetNX(ctx, key, owner, g.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire inflight guard")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "request already in flight").
			WithDetails(map[string]any{"scope": scope})
	}
	return &Lease{store: g.store, key: key, owner: owner}, nil
}

// Do runs fn while holding the guard for scope/parts.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error, scope string, parts ...string) error {
	lease, err := g.Acquire(ctx, scope, parts...)
	if err != nil {
		return err
	}
	defer lease.Release(ctx)
	return fn(ctx)
}

// Release frees the flag only if the owner value still matches. The check and
// the delete run as one redis script so an expired lease cannot drop a flag
// that another caller has since acquired.
// It ignores cancellation of ctx so a dropped caller still clears its flag.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.owner == "" {
		return nil
	}
	if _, err := l.store.CompareAndDelete(context.WithoutCancel(ctx), l.key, l.owner); err != nil {
		return fmt.Errorf("release inflight flag: %w", err)
	}
	l.owner = ""
	return nil
}
