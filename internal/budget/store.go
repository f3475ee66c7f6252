package budget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const (
	defaultCacheTTL = 30 * time.Second
	// figureRetention keeps a figure around as a stale fallback long after it stops
	// being fresh, without leaving keys for departed users forever.
	figureRetention = 24 * time.Hour
)

// Figure is the shared per-user budget read by every view.
type Figure struct {
	UserID               string    `json:"user_id"`
	TotalBudgetCents     int64     `json:"total_budget_cents"`
	AvailableBudgetCents int64     `json:"available_budget_cents"`
	FetchedAt            time.Time `json:"fetched_at"`
	Stale                bool      `json:"stale,omitempty"`
}

// Upstream fetches the authoritative figure.
type Upstream interface {
	GetBudget(ctx context.Context, actor orderservice.Actor) (*orderservice.Budget, error)
}

// Store is the process-wide, explicitly invalidated budget cache keyed by user.
type Store interface {
	Get(ctx context.Context, actor orderservice.Actor) (*Figure, error)
	Refresh(ctx context.Context, actor orderservice.Actor) (*Figure, error)
	Invalidate(ctx context.Context, userID string) error
}

type store struct {
	upstream Upstream
	kv       redis.KV
	ttl      time.Duration
	group    singleflight.Group
	logg     *logger.Logger
	now      func() time.Time
}

// NewStore builds the Redis-backed budget cache.
func NewStore(upstream Upstream, kv redis.KV, ttl time.Duration, logg *logger.Logger) (Store, error) {
	if upstream == nil {
		return nil, errors.New("order-service client required")
	}
	if kv == nil {
		return nil, errors.New("redis kv required for budget store")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &store{upstream: upstream, kv: kv, ttl: ttl, logg: logg, now: time.Now}, nil
}

// Get serves the cached figure and refreshes on a miss.
func (s *store) Get(ctx context.Context, actor orderservice.Actor) (*Figure, error) {
	if fig, ok := s.cached(ctx, actor.UserID); ok && s.now().Sub(fig.FetchedAt) < s.ttl {
		return fig, nil
	}
	return s.Refresh(ctx, actor)
}

// Refresh collapses concurrent refreshes for one user into a single upstream call.
// When the call fails and a previous figure exists, that figure is returned marked stale.
func (s *store) Refresh(ctx context.Context, actor orderservice.Actor) (*Figure, error) {
	v, err, _ := s.group.Do(actor.UserID, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), actor)
	})
	if err == nil {
		fig := *(v.(*Figure))
		return &fig, nil
	}

	prev, ok := s.cached(ctx, actor.UserID)
	if !ok {
		return nil, err
	}
	if s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{"user_id": actor.UserID, "error": err.Error()})
		s.logg.Warn(lctx, "budget refresh failed; serving stale figure")
	}
	prev.Stale = true
	return prev, nil
}

// Invalidate drops the cached figure so the next read goes upstream.
func (s *store) Invalidate(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if err := s.kv.Del(context.WithoutCancel(ctx), redis.BudgetKey(userID)); err != nil {
		return fmt.Errorf("invalidate budget: %w", err)
	}
	return nil
}

func (s *store) fetch(ctx context.Context, actor orderservice.Actor) (*Figure, error) {
	wire, err := s.upstream.GetBudget(ctx, actor)
	if err != nil {
		return nil, err
	}
	fig := &Figure{
		UserID:               actor.UserID,
		TotalBudgetCents:     wire.TotalBudgetCents,
		AvailableBudgetCents: wire.AvailableBudgetCents,
		FetchedAt:            s.now().UTC(),
	}
	payload, err := json.Marshal(fig)
	if err != nil {
		return nil, fmt.Errorf("encode budget: %w", err)
	}
	// Freshness is judged by FetchedAt; the key outlives it so a failed refresh can fall back.
	if err := s.kv.Set(ctx, redis.BudgetKey(actor.UserID), payload, figureRetention); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, actor.UserID), "budget cache write failed", err)
	}
	return fig, nil
}

func (s *store) cached(ctx context.Context, userID string) (*Figure, bool) {
	raw, err := s.kv.Get(ctx, redis.BudgetKey(userID))
	if err != nil {
		if !redis.IsNil(err) && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "budget cache read failed")
		}
		return nil, false
	}
	var fig Figure
	if err := json.Unmarshal([]byte(raw), &fig); err != nil {
		return nil, false
	}
	return &fig, true
}
