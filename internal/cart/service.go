package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/inflight"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
)

// Upstream is the slice of the order-service client the cart needs.
type Upstream interface {
	GetCart(ctx context.Context, actor orderservice.Actor) (*orderservice.Cart, error)
	AddCartItem(ctx context.Context, actor orderservice.Actor, req orderservice.AddCartItemRequest) (*orderservice.Cart, error)
	UpdateCartItem(ctx context.Context, actor orderservice.Actor, productID string, req orderservice.UpdateCartItemRequest) (*orderservice.Cart, error)
	RemoveCartItem(ctx context.Context, actor orderservice.Actor, productID string) (*orderservice.Cart, error)
}

type busyGuard interface {
	Do(ctx context.Context, fn func(context.Context) error, scope string, parts ...string) error
}

// Service exposes cart reads and mutations. The order-service owns the cart;
// every result here is a read model refreshed from its response.
type Service interface {
	Fetch(ctx context.Context, actor orderservice.Actor) (*Cart, error)
	AddOrIncrement(ctx context.Context, actor orderservice.Actor, productID string, qty int) (*Cart, error)
	SetQuantity(ctx context.Context, actor orderservice.Actor, productID string, qty int) (*Cart, error)
	Remove(ctx context.Context, actor orderservice.Actor, productID string) (*Cart, error)
	MarkConsumed(ctx context.Context, userID string)
}

type service struct {
	upstream Upstream
	store    Store
	guard    busyGuard
	logg     *logger.Logger
}

// NewService builds a cart service backed by the order-service and the shared store.
func NewService(upstream Upstream, store Store, guard busyGuard, logg *logger.Logger) (Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("order-service client required")
	}
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if guard == nil {
		return nil, fmt.Errorf("inflight guard required")
	}
	return &service{upstream: upstream, store: store, guard: guard, logg: logg}, nil
}

func (s *service) Fetch(ctx context.Context, actor orderservice.Actor) (*Cart, error) {
	wire, err := s.upstream.GetCart(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, actor.UserID, wire), nil
}

func (s *service) AddOrIncrement(ctx context.Context, actor orderservice.Actor, productID string, qty int) (*Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"field": "quantity", "min": 1})
	}
	return s.mutate(ctx, actor, func(ctx context.Context) (*orderservice.Cart, error) {
		return s.upstream.AddCartItem(ctx, actor, orderservice.AddCartItemRequest{ProductID: productID, Quantity: qty})
	})
}

// SetQuantity never sends a request for a value outside [1, max_quantity_per_user].
func (s *service) SetQuantity(ctx context.Context, actor orderservice.Actor, productID string, qty int) (*Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	if qty < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1; use remove to delete the item").
			WithDetails(map[string]any{"field": "quantity", "min": 1})
	}

	item, err := s.lookupItem(ctx, actor, productID)
	if err != nil {
		return nil, err
	}
	if !item.AllowsQuantity(qty) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-user maximum").
			WithDetails(map[string]any{"field": "quantity", "min": 1, "max": item.MaxQuantityPerUser})
	}

	return s.mutate(ctx, actor, func(ctx context.Context) (*orderservice.Cart, error) {
		return s.upstream.UpdateCartItem(ctx, actor, productID, orderservice.UpdateCartItemRequest{Quantity: qty})
	})
}

func (s *service) Remove(ctx context.Context, actor orderservice.Actor, productID string) (*Cart, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	return s.mutate(ctx, actor, func(ctx context.Context) (*orderservice.Cart, error) {
		return s.upstream.RemoveCartItem(ctx, actor, productID)
	})
}

// MarkConsumed records the empty cart left behind by a successful checkout.
func (s *service) MarkConsumed(ctx context.Context, userID string) {
	s.commit(ctx, userID, nil)
}

func (s *service) mutate(ctx context.Context, actor orderservice.Actor, call func(context.Context) (*orderservice.Cart, error)) (*Cart, error) {
	var out *Cart
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		wire, err := call(ctx)
		if err != nil {
			return err
		}
		out = s.commit(ctx, actor.UserID, wire)
		return nil
	}, inflight.ScopeCart, actor.UserID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// lookupItem prefers the shared read model and refreshes it when the line is unknown.
func (s *service) lookupItem(ctx context.Context, actor orderservice.Actor, productID string) (Item, error) {
	if cached, ok, err := s.store.Load(ctx, actor.UserID); err == nil && ok {
		if item, found := cached.Find(productID); found {
			return item, nil
		}
	} else if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart store read failed")
	}

	fresh, err := s.Fetch(ctx, actor)
	if err != nil {
		return Item{}, err
	}
	item, found := fresh.Find(productID)
	if !found {
		return Item{}, pkgerrors.New(pkgerrors.CodeNotFound, "product not in cart").
			WithDetails(map[string]any{"product_id": productID})
	}
	return item, nil
}

// commit writes the response to the canonical store even if the caller already went away.
func (s *service) commit(ctx context.Context, userID string, wire *orderservice.Cart) *Cart {
	cart := FromWire(userID, wire)
	if err := s.store.Save(context.WithoutCancel(ctx), cart); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, cart.UserID), "cart store commit failed", err)
	}
	return cart
}
