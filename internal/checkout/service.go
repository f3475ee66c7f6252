package checkout

import (
	"context"
	"fmt"

	"github.com/angelmondragon/perkshop-portal/internal/budget"
	"github.com/angelmondragon/perkshop-portal/internal/cart"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/internal/pricedrift"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/inflight"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, actor orderservice.Actor, req orderservice.CreateOrderRequest) (*orderservice.Order, error)
}

type busyGuard interface {
	Do(ctx context.Context, fn func(context.Context) error, scope string, parts ...string) error
}

// Service gates the conversion of a cart into an order.
type Service interface {
	Summary(ctx context.Context, actor orderservice.Actor) (*Summary, error)
	Execute(ctx context.Context, input Input) (*orderservice.Order, error)
}

// Input captures the checkout request. PriceDriftToken is the drift token the
// caller was shown and agreed to; it is empty when nothing was confirmed.
type Input struct {
	Actor           orderservice.Actor
	PriceDriftToken string
}

// Summary is what the cart view renders: aggregates, budget and drift.
type Summary struct {
	Cart                *cart.Cart        `json:"cart"`
	ItemCount           int               `json:"item_count"`
	TotalAtAdd          int64             `json:"total_at_add"`
	TotalCurrent        int64             `json:"total_current"`
	HasPriceChanges     bool              `json:"has_price_changes"`
	HasUnavailableItems bool              `json:"has_unavailable_items"`
	Budget              *budget.Figure    `json:"budget,omitempty"`
	BudgetExceeded      bool              `json:"budget_exceeded"`
	Drift               pricedrift.Report `json:"price_drift"`
	CanCheckout         bool              `json:"can_checkout"`
}

type service struct {
	carts   cart.Service
	budgets budget.Store
	orders  orderCreator
	guard   busyGuard
	logg    *logger.Logger
}

// NewService wires the checkout gate.
func NewService(carts cart.Service, budgets budget.Store, orders orderCreator, guard busyGuard, logg *logger.Logger) (Service, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if budgets == nil {
		return nil, fmt.Errorf("budget store required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order creator required")
	}
	if guard == nil {
		return nil, fmt.Errorf("inflight guard required")
	}
	return &service{carts: carts, budgets: budgets, orders: orders, guard: guard, logg: logg}, nil
}

func (s *service) Summary(ctx context.Context, actor orderservice.Actor) (*Summary, error) {
	c, err := s.carts.Fetch(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, actor, c), nil
}

// Execute runs the advisory gates in order (availability, drift, budget) and
// only then asks the order-service to create the order.
func (s *service) Execute(ctx context.Context, input Input) (*orderservice.Order, error) {
	var order *orderservice.Order
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		c, err := s.carts.Fetch(ctx, input.Actor)
		if err != nil {
			return err
		}
		summary := s.summarize(ctx, input.Actor, c)

		if c.IsEmpty() {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		if summary.HasUnavailableItems {
			return pkgerrors.New(pkgerrors.CodeItemsUnavailable, "remove unavailable items before checkout").
				WithDetails(map[string]any{"product_ids": unavailableIDs(c)})
		}
		if err := pricedrift.Gate(summary.Drift, input.PriceDriftToken); err != nil {
			return err
		}
		if summary.BudgetExceeded {
			return pkgerrors.New(pkgerrors.CodeBudgetExceeded, "cart total exceeds available budget").
				WithDetails(map[string]any{
					"total_current":          summary.TotalCurrent,
					"available_budget_cents": summary.Budget.AvailableBudgetCents,
				})
		}

		created, err := s.orders.CreateOrder(ctx, input.Actor, orderservice.CreateOrderRequest{
			AcceptPriceChanges: summary.Drift.HasChanges(),
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeBudgetExceeded) {
				s.invalidateBudget(ctx, input.Actor.UserID)
			}
			return err
		}

		s.carts.MarkConsumed(ctx, input.Actor.UserID)
		s.invalidateBudget(ctx, input.Actor.UserID)
		order = created
		return nil
	}, inflight.ScopeCart, input.Actor.UserID)
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		lctx := s.logg.WithOrderID(s.logg.WithUserID(ctx, input.Actor.UserID), order.ID)
		s.logg.Info(lctx, "checkout completed")
	}
	return order, nil
}

// summarize never fails on the budget: the figure is advisory and the
// order-service re-validates at creation.
func (s *service) summarize(ctx context.Context, actor orderservice.Actor, c *cart.Cart) *Summary {
	summary := &Summary{
		Cart:                c,
		ItemCount:           c.ItemCount(),
		TotalAtAdd:          c.TotalAtAdd(),
		TotalCurrent:        c.TotalCurrent(),
		HasPriceChanges:     c.HasPriceChanges(),
		HasUnavailableItems: c.HasUnavailableItems(),
		Drift:               pricedrift.Detect(c),
	}

	fig, err := s.budgets.Get(ctx, actor)
	switch {
	case err != nil:
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "budget unavailable for checkout gate")
		}
	default:
		summary.Budget = fig
		summary.BudgetExceeded = budget.Exceeds(c, fig.AvailableBudgetCents)
	}

	summary.CanCheckout = !c.IsEmpty() && !summary.HasUnavailableItems && !summary.BudgetExceeded
	return summary
}

func (s *service) invalidateBudget(ctx context.Context, userID string) {
	if err := s.budgets.Invalidate(ctx, userID); err != nil && s.logg != nil {
		s.logg.Error(s.logg.WithUserID(ctx, userID), "budget invalidation failed", err)
	}
}

func unavailableIDs(c *cart.Cart) []string {
	ids := []string{}
	for _, item := range c.Items {
		if !item.ProductActive {
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}
