package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/inflight"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/metrics"
	"github.com/angelmondragon/perkshop-portal/pkg/pagination"
)

// Upstream is the slice of the order-service client used for orders.
type Upstream interface {
	ListOrders(ctx context.Context, actor orderservice.Actor, params orderservice.ListOrdersParams) (*orderservice.OrderList, error)
	GetOrder(ctx context.Context, actor orderservice.Actor, orderID string) (*orderservice.Order, error)
	UpdateOrderStatus(ctx context.Context, actor orderservice.Actor, orderID string, update orderservice.StatusUpdate) (*orderservice.Order, error)
	UpdateOrderItem(ctx context.Context, actor orderservice.Actor, orderID, itemID string, update orderservice.ItemUpdate) (*orderservice.Order, error)
}

// AuditSink receives one record per successful transition.
type AuditSink interface {
	Record(ctx context.Context, record TransitionRecord) error
}

// BudgetInvalidator drops the shared budget figure of a user.
type BudgetInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type busyGuard interface {
	Do(ctx context.Context, fn func(context.Context) error, scope string, parts ...string) error
}

// TransitionRecord carries who moved which order, when and why.
type TransitionRecord struct {
	OrderID          string            `json:"order_id"`
	OwnerID          string            `json:"owner_id"`
	Action           enums.OrderAction `json:"action"`
	From             enums.OrderStatus `json:"from"`
	To               enums.OrderStatus `json:"to"`
	ActorID          string            `json:"actor_id"`
	ActorRole        enums.Role        `json:"actor_role"`
	Note             string            `json:"note,omitempty"`
	Reason           string            `json:"reason,omitempty"`
	ExpectedDelivery string            `json:"expected_delivery,omitempty"`
	OccurredAt       time.Time         `json:"occurred_at"`
}

// OrderView is an order plus the actions the caller may take on it.
type OrderView struct {
	orderservice.Order
	AvailableActions []enums.OrderAction `json:"available_actions"`
}

// ListInput filters a list call.
type ListInput struct {
	Actor  orderservice.Actor
	Status *enums.OrderStatus
	Page   pagination.Params
}

// TransitionInput is a requested status change.
type TransitionInput struct {
	Actor   orderservice.Actor
	OrderID string
	Action  enums.OrderAction
	Fields  Fields
}

// Service exposes the order lifecycle to controllers.
type Service interface {
	List(ctx context.Context, input ListInput) (*pagination.Page[OrderView], error)
	Get(ctx context.Context, actor orderservice.Actor, orderID string) (*OrderView, error)
	Transition(ctx context.Context, input TransitionInput) (*OrderView, error)
	ToggleVendorOrdered(ctx context.Context, actor orderservice.Actor, orderID, itemID string, value bool) (*OrderView, error)
}

type service struct {
	upstream Upstream
	audit    AuditSink
	budgets  BudgetInvalidator
	guard    busyGuard
	policy   Policy
	metrics  *metrics.PortalMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order lifecycle service.
func NewService(upstream Upstream, audit AuditSink, budgets BudgetInvalidator, guard busyGuard, policy Policy, m *metrics.PortalMetrics, logg *logger.Logger) (Service, error) {
	if upstream == nil {
		return nil, fmt.Errorf("order-service client required")
	}
	if audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if budgets == nil {
		return nil, fmt.Errorf("budget invalidator required")
	}
	if guard == nil {
		return nil, fmt.Errorf("inflight guard required")
	}
	return &service{
		upstream: upstream,
		audit:    audit,
		budgets:  budgets,
		guard:    guard,
		policy:   policy,
		metrics:  m,
		logg:     logg,
		now:      time.Now,
	}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*pagination.Page[OrderView], error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	list, err := s.upstream.ListOrders(ctx, input.Actor, orderservice.ListOrdersParams{
		Status: input.Status,
		Page:   input.Page.Normalize(),
	})
	if err != nil {
		return nil, err
	}

	page := &pagination.Page[OrderView]{
		Items:   make([]OrderView, 0, len(list.Items)),
		Total:   list.Total,
		Page:    list.Page,
		PerPage: list.PerPage,
	}
	for _, order := range list.Items {
		page.Items = append(page.Items, s.view(order, input.Actor))
	}
	return page, nil
}

// Get hides other users' orders from employees.
func (s *service) Get(ctx context.Context, actor orderservice.Actor, orderID string) (*OrderView, error) {
	order, err := s.upstream.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanManageOrders() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view := s.view(*order, actor)
	return &view, nil
}

// Transition validates fields, checks the table and the caller's role against the
// current server status, then sends the change. A conflict from the order-service
// refetches the order so the caller sees its real status.
func (s *service) Transition(ctx context.Context, input TransitionInput) (*OrderView, error) {
	orderID := strings.TrimSpace(input.OrderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", input.Action))
	}
	if err := ValidateFields(input.Action, input.Fields); err != nil {
		return nil, err
	}

	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, orderID)
	}

	var result *OrderView
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		current, err := s.upstream.GetOrder(ctx, input.Actor, orderID)
		if err != nil {
			return err
		}
		if !input.Actor.Role.CanManageOrders() && current.UserID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}

		to, err := Next(current.Status, input.Action)
		if err != nil {
			return err
		}
		if err := Authorize(input.Action, actorOf(input.Actor), current.UserID, s.policy); err != nil {
			return err
		}

		updated, err := s.upstream.UpdateOrderStatus(ctx, input.Actor, orderID, statusUpdate(input.Action, to, input.Fields))
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				return s.conflictWithCurrent(ctx, input, err)
			}
			return err
		}
		if updated.Status != to && s.logg != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"expected_status": to,
				"actual_status":   updated.Status,
			}), "order-service reported an unexpected status")
		}

		s.afterTransition(ctx, input, current, updated)
		view := s.view(*updated, input.Actor)
		result = &view
		return nil
	}, inflight.ScopeOrder, orderID)
	if err != nil {
		s.metrics.IncTransition(string(input.Action), resultLabel(err))
		return nil, err
	}
	s.metrics.IncTransition(string(input.Action), metrics.ResultSuccess)
	return result, nil
}

// ToggleVendorOrdered flips procurement tracking on one item. It never changes status.
func (s *service) ToggleVendorOrdered(ctx context.Context, actor orderservice.Actor, orderID, itemID string, value bool) (*OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	itemID = strings.TrimSpace(itemID)
	if orderID == "" || itemID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id and item id are required")
	}
	if !actor.Role.CanManageOrders() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin or manager role required")
	}
	if err := s.policy.Check(OperationVendorOrdered, actor.Role); err != nil {
		return nil, err
	}

	var result *OrderView
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		current, err := s.upstream.GetOrder(ctx, actor, orderID)
		if err != nil {
			return err
		}
		if !VendorOrderedAllowed(current.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "procurement tracking is closed for "+string(current.Status)+" orders").
				WithDetails(map[string]any{"current_status": current.Status})
		}
		if !hasItem(current, itemID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found").
				WithDetails(map[string]any{"item_id": itemID})
		}
		updated, err := s.upstream.UpdateOrderItem(ctx, actor, orderID, itemID, orderservice.ItemUpdate{VendorOrdered: value})
		if err != nil {
			return err
		}
		view := s.view(*updated, actor)
		result = &view
		return nil
	}, inflight.ScopeOrder, orderID, "item", itemID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// VendorOrderedAllowed is false once procurement is moot.
func VendorOrderedAllowed(status enums.OrderStatus) bool {
	return status != enums.OrderStatusRejected && status != enums.OrderStatusCancelled
}

func (s *service) conflictWithCurrent(ctx context.Context, input TransitionInput, cause error) error {
	fresh, err := s.upstream.GetOrder(ctx, input.Actor, input.OrderID)
	if err != nil {
		return cause
	}
	view := s.view(*fresh, input.Actor)
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, cause, "order changed; showing its current status").
		WithDetails(map[string]any{
			"current_status": fresh.Status,
			"action":         input.Action,
			"order":          view,
		})
}

func (s *service) afterTransition(ctx context.Context, input TransitionInput, before, after *orderservice.Order) {
	record := TransitionRecord{
		OrderID:          before.ID,
		OwnerID:          before.UserID,
		Action:           input.Action,
		From:             before.Status,
		To:               after.Status,
		ActorID:          input.Actor.UserID,
		ActorRole:        input.Actor.Role,
		Note:             strings.TrimSpace(input.Fields.Note),
		Reason:           strings.TrimSpace(input.Fields.Reason),
		ExpectedDelivery: strings.TrimSpace(input.Fields.ExpectedDelivery),
		OccurredAt:       s.now().UTC(),
	}
	if record.OrderID == "" {
		record.OrderID = input.OrderID
	}

	detached := context.WithoutCancel(ctx)
	if err := s.audit.Record(detached, record); err != nil && s.logg != nil {
		s.logg.Error(ctx, "audit record failed", err)
	}
	if affectsBudget(input.Action) {
		if err := s.budgets.Invalidate(detached, before.UserID); err != nil && s.logg != nil {
			s.logg.Error(ctx, "budget invalidation failed", err)
		}
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"action": input.Action,
			"from":   record.From,
			"to":     record.To,
		}), "order transitioned")
	}
}

func (s *service) view(order orderservice.Order, actor orderservice.Actor) OrderView {
	return OrderView{
		Order:            order,
		AvailableActions: AvailableActions(order.Status, actorOf(actor), order.UserID, s.policy),
	}
}

// affectsBudget lists the transitions that commit or release budget on the server.
func affectsBudget(action enums.OrderAction) bool {
	switch action {
	case enums.OrderActionApprove, enums.OrderActionReject, enums.OrderActionCancel, enums.OrderActionApproveReturn:
		return true
	}
	return false
}

func statusUpdate(action enums.OrderAction, to enums.OrderStatus, fields Fields) orderservice.StatusUpdate {
	update := orderservice.StatusUpdate{Status: to}
	update.AdminNote = optional(fields.Note)
	switch action {
	case enums.OrderActionApprove:
		update.ExpectedDelivery = optional(fields.ExpectedDelivery)
	case enums.OrderActionReject:
		update.CancellationReason = optional(fields.Reason)
	case enums.OrderActionRequestReturn:
		update.ReturnReason = optional(fields.Reason)
	}
	return update
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func actorOf(a orderservice.Actor) Actor {
	return Actor{UserID: a.UserID, Role: a.Role}
}

func hasItem(order *orderservice.Order, itemID string) bool {
	for _, item := range order.Items {
		if item.ID == itemID {
			return true
		}
	}
	return false
}

func resultLabel(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return metrics.ResultFailure
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return metrics.ResultFailure
	}
	return metrics.ResultRejected
}
