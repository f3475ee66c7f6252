package hrsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/perkshop-portal/internal/orders"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/inflight"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/metrics"
)

// Upstream is the slice of the order-service client used by the sync gate.
type Upstream interface {
	GetOrder(ctx context.Context, actor orderservice.Actor, orderID string) (*orderservice.Order, error)
	PushHRSync(ctx context.Context, actor orderservice.Actor, orderID string) (*orderservice.SyncResult, error)
	RemoveHRSync(ctx context.Context, actor orderservice.Actor, orderID string) (*orderservice.SyncResult, error)
}

// AuditSink receives one record per completed sync action.
type AuditSink interface {
	RecordSync(ctx context.Context, record SyncRecord) error
}

type busyGuard interface {
	Do(ctx context.Context, fn func(context.Context) error, scope string, parts ...string) error
}

// SyncRecord describes a completed push or removal.
type SyncRecord struct {
	OrderID       string           `json:"order_id"`
	OwnerID       string           `json:"owner_id"`
	Action        enums.SyncAction `json:"action"`
	ActorID       string           `json:"actor_id"`
	ActorRole     enums.Role       `json:"actor_role"`
	ItemCount     int              `json:"item_count"`
	Message       string           `json:"message"`
	HibobSyncedAt *time.Time       `json:"hibob_synced_at,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// Preview is what the first confirmation step shows.
type Preview struct {
	OrderID        string            `json:"order_id"`
	Status         enums.OrderStatus `json:"status"`
	Eligible       bool              `json:"eligible"`
	ItemCount      int               `json:"item_count"`
	HibobSyncedAt  *time.Time        `json:"hibob_synced_at"`
	RemovalPhrase  string            `json:"removal_phrase"`
	PushAllowed    bool              `json:"push_allowed"`
	RemovalAllowed bool              `json:"removal_allowed"`
}

// PushInput is the second, confirming step of a push.
type PushInput struct {
	Actor     orderservice.Actor
	OrderID   string
	Confirmed bool
	ItemCount int
}

// RemoveInput carries the typed confirmation phrase.
type RemoveInput struct {
	Actor        orderservice.Actor
	OrderID      string
	Confirmation string
}

// Result is returned to the caller after a sync action.
type Result struct {
	OrderID       string           `json:"order_id"`
	Action        enums.SyncAction `json:"action"`
	Message       string           `json:"message"`
	HibobSyncedAt *time.Time       `json:"hibob_synced_at"`
}

// Service gates pushes and removals against the external HR system.
type Service interface {
	Preview(ctx context.Context, actor orderservice.Actor, orderID string) (*Preview, error)
	Push(ctx context.Context, input PushInput) (*Result, error)
	Remove(ctx context.Context, input RemoveInput) (*Result, error)
}

// ServiceParams groups sync gate collaborators.
type ServiceParams struct {
	Upstream Upstream
	Audit    AuditSink
	Guard    busyGuard
	Policy   orders.Policy
	Metrics  *metrics.PortalMetrics
	Logger   *logger.Logger
	Enabled  bool
}

type service struct {
	upstream Upstream
	audit    AuditSink
	guard    busyGuard
	policy   orders.Policy
	metrics  *metrics.PortalMetrics
	logg     *logger.Logger
	enabled  bool
	now      func() time.Time
}

// NewService builds the sync gate.
func NewService(p ServiceParams) (Service, error) {
	if p.Upstream == nil {
		return nil, fmt.Errorf("order-service client required")
	}
	if p.Audit == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if p.Guard == nil {
		return nil, fmt.Errorf("inflight guard required")
	}
	return &service{
		upstream: p.Upstream,
		audit:    p.Audit,
		guard:    p.Guard,
		policy:   p.Policy,
		metrics:  p.Metrics,
		logg:     p.Logger,
		enabled:  p.Enabled,
		now:      time.Now,
	}, nil
}

func (s *service) Preview(ctx context.Context, actor orderservice.Actor, orderID string) (*Preview, error) {
	orderID = strings.TrimSpace(orderID)
	if err := s.precheck(actor, orderID, orders.OperationHRSyncPush); err != nil {
		return nil, err
	}
	order, err := s.upstream.GetOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	eligible := Eligible(order.Status)
	return &Preview{
		OrderID:        order.ID,
		Status:         order.Status,
		Eligible:       eligible,
		ItemCount:      ItemCount(order),
		HibobSyncedAt:  order.HibobSyncedAt,
		RemovalPhrase:  RemovalPhrase,
		PushAllowed:    eligible,
		RemovalAllowed: eligible && s.policy.Check(orders.OperationHRSyncRemove, actor.Role) == nil,
	}, nil
}

// Push requires explicit confirmation of the item count shown by Preview.
func (s *service) Push(ctx context.Context, input PushInput) (*Result, error) {
	orderID := strings.TrimSpace(input.OrderID)
	if err := s.precheck(input.Actor, orderID, orders.OperationHRSyncPush); err != nil {
		s.metrics.IncSync(string(enums.SyncActionPush), metrics.ResultRejected)
		return nil, err
	}
	if !input.Confirmed {
		s.metrics.IncSync(string(enums.SyncActionPush), metrics.ResultRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "push must be confirmed").
			WithDetails(map[string]any{"field": "confirmed"})
	}
	if input.ItemCount <= 0 {
		s.metrics.IncSync(string(enums.SyncActionPush), metrics.ResultRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "confirmed item count is required").
			WithDetails(map[string]any{"field": "item_count"})
	}

	return s.run(ctx, input.Actor, orderID, enums.SyncActionPush, func(order *orderservice.Order) error {
		if current := ItemCount(order); current != input.ItemCount {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order items changed since preview").
				WithDetails(map[string]any{
					"confirmed_item_count": input.ItemCount,
					"current_item_count":   current,
				})
		}
		return nil
	}, s.upstream.PushHRSync)
}

// Remove requires the typed removal phrase.
func (s *service) Remove(ctx context.Context, input RemoveInput) (*Result, error) {
	orderID := strings.TrimSpace(input.OrderID)
	if err := s.precheck(input.Actor, orderID, orders.OperationHRSyncRemove); err != nil {
		s.metrics.IncSync(string(enums.SyncActionRemove), metrics.ResultRejected)
		return nil, err
	}
	if !NewRemovalGate(input.Confirmation).Enabled() {
		s.metrics.IncSync(string(enums.SyncActionRemove), metrics.ResultRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("type %s to confirm removal", RemovalPhrase)).
			WithDetails(map[string]any{"field": "confirmation"})
	}
	return s.run(ctx, input.Actor, orderID, enums.SyncActionRemove, nil, s.upstream.RemoveHRSync)
}

type remoteCall func(ctx context.Context, actor orderservice.Actor, orderID string) (*orderservice.SyncResult, error)

func (s *service) run(ctx context.Context, actor orderservice.Actor, orderID string, action enums.SyncAction, check func(*orderservice.Order) error, call remoteCall) (*Result, error) {
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, orderID)
	}

	var (
		result  *Result
		entered bool
	)
	err := s.guard.Do(ctx, func(ctx context.Context) error {
		entered = true
		order, err := s.upstream.GetOrder(ctx, actor, orderID)
		if err != nil {
			return err
		}
		if !Eligible(order.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders can be synced").
				WithDetails(map[string]any{"current_status": order.Status})
		}
		if check != nil {
			if err := check(order); err != nil {
				return err
			}
		}

		remote, err := call(ctx, actor, orderID)
		if err != nil {
			return externalError(action, err)
		}

		result = &Result{
			OrderID:       orderID,
			Action:        action,
			Message:       remote.Message,
			HibobSyncedAt: remote.HibobSyncedAt,
		}
		s.record(ctx, actor, order, result)
		return nil
	}, inflight.ScopeHRSync, orderID, string(action))
	if err != nil {
		if !entered && pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			err = pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sync already in progress").
				WithDetails(map[string]any{"action": action})
		}
		s.metrics.IncSync(string(action), syncResultLabel(err))
		return nil, err
	}
	s.metrics.IncSync(string(action), metrics.ResultSuccess)
	return result, nil
}

func (s *service) precheck(actor orderservice.Actor, orderID, op string) error {
	if !s.enabled {
		return pkgerrors.New(pkgerrors.CodeForbidden, "HR sync is disabled")
	}
	if orderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !actor.Role.CanManageOrders() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin or manager role required")
	}
	return s.policy.Check(op, actor.Role)
}

func (s *service) record(ctx context.Context, actor orderservice.Actor, order *orderservice.Order, result *Result) {
	rec := SyncRecord{
		OrderID:       result.OrderID,
		OwnerID:       order.UserID,
		Action:        result.Action,
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		ItemCount:     ItemCount(order),
		Message:       result.Message,
		HibobSyncedAt: result.HibobSyncedAt,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.audit.RecordSync(context.WithoutCancel(ctx), rec); err != nil && s.logg != nil {
		s.logg.Error(ctx, "sync audit record failed", err)
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "sync_action", result.Action), "hr sync completed")
	}
}

// externalError surfaces the remote message verbatim.
func externalError(action enums.SyncAction, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "hr sync timed out")
	}
	msg := orderservice.RemoteMessage(err)
	if msg == "" {
		msg = fmt.Sprintf("hr sync %s failed", action)
	}
	details := map[string]any{"action": action}
	var up *orderservice.UpstreamError
	if errors.As(err, &up) {
		details["upstream_status"] = up.Status
		if up.Code != "" {
			details["upstream_code"] = up.Code
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodeExternalSystem, err, msg).WithDetails(details)
}

func syncResultLabel(err error) string {
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeExternalSystem),
		pkgerrors.IsCode(err, pkgerrors.CodeDependency),
		pkgerrors.IsCode(err, pkgerrors.CodeInternal):
		return metrics.ResultFailure
	}
	return metrics.ResultRejected
}
