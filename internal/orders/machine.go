package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

// ExpectedDeliveryLayout is the ISO date accepted for expected_delivery.
const ExpectedDeliveryLayout = "2006-01-02"

// ActorKind names who may trigger a transition.
type ActorKind string

const (
	ActorStaff ActorKind = "admin_or_manager"
	ActorOwner ActorKind = "owner"
)

// Transition is one row of the lifecycle table.
type Transition struct {
	From   enums.OrderStatus
	Action enums.OrderAction
	To     enums.OrderStatus
	Actor  ActorKind
}

// transitions is the single source of truth for legal moves; everything else is rejected.
var transitions = []Transition{
	{enums.OrderStatusPending, enums.OrderActionApprove, enums.OrderStatusOrdered, ActorStaff},
	{enums.OrderStatusPending, enums.OrderActionReject, enums.OrderStatusRejected, ActorStaff},
	{enums.OrderStatusOrdered, enums.OrderActionMarkDelivered, enums.OrderStatusDelivered, ActorStaff},
	{enums.OrderStatusOrdered, enums.OrderActionCancel, enums.OrderStatusCancelled, ActorStaff},
	{enums.OrderStatusDelivered, enums.OrderActionRequestReturn, enums.OrderStatusReturnRequested, ActorOwner},
	{enums.OrderStatusReturnRequested, enums.OrderActionApproveReturn, enums.OrderStatusReturned, ActorStaff},
	// Deliberately lands back on delivered; the audit trail distinguishes it.
	{enums.OrderStatusReturnRequested, enums.OrderActionRejectReturn, enums.OrderStatusDelivered, ActorStaff},
}

// Transitions returns a copy of the lifecycle table.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// InvalidTransitionError reports an action that is not legal from the current status.
type InvalidTransitionError struct {
	From   enums.OrderStatus
	Action enums.OrderAction
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an order in status %s", e.Action, e.From)
}

func lookup(from enums.OrderStatus, action enums.OrderAction) (Transition, bool) {
	for _, t := range transitions {
		if t.From == from && t.Action == action {
			return t, true
		}
	}
	return Transition{}, false
}

// Next returns the status reached by applying action to from.
func Next(from enums.OrderStatus, action enums.OrderAction) (enums.OrderStatus, error) {
	t, ok := lookup(from, action)
	if !ok {
		invalid := &InvalidTransitionError{From: from, Action: action}
		return from, pkgerrors.Wrap(pkgerrors.CodeStateConflict, invalid, invalid.Error()).
			WithDetails(map[string]any{
				"current_status": from,
				"action":         action,
			})
	}
	return t.To, nil
}

// Actor is the authenticated caller attempting an order operation.
type Actor struct {
	UserID string
	Role   enums.Role
}

// Authorize checks role capability for action. ownerID is the order's owner.
func Authorize(action enums.OrderAction, actor Actor, ownerID string, policy Policy) error {
	kind, ok := actorKindFor(action)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown action %q", action))
	}
	switch kind {
	case ActorOwner:
		if actor.UserID == "" || actor.UserID != ownerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the order owner may "+humanize(action))
		}
	case ActorStaff:
		if !actor.Role.CanManageOrders() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "admin or manager role required")
		}
	}
	return policy.Check(string(action), actor.Role)
}

// AvailableActions is the lookup table for status intersected with what actor may do.
func AvailableActions(status enums.OrderStatus, actor Actor, ownerID string, policy Policy) []enums.OrderAction {
	out := []enums.OrderAction{}
	for _, t := range transitions {
		if t.From != status {
			continue
		}
		if Authorize(t.Action, actor, ownerID, policy) == nil {
			out = append(out, t.Action)
		}
	}
	return out
}

func actorKindFor(action enums.OrderAction) (ActorKind, bool) {
	for _, t := range transitions {
		if t.Action == action {
			return t.Actor, true
		}
	}
	return "", false
}

// Fields are the optional and required inputs of a transition.
type Fields struct {
	Note             string
	Reason           string
	ExpectedDelivery string
}

// ValidateFields applies the per-action field rules before any request is sent.
func ValidateFields(action enums.OrderAction, fields Fields) error {
	reason := strings.TrimSpace(fields.Reason)
	delivery := strings.TrimSpace(fields.ExpectedDelivery)

	switch action {
	case enums.OrderActionReject, enums.OrderActionRequestReturn:
		if reason == "" {
			return fieldError("reason", "reason is required to "+humanize(action))
		}
	default:
		if reason != "" {
			return fieldError("reason", "reason is not accepted for "+humanize(action))
		}
	}

	if action == enums.OrderActionRequestReturn && strings.TrimSpace(fields.Note) != "" {
		return fieldError("note", "note is not accepted for request return")
	}

	if delivery != "" {
		if action != enums.OrderActionApprove {
			return fieldError("expected_delivery", "expected_delivery is only accepted on approve")
		}
		if _, err := time.Parse(ExpectedDeliveryLayout, delivery); err != nil {
			return fieldError("expected_delivery", "expected_delivery must be a YYYY-MM-DD date")
		}
	}
	return nil
}

func fieldError(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
}

func humanize(action enums.OrderAction) string {
	return strings.ReplaceAll(string(action), "_", " ")
}
