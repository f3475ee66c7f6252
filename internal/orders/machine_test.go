package orders

import (
	"errors"
	"testing"

	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

var (
	manager  = Actor{UserID: "mgr-1", Role: enums.RoleManager}
	admin    = Actor{UserID: "adm-1", Role: enums.RoleAdmin}
	employee = Actor{UserID: "emp-1", Role: enums.RoleEmployee}
)

func TestNextFollowsTable(t *testing.T) {
	cases := []struct {
		from   enums.OrderStatus
		action enums.OrderAction
		to     enums.OrderStatus
	}{
		{enums.OrderStatusPending, enums.OrderActionApprove, enums.OrderStatusOrdered},
		{enums.OrderStatusPending, enums.OrderActionReject, enums.OrderStatusRejected},
		{enums.OrderStatusOrdered, enums.OrderActionMarkDelivered, enums.OrderStatusDelivered},
		{enums.OrderStatusOrdered, enums.OrderActionCancel, enums.OrderStatusCancelled},
		{enums.OrderStatusDelivered, enums.OrderActionRequestReturn, enums.OrderStatusReturnRequested},
		{enums.OrderStatusReturnRequested, enums.OrderActionApproveReturn, enums.OrderStatusReturned},
		{enums.OrderStatusReturnRequested, enums.OrderActionRejectReturn, enums.OrderStatusDelivered},
	}
	for _, tc := range cases {
		got, err := Next(tc.from, tc.action)
		if err != nil {
			t.Fatalf("Next(%s, %s) unexpected error: %v", tc.from, tc.action, err)
		}
		if got != tc.to {
			t.Fatalf("Next(%s, %s) = %s, want %s", tc.from, tc.action, got, tc.to)
		}
	}
}

func TestNextRejectsEveryPairOutsideTable(t *testing.T) {
	legal := map[[2]string]bool{}
	for _, tr := range Transitions() {
		legal[[2]string{string(tr.From), string(tr.Action)}] = true
	}

	illegal := 0
	for _, status := range enums.OrderStatuses() {
		for _, action := range enums.OrderActions() {
			if legal[[2]string{string(status), string(action)}] {
				continue
			}
			illegal++
			got, err := Next(status, action)
			if got != status {
				t.Fatalf("Next(%s, %s) changed status to %s", status, action, got)
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("Next(%s, %s) expected InvalidTransitionError, got %v", status, action, err)
			}
			if invalid.From != status || invalid.Action != action {
				t.Fatalf("error does not identify state/action: %+v", invalid)
			}
			if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				t.Fatalf("expected state conflict code, got %v", err)
			}
		}
	}
	if want := len(enums.OrderStatuses())*len(enums.OrderActions()) - len(Transitions()); illegal != want {
		t.Fatalf("expected %d illegal pairs, checked %d", want, illegal)
	}
}

func TestRejectFromOrderedIsIllegal(t *testing.T) {
	if _, err := Next(enums.OrderStatusOrdered, enums.OrderActionReject); err == nil {
		t.Fatal("reject from ordered must be illegal")
	}
}

func TestTerminalStatusesHaveNoOutgoingTransitions(t *testing.T) {
	for _, tr := range Transitions() {
		if tr.From.IsTerminal() {
			t.Fatalf("terminal status %s has outgoing action %s", tr.From, tr.Action)
		}
	}
}

func TestAuthorize(t *testing.T) {
	none, _ := NewPolicy()
	if err := Authorize(enums.OrderActionApprove, manager, "emp-1", none); err != nil {
		t.Fatalf("manager should approve: %v", err)
	}
	if err := Authorize(enums.OrderActionApprove, employee, "emp-1", none); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("employee must not approve, got %v", err)
	}
	if err := Authorize(enums.OrderActionRequestReturn, employee, "emp-1", none); err != nil {
		t.Fatalf("owner should request return: %v", err)
	}
	if err := Authorize(enums.OrderActionRequestReturn, Actor{UserID: "emp-2", Role: enums.RoleEmployee}, "emp-1", none); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("non-owner must not request return, got %v", err)
	}
	if err := Authorize(enums.OrderAction("explode"), admin, "emp-1", none); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("unknown action should be a validation error, got %v", err)
	}

	strict, err := NewPolicy("cancel")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if err := Authorize(enums.OrderActionCancel, manager, "emp-1", strict); !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("manager must not cancel under strict policy, got %v", err)
	}
	if err := Authorize(enums.OrderActionCancel, admin, "emp-1", strict); err != nil {
		t.Fatalf("admin should cancel under strict policy: %v", err)
	}
}

func TestAvailableActions(t *testing.T) {
	none, _ := NewPolicy()
	strict, _ := NewPolicy("approve")

	cases := []struct {
		name   string
		status enums.OrderStatus
		actor  Actor
		policy Policy
		want   []enums.OrderAction
	}{
		{"manager pending", enums.OrderStatusPending, manager, none, []enums.OrderAction{enums.OrderActionApprove, enums.OrderActionReject}},
		{"employee pending", enums.OrderStatusPending, employee, none, nil},
		{"owner delivered", enums.OrderStatusDelivered, employee, none, []enums.OrderAction{enums.OrderActionRequestReturn}},
		{"manager delivered", enums.OrderStatusDelivered, manager, none, nil},
		{"return requested", enums.OrderStatusReturnRequested, admin, none, []enums.OrderAction{enums.OrderActionApproveReturn, enums.OrderActionRejectReturn}},
		{"terminal", enums.OrderStatusCancelled, admin, none, nil},
		{"strict approve", enums.OrderStatusPending, manager, strict, []enums.OrderAction{enums.OrderActionReject}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AvailableActions(tc.status, tc.actor, "emp-1", tc.policy)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestValidateFields(t *testing.T) {
	cases := []struct {
		name   string
		action enums.OrderAction
		fields Fields
		field  string
	}{
		{"reject empty reason", enums.OrderActionReject, Fields{}, "reason"},
		{"reject whitespace reason", enums.OrderActionReject, Fields{Reason: " \t\n"}, "reason"},
		{"return without reason", enums.OrderActionRequestReturn, Fields{}, "reason"},
		{"return with note", enums.OrderActionRequestReturn, Fields{Reason: "broken", Note: "hi"}, "note"},
		{"reason on approve", enums.OrderActionApprove, Fields{Reason: "why"}, "reason"},
		{"delivery on cancel", enums.OrderActionCancel, Fields{ExpectedDelivery: "2025-01-10"}, "expected_delivery"},
		{"bad delivery date", enums.OrderActionApprove, Fields{ExpectedDelivery: "10/01/2025"}, "expected_delivery"},
		{"impossible date", enums.OrderActionApprove, Fields{ExpectedDelivery: "2025-02-30"}, "expected_delivery"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFields(tc.action, tc.fields)
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			details := pkgerrors.As(err).Details().(map[string]any)
			if details["field"] != tc.field {
				t.Fatalf("expected field %s, got %v", tc.field, details["field"])
			}
		})
	}

	valid := []struct {
		action enums.OrderAction
		fields Fields
	}{
		{enums.OrderActionApprove, Fields{Note: "ok", ExpectedDelivery: "2025-01-10"}},
		{enums.OrderActionApprove, Fields{}},
		{enums.OrderActionReject, Fields{Reason: "over budget"}},
		{enums.OrderActionCancel, Fields{Note: "vendor out of stock"}},
		{enums.OrderActionRequestReturn, Fields{Reason: "arrived broken"}},
	}
	for _, tc := range valid {
		if err := ValidateFields(tc.action, tc.fields); err != nil {
			t.Fatalf("%s with %+v: unexpected error %v", tc.action, tc.fields, err)
		}
	}
}

func TestNewPolicyRejectsUnknownOperations(t *testing.T) {
	if _, err := NewPolicy("approve", "wipe_everything"); err == nil {
		t.Fatal("expected unknown operation to fail")
	}
	p, err := NewPolicy(" hrsync_remove ", "")
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if !p.RequiresStrictAdmin(OperationHRSyncRemove) || p.RequiresStrictAdmin(OperationHRSyncPush) {
		t.Fatal("unexpected policy contents")
	}
}
