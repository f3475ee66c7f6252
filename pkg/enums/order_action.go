package enums

import "fmt"

// OrderAction names an operation that moves an order between statuses.
type OrderAction string

const (
	OrderActionApprove       OrderAction = "approve"
	OrderActionReject        OrderAction = "reject"
	OrderActionMarkDelivered OrderAction = "mark_delivered"
	OrderActionCancel        OrderAction = "cancel"
	OrderActionRequestReturn OrderAction = "request_return"
	OrderActionApproveReturn OrderAction = "approve_return"
	OrderActionRejectReturn  OrderAction = "reject_return"
)

var validOrderActions = []OrderAction{
	OrderActionApprove,
	OrderActionReject,
	OrderActionMarkDelivered,
	OrderActionCancel,
	OrderActionRequestReturn,
	OrderActionApproveReturn,
	OrderActionRejectReturn,
}

// OrderActions returns every known action.
func OrderActions() []OrderAction {
	out := make([]OrderAction, len(validOrderActions))
	copy(out, validOrderActions)
	return out
}

// String implements fmt.Stringer.
func (o OrderAction) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderAction.
func (o OrderAction) IsValid() bool {
	for _, candidate := range validOrderActions {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderAction converts raw input into an OrderAction.
func ParseOrderAction(value string) (OrderAction, error) {
	for _, candidate := range validOrderActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order action %q", value)
}
