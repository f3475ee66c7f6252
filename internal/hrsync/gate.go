package hrsync

import (
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
)

// RemovalPhrase must be typed verbatim before a sync removal is enabled.
const RemovalPhrase = "DELETE"

// RemovalGate compares typed confirmation against the expected phrase.
type RemovalGate struct {
	Input    string
	Expected string
}

// NewRemovalGate expects RemovalPhrase.
func NewRemovalGate(input string) RemovalGate {
	return RemovalGate{Input: input, Expected: RemovalPhrase}
}

// Enabled is true only on exact equality. Case and whitespace are significant.
func (g RemovalGate) Enabled() bool {
	return g.Expected != "" && g.Input == g.Expected
}

// Eligible reports whether an order in status may be synced at all.
func Eligible(status enums.OrderStatus) bool {
	return status == enums.OrderStatusDelivered
}

// ItemCount is the number of units pushed to the HR system.
func ItemCount(order *orderservice.Order) int {
	if order == nil {
		return 0
	}
	total := 0
	for _, item := range order.Items {
		total += item.Quantity
	}
	return total
}
