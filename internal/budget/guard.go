package budget

import "github.com/angelmondragon/perkshop-portal/internal/cart"

// Exceeds reports whether the cart's current total is over the available budget.
// It is advisory; the order-service re-validates at order creation.
func Exceeds(c *cart.Cart, availableCents int64) bool {
	if c == nil {
		return false
	}
	return c.BudgetExceeded(availableCents)
}
