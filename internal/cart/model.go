package cart

import "github.com/angelmondragon/perkshop-portal/internal/orderservice"

// Item is one priced cart line. Prices are minor currency units.
type Item struct {
	ProductID          string `json:"product_id"`
	ProductName        string `json:"product_name"`
	Quantity           int    `json:"quantity"`
	PriceAtAdd         int64  `json:"price_at_add"`
	CurrentPrice       int64  `json:"current_price"`
	ProductActive      bool   `json:"product_active"`
	MaxQuantityPerUser int    `json:"max_quantity_per_user"`
}

// PriceChanged reports whether the catalog price moved since the item was added.
func (i Item) PriceChanged() bool {
	return i.PriceAtAdd != i.CurrentPrice
}

// PriceDiff is the signed per-unit delta, current minus at-add.
func (i Item) PriceDiff() int64 {
	return i.CurrentPrice - i.PriceAtAdd
}

// AllowsQuantity reports whether qty is within [1, MaxQuantityPerUser].
// A non-positive maximum means the order-service sent no per-user limit.
func (i Item) AllowsQuantity(qty int) bool {
	if qty < 1 {
		return false
	}
	return i.MaxQuantityPerUser <= 0 || qty <= i.MaxQuantityPerUser
}

// Cart is a user's read model of the order-service cart, in display order.
type Cart struct {
	UserID string `json:"user_id"`
	Items  []Item `json:"items"`
}

func (c *Cart) TotalAtAdd() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.PriceAtAdd * int64(item.Quantity)
	}
	return total
}

func (c *Cart) TotalCurrent() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.CurrentPrice * int64(item.Quantity)
	}
	return total
}

func (c *Cart) HasPriceChanges() bool {
	for _, item := range c.Items {
		if item.PriceChanged() {
			return true
		}
	}
	return false
}

func (c *Cart) HasUnavailableItems() bool {
	for _, item := range c.Items {
		if !item.ProductActive {
			return true
		}
	}
	return false
}

// BudgetExceeded is strict: a total equal to the available budget is allowed.
func (c *Cart) BudgetExceeded(availableCents int64) bool {
	return c.TotalCurrent() > availableCents
}

// ItemCount is the badge figure: the sum of quantities.
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the line for productID.
func (c *Cart) Find(productID string) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

// FromWire converts the order-service payload, keeping its order.
func FromWire(userID string, in *orderservice.Cart) *Cart {
	out := &Cart{UserID: userID, Items: make([]Item, 0)}
	if in == nil {
		return out
	}
	if in.UserID != "" {
		out.UserID = in.UserID
	}
	for _, item := range in.Items {
		out.Items = append(out.Items, Item{
			ProductID:          item.ProductID,
			ProductName:        item.ProductName,
			Quantity:           item.Quantity,
			PriceAtAdd:         item.PriceAtAdd,
			CurrentPrice:       item.CurrentPrice,
			ProductActive:      item.ProductActive,
			MaxQuantityPerUser: item.MaxQuantityPerUser,
		})
	}
	return out
}
