package orderservice

import (
	"time"

	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	"github.com/angelmondragon/perkshop-portal/pkg/pagination"
)

// Actor identifies the portal user on whose behalf a call is made.
type Actor struct {
	UserID string
	Role   enums.Role
	Token  string
}

// CartItem is the wire form of one cart line. Prices are minor units.
type CartItem struct {
	ProductID          string `json:"product_id"`
	ProductName        string `json:"product_name"`
	Quantity           int    `json:"quantity"`
	PriceAtAdd         int64  `json:"price_at_add"`
	CurrentPrice       int64  `json:"current_price"`
	ProductActive      bool   `json:"product_active"`
	MaxQuantityPerUser int    `json:"max_quantity_per_user"`
}

// Cart is the wire form of GET /cart.
type Cart struct {
	UserID string     `json:"user_id"`
	Items  []CartItem `json:"items"`
}

// AddCartItemRequest is the body of POST /cart/items.
type AddCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// UpdateCartItemRequest is the body of PATCH /cart/items/{product_id}.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// OrderItem is a frozen order line.
type OrderItem struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int    `json:"quantity"`
	PriceCents    int64  `json:"price_cents"`
	VendorOrdered bool   `json:"vendor_ordered"`
}

// Order is the wire form of an order record.
type Order struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"user_id"`
	Status             enums.OrderStatus `json:"status"`
	TotalCents         int64             `json:"total_cents"`
	Items              []OrderItem       `json:"items"`
	AdminNote          *string           `json:"admin_note,omitempty"`
	ExpectedDelivery   *string           `json:"expected_delivery,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	ReturnReason       *string           `json:"return_reason,omitempty"`
	ReviewedBy         *string           `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time        `json:"reviewed_at,omitempty"`
	HibobSyncedAt      *time.Time        `json:"hibob_synced_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
}

// OrderList is the paginated list envelope of GET /orders.
type OrderList = pagination.Page[Order]

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	AcceptPriceChanges bool `json:"accept_price_changes"`
}

// ListOrdersParams filters GET /orders.
type ListOrdersParams struct {
	Status *enums.OrderStatus
	Page   pagination.Params
}

// StatusUpdate is the body of PATCH /orders/{id}/status.
type StatusUpdate struct {
	Status             enums.OrderStatus `json:"status"`
	AdminNote          *string           `json:"admin_note,omitempty"`
	ExpectedDelivery   *string           `json:"expected_delivery,omitempty"`
	CancellationReason *string           `json:"cancellation_reason,omitempty"`
	ReturnReason       *string           `json:"return_reason,omitempty"`
}

// ItemUpdate is the body of PATCH /orders/{id}/items/{item_id}.
type ItemUpdate struct {
	VendorOrdered bool `json:"vendor_ordered"`
}

// SyncResult is the response of POST|DELETE /orders/{id}/hibob-sync.
type SyncResult struct {
	Message       string     `json:"message"`
	HibobSyncedAt *time.Time `json:"hibob_synced_at"`
}

// Budget is the response of GET /users/me/budget.
type Budget struct {
	TotalBudgetCents     int64 `json:"total_budget_cents"`
	AvailableBudgetCents int64 `json:"available_budget_cents"`
}
