package cart

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1"`
}

// Quantity bounds are checked by the cart service against the item's per-user limit.
type updateItemRequest struct {
	Quantity int `json:"quantity"`
}
