package orders

type returnRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type transitionRequest struct {
	Action           string `json:"action" validate:"required"`
	Note             string `json:"note" validate:"max=2000"`
	Reason           string `json:"reason" validate:"max=2000"`
	ExpectedDelivery string `json:"expected_delivery"`
}

type itemUpdateRequest struct {
	VendorOrdered *bool `json:"vendor_ordered" validate:"required"`
}

type syncPushRequest struct {
	Confirmed bool `json:"confirmed"`
	ItemCount int  `json:"item_count"`
}

// Confirmation is compared verbatim; no trimming happens before the gate.
type syncRemoveRequest struct {
	Confirmation string `json:"confirmation"`
}
