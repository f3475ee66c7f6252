package controllers

import (
	"net/http"

	"github.com/angelmondragon/perkshop-portal/api/middleware"
	"github.com/angelmondragon/perkshop-portal/api/responses"
	"github.com/angelmondragon/perkshop-portal/api/validators"
	checkoutsvc "github.com/angelmondragon/perkshop-portal/internal/checkout"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
)

// checkoutRequest confirms drift by echoing the price_drift token from the
// cart summary or from the PRICE_CONFIRMATION_REQUIRED error details.
type checkoutRequest struct {
	AcceptPriceChanges bool   `json:"accept_price_changes"`
	PriceDriftToken    string `json:"price_drift_token" validate:"required_if=AcceptPriceChanges true"`
}

// Checkout turns the caller's cart into a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		actor, err := middleware.AuthenticatedActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.Input{Actor: actor}
		if payload.AcceptPriceChanges {
			input.PriceDriftToken = payload.PriceDriftToken
		}
		order, err := svc.Execute(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
