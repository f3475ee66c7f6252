package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/perkshop-portal/api/middleware"
	"github.com/angelmondragon/perkshop-portal/api/responses"
	"github.com/angelmondragon/perkshop-portal/api/validators"
	internalorders "github.com/angelmondragon/perkshop-portal/internal/orders"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
)

// AdminTransition applies one lifecycle action to an order.
func AdminTransition(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.AuthenticatedActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		action, err := enums.ParseOrderAction(payload.Action)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown action").
				WithDetails(map[string]any{"field": "action"}))
			return
		}

		view, err := svc.Transition(r.Context(), internalorders.TransitionInput{
			Actor:   actor,
			OrderID: orderID,
			Action:  action,
			Fields: internalorders.Fields{
				Note:             payload.Note,
				Reason:           payload.Reason,
				ExpectedDelivery: payload.ExpectedDelivery,
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// AdminToggleItem flips vendor_ordered on one order item.
func AdminToggleItem(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		actor, err := middleware.AuthenticatedActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID := strings.TrimSpace(chi.URLParam(r, "itemId"))
		if itemID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item id is required"))
			return
		}

		var payload itemUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.ToggleVendorOrdered(r.Context(), actor, orderID, itemID, *payload.VendorOrdered)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
