package cart

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/perkshop-portal/api/middleware"
	"github.com/angelmondragon/perkshop-portal/api/responses"
	"github.com/angelmondragon/perkshop-portal/api/validators"
	cartsvc "github.com/angelmondragon/perkshop-portal/internal/cart"
	checkoutsvc "github.com/angelmondragon/perkshop-portal/internal/checkout"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/money"
)

// CartFetch returns the caller's cart, refreshed from the order-service.
func CartFetch(svc cartsvc.Service, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := middleware.AuthenticatedActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.Fetch(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(c, formatter))
	}
}

// CartAddItem adds a product or increments its quantity.
func CartAddItem(svc cartsvc.Service, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, err := middleware.AuthenticatedActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.AddOrIncrement(r.Context(), actor, strings.TrimSpace(payload.ProductID), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(c, formatter))
	}
}

// CartUpdateItem sets an item's quantity.
func CartUpdateItem(svc cartsvc.Service, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, productID, err := itemTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.SetQuantity(r.Context(), actor, productID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(c, formatter))
	}
}

// CartRemoveItem drops an item from the cart.
func CartRemoveItem(svc cartsvc.Service, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		actor, productID, err := itemTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		c, err := svc.Remove(r.Context(), actor, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(c, formatter))
	}
}

// CartSummary combines cart aggregates, the budget figure and the price-drift report.
func CartSummary(svc checkoutsvc.Service, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
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

		summary, err := svc.Summary(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSummaryView(summary, formatter))
	}
}

func itemTarget(r *http.Request) (orderservice.Actor, string, error) {
	actor, err := middleware.AuthenticatedActor(r.Context())
	if err != nil {
		return orderservice.Actor{}, "", err
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productId"))
	if productID == "" {
		return orderservice.Actor{}, "", pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return actor, productID, nil
}
