package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/perkshop-portal/api/middleware"
	"github.com/angelmondragon/perkshop-portal/api/responses"
	"github.com/angelmondragon/perkshop-portal/internal/budget"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/money"
)

type budgetView struct {
	TotalBudgetCents     int64     `json:"total_budget_cents"`
	AvailableBudgetCents int64     `json:"available_budget_cents"`
	TotalDisplay         string    `json:"total_display"`
	AvailableDisplay     string    `json:"available_display"`
	FetchedAt            time.Time `json:"fetched_at"`
	Stale                bool      `json:"stale"`
}

func newBudgetView(fig *budget.Figure, formatter *money.Formatter) budgetView {
	format := money.Format
	if formatter != nil {
		format = formatter.Format
	}
	return budgetView{
		TotalBudgetCents:     fig.TotalBudgetCents,
		AvailableBudgetCents: fig.AvailableBudgetCents,
		TotalDisplay:         format(fig.TotalBudgetCents),
		AvailableDisplay:     format(fig.AvailableBudgetCents),
		FetchedAt:            fig.FetchedAt,
		Stale:                fig.Stale,
	}
}

// BudgetFetch returns the shared budget figure, served from cache while fresh.
func BudgetFetch(store budget.Store, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return budgetHandler(store, formatter, logg, budget.Store.Get)
}

// BudgetRefresh bypasses the cache.
func BudgetRefresh(store budget.Store, formatter *money.Formatter, logg *logger.Logger) http.HandlerFunc {
	return budgetHandler(store, formatter, logg, budget.Store.Refresh)
}

type budgetLoader func(budget.Store, context.Context, orderservice.Actor) (*budget.Figure, error)

func budgetHandler(store budget.Store, formatter *money.Formatter, logg *logger.Logger, load budgetLoader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "budget store unavailable"))
			return
		}

		actor, err := middleware.AuthenticatedActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		fig, err := load(store, r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBudgetView(fig, formatter))
	}
}
