package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/perkshop-portal/api/middleware"
	"github.com/angelmondragon/perkshop-portal/internal/budget"
	checkoutsvc "github.com/angelmondragon/perkshop-portal/internal/checkout"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/pkg/config"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

var employee = orderservice.Actor{UserID: "emp-1", Role: enums.RoleEmployee}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{}

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"redis": stubPinger{}, "order_service": stubPinger{}})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"redis": stubPinger{}, "order_service": stubPinger{err: errors.New("breaker open")}})(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"order_service":"down"`) {
		t.Fatalf("expected failing check in details, got %s", resp.Body.String())
	}
}

type stubCheckout struct {
	input checkoutsvc.Input
	err   error
}

func (s *stubCheckout) Summary(context.Context, orderservice.Actor) (*checkoutsvc.Summary, error) {
	return nil, nil
}

func (s *stubCheckout) Execute(_ context.Context, input checkoutsvc.Input) (*orderservice.Order, error) {
	s.input = input
	if s.err != nil {
		return nil, s.err
	}
	return &orderservice.Order{ID: "o-1", Status: enums.OrderStatusPending}, nil
}

func TestCheckoutCreatesOrder(t *testing.T) {
	svc := &stubCheckout{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"accept_price_changes":true,"price_drift_token":"abc123"}`))
	req = req.WithContext(middleware.WithActor(req.Context(), employee))
	resp := httptest.NewRecorder()
	Checkout(svc, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.input.PriceDriftToken != "abc123" || svc.input.Actor.UserID != "emp-1" {
		t.Fatalf("unexpected input %+v", svc.input)
	}
}

func TestCheckoutWithoutBodyAndPriceConfirmation(t *testing.T) {
	svc := &stubCheckout{err: pkgerrors.New(pkgerrors.CodePriceConfirmation, "prices changed since items were added")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), employee))
	resp := httptest.NewRecorder()
	Checkout(svc, nil)(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if svc.input.PriceDriftToken != "" {
		t.Fatal("missing body must not accept price changes")
	}
}

func TestCheckoutAcceptWithoutTokenIsRejected(t *testing.T) {
	svc := &stubCheckout{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"accept_price_changes":true}`))
	req = req.WithContext(middleware.WithActor(req.Context(), employee))
	resp := httptest.NewRecorder()
	Checkout(svc, nil)(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"price_drift_token"`) {
		t.Fatalf("expected the token field to be named, got %s", resp.Body.String())
	}
	if svc.input.Actor.UserID != "" {
		t.Fatal("service must not run without a drift token")
	}
}

func TestCheckoutIgnoresTokenWithoutAcceptance(t *testing.T) {
	svc := &stubCheckout{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{"accept_price_changes":false,"price_drift_token":"abc123"}`))
	req = req.WithContext(middleware.WithActor(req.Context(), employee))
	resp := httptest.NewRecorder()
	Checkout(svc, nil)(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.input.PriceDriftToken != "" {
		t.Fatalf("token must only count when changes are accepted, got %q", svc.input.PriceDriftToken)
	}
}

type stubBudgetStore struct {
	refreshed bool
}

func (s *stubBudgetStore) Get(context.Context, orderservice.Actor) (*budget.Figure, error) {
	return &budget.Figure{UserID: "emp-1", TotalBudgetCents: 50000, AvailableBudgetCents: 123456, FetchedAt: time.Now()}, nil
}

func (s *stubBudgetStore) Refresh(ctx context.Context, actor orderservice.Actor) (*budget.Figure, error) {
	s.refreshed = true
	return s.Get(ctx, actor)
}

func (s *stubBudgetStore) Invalidate(context.Context, string) error { return nil }

func TestBudgetHandlers(t *testing.T) {
	store := &stubBudgetStore{}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/budget", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), employee))
	resp := httptest.NewRecorder()
	BudgetFetch(store, nil, nil)(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"available_budget_cents":123456`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if store.refreshed {
		t.Fatal("fetch must not force a refresh")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/budget/refresh", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), employee))
	BudgetRefresh(store, nil, nil)(httptest.NewRecorder(), req)
	if !store.refreshed {
		t.Fatal("expected refresh")
	}
}
