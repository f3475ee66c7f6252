package cart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/perkshop-portal/api/middleware"
	cartsvc "github.com/angelmondragon/perkshop-portal/internal/cart"
	checkoutsvc "github.com/angelmondragon/perkshop-portal/internal/checkout"
	"github.com/angelmondragon/perkshop-portal/internal/orderservice"
	"github.com/angelmondragon/perkshop-portal/internal/pricedrift"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

var employee = orderservice.Actor{UserID: "emp-1", Role: enums.RoleEmployee, Token: "tok"}

type stubCartService struct {
	cart       *cartsvc.Cart
	err        error
	lastQty    int
	lastItemID string
}

func (s *stubCartService) Fetch(context.Context, orderservice.Actor) (*cartsvc.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddOrIncrement(_ context.Context, _ orderservice.Actor, productID string, qty int) (*cartsvc.Cart, error) {
	s.lastItemID, s.lastQty = productID, qty
	return s.cart, s.err
}

func (s *stubCartService) SetQuantity(_ context.Context, _ orderservice.Actor, productID string, qty int) (*cartsvc.Cart, error) {
	s.lastItemID, s.lastQty = productID, qty
	return s.cart, s.err
}

func (s *stubCartService) Remove(_ context.Context, _ orderservice.Actor, productID string) (*cartsvc.Cart, error) {
	s.lastItemID = productID
	return s.cart, s.err
}

func (s *stubCartService) MarkConsumed(context.Context, string) {}

type stubCheckoutService struct {
	summary *checkoutsvc.Summary
}

func (s *stubCheckoutService) Summary(context.Context, orderservice.Actor) (*checkoutsvc.Summary, error) {
	return s.summary, nil
}

func (s *stubCheckoutService) Execute(context.Context, checkoutsvc.Input) (*orderservice.Order, error) {
	return nil, nil
}

func sampleCart() *cartsvc.Cart {
	return &cartsvc.Cart{
		UserID: "emp-1",
		Items: []cartsvc.Item{
			{ProductID: "p-1", ProductName: "Headphones", Quantity: 2, PriceAtAdd: 1000, CurrentPrice: 1200, ProductActive: true, MaxQuantityPerUser: 5},
		},
	}
}

func authed(req *http.Request) *http.Request {
	return req.WithContext(middleware.WithActor(req.Context(), employee))
}

func withProductParam(req *http.Request, productID string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("productId", productID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestCartFetchRendersAggregates(t *testing.T) {
	handler := CartFetch(&stubCartService{cart: sampleCart()}, nil, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartView `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	got := envelope.Data
	if got.TotalAtAdd != 2000 || got.TotalCurrent != 2400 || got.ItemCount != 2 {
		t.Fatalf("unexpected totals: %+v", got)
	}
	if !got.HasPriceChanges || !got.Items[0].PriceChanged || got.Items[0].PriceDiff != 200 {
		t.Fatalf("expected price change flags: %+v", got)
	}
	if got.TotalCurrentDisplay == "" {
		t.Fatal("expected formatted total")
	}
}

func TestCartFetchRequiresActor(t *testing.T) {
	handler := CartFetch(&stubCartService{cart: sampleCart()}, nil, nil)

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartAddItemValidatesBody(t *testing.T) {
	svc := &stubCartService{cart: sampleCart()}
	handler := CartAddItem(svc, nil, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":"p-1","quantity":0}`)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	req = authed(httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"product_id":" p-1 ","quantity":2}`)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastItemID != "p-1" || svc.lastQty != 2 {
		t.Fatalf("unexpected call: %s x%d", svc.lastItemID, svc.lastQty)
	}
}

func TestCartUpdateItemSurfacesServiceError(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1; use remove to delete the item")}
	handler := CartUpdateItem(svc, nil, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/cart/items/p-1", strings.NewReader(`{"quantity":0}`))
	req = authed(withProductParam(req, "p-1"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "use remove") {
		t.Fatalf("expected service message, got %s", resp.Body.String())
	}
}

func TestCartRemoveItemUsesPathParam(t *testing.T) {
	svc := &stubCartService{cart: &cartsvc.Cart{UserID: "emp-1"}}
	handler := CartRemoveItem(svc, nil, nil)

	req := authed(withProductParam(httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/p-9", nil), "p-9"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastItemID != "p-9" {
		t.Fatalf("expected p-9 got %s", svc.lastItemID)
	}
	if !strings.Contains(resp.Body.String(), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", resp.Body.String())
	}
}

func TestCartSummaryIncludesDrift(t *testing.T) {
	c := sampleCart()
	summary := &checkoutsvc.Summary{
		Cart:            c,
		ItemCount:       2,
		TotalCurrent:    2400,
		HasPriceChanges: true,
		Drift:           pricedrift.Detect(c),
	}
	handler := CartSummary(&stubCheckoutService{summary: summary}, nil, nil)

	req := authed(httptest.NewRequest(http.MethodGet, "/api/v1/cart/summary", nil))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Cart       cartView          `json:"cart"`
			PriceDrift pricedrift.Report `json:"price_drift"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.PriceDrift.Changes) != 1 {
		t.Fatalf("expected one drift change, got %+v", envelope.Data.PriceDrift)
	}
	if envelope.Data.Cart.TotalCurrent != 2400 {
		t.Fatalf("expected rendered cart view, got %+v", envelope.Data.Cart)
	}
}
