package orderservice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/perkshop-portal/pkg/config"
	"github.com/angelmondragon/perkshop-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testActor = Actor{UserID: "user-1", Role: enums.RoleManager, Token: "tok"}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(config.OrderServiceConfig{
		BaseURL:             srv.URL,
		Timeout:             2 * time.Second,
		BreakerMaxRequests:  1,
		BreakerInterval:     time.Minute,
		BreakerOpenTimeout:  time.Minute,
		BreakerFailureRatio: 0.5,
		BreakerMinRequests:  2,
	}, nil, nil)
	require.NoError(t, err)
	return client, srv
}

func TestGetCartPropagatesActor(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "user-1", r.Header.Get(headerActingUser))
		assert.Equal(t, "manager", r.Header.Get(headerActingRole))
		_ = json.NewEncoder(w).Encode(Cart{UserID: "user-1", Items: []CartItem{{ProductID: "p1", Quantity: 2, PriceAtAdd: 1000, CurrentPrice: 1200}}})
	})

	cart, err := client.GetCart(context.Background(), testActor)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(1200), cart.Items[0].CurrentPrice)
}

func TestListOrdersEncodesFilters(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "pending", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("per_page"))
		_ = json.NewEncoder(w).Encode(OrderList{Items: []Order{{ID: "o1", Status: enums.OrderStatusPending}}, Total: 11, Page: 2, PerPage: 10})
	})

	status := enums.OrderStatusPending
	list, err := client.ListOrders(context.Background(), testActor, ListOrdersParams{
		Status: &status,
		Page:   pagination.Params{Page: 2, PerPage: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 11, list.Total)
	assert.Equal(t, "o1", list.Items[0].ID)
}

func TestUpdateOrderStatusSendsBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/orders/o-1/status", r.URL.Path)
		var body StatusUpdate
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, enums.OrderStatusOrdered, body.Status)
		require.NotNil(t, body.ExpectedDelivery)
		assert.Equal(t, "2025-01-10", *body.ExpectedDelivery)
		_ = json.NewEncoder(w).Encode(Order{ID: "o-1", Status: body.Status, ExpectedDelivery: body.ExpectedDelivery})
	})

	date := "2025-01-10"
	order, err := client.UpdateOrderStatus(context.Background(), testActor, "o-1", StatusUpdate{Status: enums.OrderStatusOrdered, ExpectedDelivery: &date})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusOrdered, order.Status)
}

func TestRemoveCartItemRefetchesOnNoContent(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Method == http.MethodDelete {
			assert.Equal(t, "/cart/items/p%201", r.URL.EscapedPath())
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_ = json.NewEncoder(w).Encode(Cart{UserID: "user-1"})
	})

	cart, err := client.RemoveCartItem(context.Background(), testActor, "p 1")
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestUpstreamStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   pkgerrors.Code
	}{
		{"validation", http.StatusBadRequest, `{"message":"quantity too high"}`, pkgerrors.CodeValidation},
		{"unauthorized", http.StatusUnauthorized, `{}`, pkgerrors.CodeUnauthorized},
		{"forbidden", http.StatusForbidden, `{}`, pkgerrors.CodeForbidden},
		{"not found", http.StatusNotFound, `{"detail":"order not found"}`, pkgerrors.CodeNotFound},
		{"conflict", http.StatusConflict, `{"error":{"code":"invalid_transition","message":"order already cancelled"}}`, pkgerrors.CodeStateConflict},
		{"unprocessable", http.StatusUnprocessableEntity, `{"message":"illegal"}`, pkgerrors.CodeStateConflict},
		{"payment required", http.StatusPaymentRequired, `{}`, pkgerrors.CodeBudgetExceeded},
		{"budget code", http.StatusUnprocessableEntity, `{"code":"budget_exceeded","message":"over budget"}`, pkgerrors.CodeBudgetExceeded},
		{"unavailable items", http.StatusConflict, `{"code":"items_unavailable"}`, pkgerrors.CodeItemsUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := client.GetOrder(context.Background(), testActor, "o-1")
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, tc.code), "got %v", err)
		})
	}
}

func TestServerErrorKeepsRemoteMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"HiBob API returned 500"}`))
	})

	_, err := client.PushHRSync(context.Background(), testActor, "o-1")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, "HiBob API returned 500", RemoteMessage(err))
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		_, err := client.GetBudget(context.Background(), testActor)
		require.Error(t, err)
	}
	require.Error(t, client.Ping(context.Background()))

	_, err := client.GetBudget(context.Background(), testActor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls), "open breaker must short-circuit")
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	for i := 0; i < 5; i++ {
		_, _ = client.GetOrder(context.Background(), testActor, "o-1")
	}
	assert.NoError(t, client.Ping(context.Background()))
}

func TestTimeoutIsDependencyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client, err := New(config.OrderServiceConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond, BreakerMinRequests: 10, BreakerFailureRatio: 0.6}, nil, nil)
	require.NoError(t, err)

	_, err = client.GetCart(context.Background(), testActor)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(config.OrderServiceConfig{BaseURL: "orders", Timeout: time.Second}, nil, nil)
	assert.Error(t, err)
	_, err = New(config.OrderServiceConfig{BaseURL: "http://orders", Timeout: 0}, nil, nil)
	assert.Error(t, err)
}
