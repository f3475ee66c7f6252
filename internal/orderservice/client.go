package orderservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/perkshop-portal/pkg/config"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/angelmondragon/perkshop-portal/pkg/metrics"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	headerActingUser = "X-Acting-User"
	headerActingRole = "X-Acting-Role"

	maxResponseBytes = 1 << 20
)

type rawResponse struct {
	status int
	body   []byte
}

// Client is the typed HTTP client of the external order-service.
// Every call is bounded by the configured timeout and guarded by a circuit breaker.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*rawResponse]
	metrics *metrics.PortalMetrics
	logg    *logger.Logger
}

// New builds the order-service client from config.
func New(cfg config.OrderServiceConfig, m *metrics.PortalMetrics, logg *logger.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse order service url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("order service url must be absolute")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("order service timeout must be positive")
	}

	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		metrics: m,
		logg:    logg,
	}
	c.breaker = gobreaker.NewCircuitBreaker[*rawResponse](breakerSettings(cfg, logg))
	return c, nil
}

func breakerSettings(cfg config.OrderServiceConfig, logg *logger.Logger) gobreaker.Settings {
	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio
	return gobreaker.Settings{
		Name:        "order-service",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests || counts.Requests == 0 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		// A caller walking away is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "order-service circuit breaker state changed")
		},
	}
}

// Ping reports the order-service as unavailable while the breaker is open.
func (c *Client) Ping(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return errors.New("order-service circuit breaker open")
	}
	return nil
}

func (c *Client) GetCart(ctx context.Context, actor Actor) (*Cart, error) {
	var cart Cart
	if _, err := c.do(ctx, actor, "get_cart", http.MethodGet, "/cart", nil, nil, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) AddCartItem(ctx context.Context, actor Actor, req AddCartItemRequest) (*Cart, error) {
	var cart Cart
	if _, err := c.do(ctx, actor, "add_cart_item", http.MethodPost, "/cart/items", nil, req, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, actor Actor, productID string, req UpdateCartItemRequest) (*Cart, error) {
	var cart Cart
	path := "/cart/items/" + url.PathEscape(productID)
	if _, err := c.do(ctx, actor, "update_cart_item", http.MethodPatch, path, nil, req, &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

// RemoveCartItem deletes a line. A body-less 204 is followed by a fresh GET /cart.
func (c *Client) RemoveCartItem(ctx context.Context, actor Actor, productID string) (*Cart, error) {
	var cart Cart
	path := "/cart/items/" + url.PathEscape(productID)
	status, err := c.do(ctx, actor, "remove_cart_item", http.MethodDelete, path, nil, nil, &cart)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return c.GetCart(ctx, actor)
	}
	return &cart, nil
}

func (c *Client) CreateOrder(ctx context.Context, actor Actor, req CreateOrderRequest) (*Order, error) {
	var order Order
	if _, err := c.do(ctx, actor, "create_order", http.MethodPost, "/orders", nil, req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) ListOrders(ctx context.Context, actor Actor, params ListOrdersParams) (*OrderList, error) {
	query := url.Values{}
	params.Page.Encode(query)
	if params.Status != nil {
		query.Set("status", params.Status.String())
	}
	var list OrderList
	if _, err := c.do(ctx, actor, "list_orders", http.MethodGet, "/orders", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) GetOrder(ctx context.Context, actor Actor, orderID string) (*Order, error) {
	var order Order
	if _, err := c.do(ctx, actor, "get_order", http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, actor Actor, orderID string, update StatusUpdate) (*Order, error) {
	var order Order
	path := "/orders/" + url.PathEscape(orderID) + "/status"
	if _, err := c.do(ctx, actor, "update_order_status", http.MethodPatch, path, nil, update, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) UpdateOrderItem(ctx context.Context, actor Actor, orderID, itemID string, update ItemUpdate) (*Order, error) {
	var order Order
	path := "/orders/" + url.PathEscape(orderID) + "/items/" + url.PathEscape(itemID)
	if _, err := c.do(ctx, actor, "update_order_item", http.MethodPatch, path, nil, update, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) PushHRSync(ctx context.Context, actor Actor, orderID string) (*SyncResult, error) {
	var result SyncResult
	path := "/orders/" + url.PathEscape(orderID) + "/hibob-sync"
	if _, err := c.do(ctx, actor, "push_hrsync", http.MethodPost, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) RemoveHRSync(ctx context.Context, actor Actor, orderID string) (*SyncResult, error) {
	var result SyncResult
	path := "/orders/" + url.PathEscape(orderID) + "/hibob-sync"
	if _, err := c.do(ctx, actor, "remove_hrsync", http.MethodDelete, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetBudget(ctx context.Context, actor Actor) (*Budget, error) {
	var budget Budget
	if _, err := c.do(ctx, actor, "get_budget", http.MethodGet, "/users/me/budget", nil, nil, &budget); err != nil {
		return nil, err
	}
	return &budget, nil
}

func (c *Client) do(ctx context.Context, actor Actor, op, method, path string, query url.Values, in, out any) (int, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		c.metrics.ObserveUpstream(op, result, time.Since(start))
	}()

	req, err := c.newRequest(ctx, actor, method, path, query, in)
	if err != nil {
		result = metrics.ResultFailure
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build order-service request")
	}

	resp, err := c.breaker.Execute(func() (*rawResponse, error) {
		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read order-service response: %w", err)
		}
		if httpResp.StatusCode >= http.StatusInternalServerError {
			return nil, parseUpstreamError(op, httpResp.StatusCode, body)
		}
		return &rawResponse{status: httpResp.StatusCode, body: body}, nil
	})
	if err != nil {
		result = metrics.ResultFailure
		return 0, c.mapTransportError(op, err)
	}

	if resp.status >= http.StatusBadRequest {
		result = metrics.ResultRejected
		return resp.status, mapUpstream(parseUpstreamError(op, resp.status, resp.body))
	}

	if out != nil && len(bytes.TrimSpace(resp.body)) > 0 {
		if err := json.Unmarshal(resp.body, out); err != nil {
			result = metrics.ResultFailure
			return resp.status, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order-service response")
		}
	}
	return resp.status, nil
}

func (c *Client) newRequest(ctx context.Context, actor Actor, method, path string, query url.Values, in any) (*http.Request, error) {
	// path segments arrive escaped; keep both forms so ids containing "/" survive.
	target := *c.baseURL
	rawPath := strings.TrimRight(c.baseURL.EscapedPath(), "/") + path
	unescaped, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("invalid request path: %w", err)
	}
	target.Path = unescaped
	target.RawPath = rawPath
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor.Token != "" {
		req.Header.Set("Authorization", "Bearer "+actor.Token)
	}
	if actor.UserID != "" {
		req.Header.Set(headerActingUser, actor.UserID)
	}
	if actor.Role != "" {
		req.Header.Set(headerActingRole, actor.Role.String())
	}
	return req, nil
}

func (c *Client) mapTransportError(op string, err error) error {
	var up *UpstreamError
	switch {
	case errors.As(err, &up):
		return mapUpstream(up)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order-service temporarily unavailable")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order-service request failed").
			WithDetails(map[string]any{"operation": op})
	}
}
