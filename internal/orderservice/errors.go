package orderservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

// UpstreamError keeps the raw order-service failure behind a typed portal error.
type UpstreamError struct {
	Operation string
	Status    int
	Code      string
	Message   string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("order-service %s: status %d", e.Operation, e.Status)
	}
	return fmt.Sprintf("order-service %s: status %d: %s", e.Operation, e.Status, e.Message)
}

// RemoteMessage returns the order-service message carried by err, if any.
func RemoteMessage(err error) string {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up.Message
	}
	return ""
}

// errorBody accepts both the nested portal envelope and flat {code,message|detail} bodies.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func parseUpstreamError(operation string, status int, body []byte) *UpstreamError {
	up := &UpstreamError{Operation: operation, Status: status}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		switch {
		case parsed.Error != nil:
			up.Code = parsed.Error.Code
			up.Message = parsed.Error.Message
		default:
			up.Code = parsed.Code
			up.Message = firstNonEmpty(parsed.Message, parsed.Detail)
		}
	}
	if up.Message == "" {
		up.Message = strings.TrimSpace(string(body))
	}
	return up
}

// mapUpstream converts an order-service failure into the portal error taxonomy.
func mapUpstream(up *UpstreamError) error {
	code := strings.ToLower(up.Code)
	switch {
	case up.Status == http.StatusPaymentRequired || code == "budget_exceeded":
		return wrapUpstream(pkgerrors.CodeBudgetExceeded, up, "order exceeds available budget")
	case code == "items_unavailable":
		return wrapUpstream(pkgerrors.CodeItemsUnavailable, up, "cart contains unavailable items")
	case up.Status == http.StatusBadRequest:
		return wrapUpstream(pkgerrors.CodeValidation, up, "order-service rejected the request")
	case up.Status == http.StatusUnauthorized:
		return wrapUpstream(pkgerrors.CodeUnauthorized, up, "order-service rejected credentials")
	case up.Status == http.StatusForbidden:
		return wrapUpstream(pkgerrors.CodeForbidden, up, "not allowed by order-service")
	case up.Status == http.StatusNotFound:
		return wrapUpstream(pkgerrors.CodeNotFound, up, "resource not found")
	case up.Status == http.StatusConflict || up.Status == http.StatusUnprocessableEntity:
		return wrapUpstream(pkgerrors.CodeStateConflict, up, "order-service state conflict")
	default:
		return wrapUpstream(pkgerrors.CodeDependency, up, "order-service unavailable")
	}
}

func wrapUpstream(code pkgerrors.Code, up *UpstreamError, fallback string) error {
	msg := fallback
	if up.Message != "" && code != pkgerrors.CodeDependency {
		msg = up.Message
	}
	return pkgerrors.Wrap(code, up, msg).WithDetails(map[string]any{
		"upstream_status": up.Status,
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
