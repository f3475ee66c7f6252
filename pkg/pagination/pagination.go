package pagination

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultPerPage is the standard page size when per_page is not provided.
	DefaultPerPage = 25
	// MaxPerPage caps how many rows any list call can request.
	MaxPerPage = 100
)

// Params holds page-number pagination inputs from controllers or services.
type Params struct {
	Page    int
	PerPage int
}

// Page is the list envelope used by the order-service and echoed by the portal.
type Page[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// Normalize enforces page >= 1 and the default/maximum page size.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = 1
	}
	p.PerPage = NormalizePerPage(p.PerPage)
	return p
}

// NormalizePerPage enforces the configured default and maximum page sizes.
func NormalizePerPage(perPage int) int {
	if perPage <= 0 {
		return DefaultPerPage
	}
	if perPage > MaxPerPage {
		return MaxPerPage
	}
	return perPage
}

// Encode writes the params onto a query string.
func (p Params) Encode(values url.Values) {
	p = p.Normalize()
	values.Set("page", strconv.Itoa(p.Page))
	values.Set("per_page", strconv.Itoa(p.PerPage))
}

// HasNext reports whether another page exists after this one.
func (p Page[T]) HasNext() bool {
	if p.PerPage <= 0 {
		return false
	}
	return p.Page*p.PerPage < p.Total
}

// FromQuery reads page/per_page from a query string, ignoring malformed values.
func FromQuery(values url.Values) Params {
	var p Params
	if raw := strings.TrimSpace(values.Get("page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.Page = n
		}
	}
	if raw := strings.TrimSpace(values.Get("per_page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			p.PerPage = n
		}
	}
	return p.Normalize()
}
