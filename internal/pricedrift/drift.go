package pricedrift

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/angelmondragon/perkshop-portal/internal/cart"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

// Change is one cart line whose catalog price moved since it was added.
type Change struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	OldPrice    int64  `json:"old_price"`
	NewPrice    int64  `json:"new_price"`
	Delta       int64  `json:"delta"`
}

// Report lists every drifted line in cart order. Token fingerprints the exact
// old and new prices listed; it is empty when nothing drifted.
type Report struct {
	Changes []Change `json:"changes"`
	Token   string   `json:"token,omitempty"`
}

func (r Report) HasChanges() bool {
	return len(r.Changes) > 0
}

// TotalDelta is the signed effect of all drift on the cart total.
func (r Report) TotalDelta() int64 {
	var total int64
	for _, change := range r.Changes {
		total += change.Delta * int64(change.Quantity)
	}
	return total
}

// Detect compares price_at_add against current_price for every line. It never touches the cart.
func Detect(c *cart.Cart) Report {
	report := Report{Changes: []Change{}}
	if c == nil {
		return report
	}
	for _, item := range c.Items {
		if !item.PriceChanged() {
			continue
		}
		report.Changes = append(report.Changes, Change{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			OldPrice:    item.PriceAtAdd,
			NewPrice:    item.CurrentPrice,
			Delta:       item.PriceDiff(),
		})
	}
	report.Token = fingerprint(report.Changes)
	return report
}

func fingerprint(changes []Change) string {
	if len(changes) == 0 {
		return ""
	}
	h := sha256.New()
	for _, change := range changes {
		h.Write([]byte(change.ProductID))
		h.Write([]byte{0})
		h.Write(strconv.AppendInt(nil, change.OldPrice, 10))
		h.Write([]byte{0})
		h.Write(strconv.AppendInt(nil, change.NewPrice, 10))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Gate blocks checkout until the caller confirms the drift it was shown.
// acceptedToken must equal report.Token; a token taken from an earlier set of
// prices no longer matches once any listed price moves again.
func Gate(report Report, acceptedToken string) error {
	if !report.HasChanges() || (acceptedToken != "" && acceptedToken == report.Token) {
		return nil
	}
	message := "prices changed since items were added; confirm to continue"
	if acceptedToken != "" {
		message = "prices changed again since they were confirmed; review and confirm to continue"
	}
	return pkgerrors.New(pkgerrors.CodePriceConfirmation, message).
		WithDetails(map[string]any{
			"changes":           report.Changes,
			"total_delta":       report.TotalDelta(),
			"price_drift_token": report.Token,
		})
}
