package cart

import (
	cartsvc "github.com/angelmondragon/perkshop-portal/internal/cart"
	checkoutsvc "github.com/angelmondragon/perkshop-portal/internal/checkout"
	"github.com/angelmondragon/perkshop-portal/pkg/money"
)

type itemView struct {
	cartsvc.Item
	PriceChanged        bool   `json:"price_changed"`
	PriceDiff           int64  `json:"price_diff"`
	PriceAtAddDisplay   string `json:"price_at_add_display"`
	CurrentPriceDisplay string `json:"current_price_display"`
}

type cartView struct {
	UserID              string     `json:"user_id"`
	Items               []itemView `json:"items"`
	ItemCount           int        `json:"item_count"`
	TotalAtAdd          int64      `json:"total_at_add"`
	TotalCurrent        int64      `json:"total_current"`
	TotalCurrentDisplay string     `json:"total_current_display"`
	HasPriceChanges     bool       `json:"has_price_changes"`
	HasUnavailableItems bool       `json:"has_unavailable_items"`
}

type summaryView struct {
	*checkoutsvc.Summary
	Cart                cartView `json:"cart"`
	BudgetAvailableText string   `json:"budget_available_display,omitempty"`
}

func formatterFunc(f *money.Formatter) func(int64) string {
	if f == nil {
		return money.Format
	}
	return f.Format
}

func newCartView(c *cartsvc.Cart, f *money.Formatter) cartView {
	format := formatterFunc(f)
	view := cartView{Items: []itemView{}}
	if c == nil {
		return view
	}
	view.UserID = c.UserID
	for _, item := range c.Items {
		view.Items = append(view.Items, itemView{
			Item:                item,
			PriceChanged:        item.PriceChanged(),
			PriceDiff:           item.PriceDiff(),
			PriceAtAddDisplay:   format(item.PriceAtAdd),
			CurrentPriceDisplay: format(item.CurrentPrice),
		})
	}
	view.ItemCount = c.ItemCount()
	view.TotalAtAdd = c.TotalAtAdd()
	view.TotalCurrent = c.TotalCurrent()
	view.TotalCurrentDisplay = format(view.TotalCurrent)
	view.HasPriceChanges = c.HasPriceChanges()
	view.HasUnavailableItems = c.HasUnavailableItems()
	return view
}

func newSummaryView(s *checkoutsvc.Summary, f *money.Formatter) summaryView {
	view := summaryView{Summary: s, Cart: newCartView(s.Cart, f)}
	if s.Budget != nil {
		view.BudgetAvailableText = formatterFunc(f)(s.Budget.AvailableBudgetCents)
	}
	return view
}
