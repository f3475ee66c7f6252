package pricedrift

import (
	"testing"

	"github.com/angelmondragon/perkshop-portal/internal/cart"
	pkgerrors "github.com/angelmondragon/perkshop-portal/pkg/errors"
)

func TestDetectNoDrift(t *testing.T) {
	c := &cart.Cart{Items: []cart.Item{
		{ProductID: "a", Quantity: 1, PriceAtAdd: 1000, CurrentPrice: 1000},
		{ProductID: "b", Quantity: 2, PriceAtAdd: 250, CurrentPrice: 250},
	}}
	report := Detect(c)
	if report.HasChanges() || c.HasPriceChanges() {
		t.Fatalf("expected no drift, got %+v", report)
	}
	if report.Token != "" {
		t.Fatalf("expected no token without drift, got %q", report.Token)
	}
	if err := Gate(report, ""); err != nil {
		t.Fatalf("gate should pass without drift: %v", err)
	}
}

func TestDetectSingleChangedItem(t *testing.T) {
	c := &cart.Cart{Items: []cart.Item{
		{ProductID: "a", ProductName: "Headphones", Quantity: 1, PriceAtAdd: 1000, CurrentPrice: 1000},
		{ProductID: "b", ProductName: "Desk lamp", Quantity: 2, PriceAtAdd: 250, CurrentPrice: 250},
	}}
	c.Items[1].CurrentPrice = 199

	report := Detect(c)
	if !c.HasPriceChanges() || !report.HasChanges() {
		t.Fatal("expected drift after one price change")
	}
	if len(report.Changes) != 1 {
		t.Fatalf("expected exactly one change, got %d", len(report.Changes))
	}
	change := report.Changes[0]
	if change.ProductID != "b" || change.OldPrice != 250 || change.NewPrice != 199 || change.Delta != -51 {
		t.Fatalf("unexpected change %+v", change)
	}
	if report.TotalDelta() != -102 {
		t.Fatalf("expected total delta -102, got %d", report.TotalDelta())
	}
}

func TestGateRequiresConfirmation(t *testing.T) {
	c := &cart.Cart{Items: []cart.Item{{ProductID: "a", Quantity: 1, PriceAtAdd: 1000, CurrentPrice: 1200}}}
	report := Detect(c)

	err := Gate(report, "")
	if !pkgerrors.IsCode(err, pkgerrors.CodePriceConfirmation) {
		t.Fatalf("expected confirmation error, got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	if !ok {
		t.Fatal("expected details map")
	}
	changes, ok := details["changes"].([]Change)
	if !ok || len(changes) != 1 || changes[0].Delta != 200 {
		t.Fatalf("expected the drifted item in details, got %+v", details["changes"])
	}

	if details["price_drift_token"] != report.Token || report.Token == "" {
		t.Fatalf("expected token %q in details, got %v", report.Token, details["price_drift_token"])
	}

	if err := Gate(report, report.Token); err != nil {
		t.Fatalf("accepted drift should pass: %v", err)
	}
	if c.Items[0].PriceAtAdd != 1000 {
		t.Fatal("gate must not adjust the cart")
	}
}

func TestGateRejectsTokenForEarlierPrices(t *testing.T) {
	c := &cart.Cart{Items: []cart.Item{{ProductID: "a", Quantity: 1, PriceAtAdd: 1000, CurrentPrice: 1200}}}
	confirmed := Detect(c).Token

	c.Items[0].CurrentPrice = 4900
	report := Detect(c)
	if report.Token == confirmed {
		t.Fatal("token must change when a drifted price moves again")
	}

	err := Gate(report, confirmed)
	if !pkgerrors.IsCode(err, pkgerrors.CodePriceConfirmation) {
		t.Fatalf("expected confirmation error for stale token, got %v", err)
	}
	if err := Gate(report, "not-a-token"); !pkgerrors.IsCode(err, pkgerrors.CodePriceConfirmation) {
		t.Fatalf("expected confirmation error for unknown token, got %v", err)
	}
}

func TestTokenIsStableForSamePrices(t *testing.T) {
	build := func() *cart.Cart {
		return &cart.Cart{Items: []cart.Item{
			{ProductID: "a", Quantity: 1, PriceAtAdd: 1000, CurrentPrice: 1200},
			{ProductID: "b", Quantity: 3, PriceAtAdd: 500, CurrentPrice: 450},
		}}
	}
	first := Detect(build())
	second := Detect(build())
	if first.Token == "" || first.Token != second.Token {
		t.Fatalf("expected identical tokens, got %q and %q", first.Token, second.Token)
	}

	changedQuantity := build()
	changedQuantity.Items[1].Quantity = 1
	if Detect(changedQuantity).Token != first.Token {
		t.Fatal("quantity does not affect which prices were confirmed")
	}
}
