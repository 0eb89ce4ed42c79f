package telegram

import (
	"strings"
	"testing"

	"GroceryScanner/internal/domain"
)

func TestBuildDigestTruncates(t *testing.T) {
	t.Parallel()

	changes := []domain.PriceChangeEvent{
		{ProductName: "Milk 1L", OldPrice: 20, NewPrice: 18, ChangePercent: -10},
		{ProductName: "Bread", OldPrice: 15, NewPrice: 16, ChangePercent: 6.67},
		{ProductName: "Eggs 6pk", OldPrice: 32, NewPrice: 30, ChangePercent: -6.25},
		{ProductName: "Rice 2kg", OldPrice: 45, NewPrice: 40, ChangePercent: -11.1},
		{ProductName: "Butter 500g", OldPrice: 60, NewPrice: 55, ChangePercent: -8.3},
	}

	digest := buildDigest(domain.StoreShoprite, "food", changes)

	if !strings.Contains(digest, "Price changes at shoprite (food): 5") {
		t.Fatalf("missing header: %s", digest)
	}
	if !strings.Contains(digest, "Milk 1L: R20.00 -> R18.00 (-10.0%)") {
		t.Fatalf("missing first change line: %s", digest)
	}
	if !strings.Contains(digest, "... and 2 more") {
		t.Fatalf("missing truncation marker: %s", digest)
	}
	if strings.Contains(digest, "Butter") {
		t.Fatalf("digest should not list changes past the cap: %s", digest)
	}
}
