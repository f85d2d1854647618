//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListTickets(t *testing.T) {
	resp := doGet(t, "/api/tickets")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	tickets := decodeJSON[[]catalogEntry](t, resp)
	if len(tickets) != 4 {
		t.Fatalf("expected 4 ticket tiers, got %d", len(tickets))
	}

	var ga *catalogEntry
	for i := range tickets {
		if tickets[i].SKU == "ga-2day" {
			ga = &tickets[i]
			break
		}
	}
	if ga == nil {
		t.Fatal("ticket ga-2day not found")
	}
	if ga.Name != "General Admission (2 Day)" {
		t.Errorf("name: got %q", ga.Name)
	}
	if ga.Price != 50000 {
		t.Errorf("price: got %v, want 50000", ga.Price)
	}
	if ga.Currency != "NGN" {
		t.Errorf("currency: got %q, want NGN", ga.Currency)
	}
	if ga.Badge != "Popular" {
		t.Errorf("badge: got %q, want Popular", ga.Badge)
	}
}

func TestListAddons(t *testing.T) {
	resp := doGet(t, "/api/addons")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	addons := decodeJSON[[]catalogEntry](t, resp)
	if len(addons) != 3 {
		t.Fatalf("expected 3 addons, got %d", len(addons))
	}

	// Sold-out entries stay listed so the storefront can render them greyed
	// out; they are only rejected at checkout.
	var locker *catalogEntry
	for i := range addons {
		if addons[i].SKU == "locker" {
			locker = &addons[i]
			break
		}
	}
	if locker == nil {
		t.Fatal("addon locker not found")
	}
	if locker.Available {
		t.Error("locker should be unavailable")
	}
}
