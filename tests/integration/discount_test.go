//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestValidateDiscount(t *testing.T) {
	resp := doPost(t, "/api/discounts/validate", validateDiscountRequest{
		Code:  "EARLYBIRD",
		Total: 100000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateDiscountResponse](t, resp)
	if !body.OK {
		t.Fatalf("expected ok, got error %q", body.Error)
	}
	if body.Discount == nil {
		t.Fatal("expected discount in response")
	}
	if body.Discount.AmountOff != 20000 {
		t.Errorf("amountOff: got %v, want 20000", body.Discount.AmountOff)
	}
	if body.Discount.Type != "fixed" {
		t.Errorf("type: got %q, want fixed", body.Discount.Type)
	}
}

func TestValidateDiscount_BelowMinimum(t *testing.T) {
	resp := doPost(t, "/api/discounts/validate", validateDiscountRequest{
		Code:  "EARLYBIRD",
		Total: 25000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	body := decodeJSON[validateDiscountResponse](t, resp)
	if body.OK {
		t.Fatal("expected rejection")
	}
	if body.Error == "" {
		t.Fatal("expected an error message")
	}
}

func TestValidateDiscount_UnknownCode(t *testing.T) {
	resp := doPost(t, "/api/discounts/validate", validateDiscountRequest{
		Code:  "NOSUCHCODE",
		Total: 100000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestValidateDiscount_CaseInsensitive(t *testing.T) {
	resp := doPost(t, "/api/discounts/validate", validateDiscountRequest{
		Code:  "earlybird",
		Total: 100000,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestValidateDiscount_MixedCaseStoredCode(t *testing.T) {
	// ShakaraFan is seeded with mixed casing, like partner codes ingested
	// verbatim from word lists. It must be found regardless of how the
	// shopper types it.
	for _, code := range []string{"ShakaraFan", "SHAKARAFAN", "shakarafan"} {
		resp := doPost(t, "/api/discounts/validate", validateDiscountRequest{
			Code:  code,
			Total: 50000,
		})

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			t.Fatalf("code %q: expected 200, got %d", code, resp.StatusCode)
		}

		body := decodeJSON[validateDiscountResponse](t, resp)
		resp.Body.Close()
		if !body.OK {
			t.Fatalf("code %q: expected ok, got error %q", code, body.Error)
		}
		if body.Discount.AmountOff != 5000 {
			t.Errorf("code %q: amountOff: got %v, want 5000", code, body.Discount.AmountOff)
		}
	}
}
