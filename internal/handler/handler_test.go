package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nini3008/shakara-sub001/internal/domain/catalog"
	"github.com/nini3008/shakara-sub001/internal/domain/discount"
	"github.com/nini3008/shakara-sub001/internal/domain/order"
	"github.com/nini3008/shakara-sub001/internal/domain/reservation"
	"github.com/nini3008/shakara-sub001/internal/gateway"
	"github.com/nini3008/shakara-sub001/internal/webhook"
)

type mockCatalog struct {
	entries []catalog.Entry
	err     error
}

func (m *mockCatalog) ListByCategory(_ context.Context, category catalog.Category) ([]catalog.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Entry
	for _, e := range m.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockCatalog) GetBySKUs(_ context.Context, skus []string) ([]catalog.Entry, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Entry
	for _, e := range m.entries {
		for _, sku := range skus {
			if e.SKU == sku {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

type mockValidator struct {
	applied *discount.Applied
	err     error
}

func (m *mockValidator) Validate(_ context.Context, _ string, _ discount.Cart) (*discount.Applied, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.applied, nil
}

type mockReservations struct {
	created []*reservation.Reservation
	byRef   map[string]*reservation.Reservation
}

func (m *mockReservations) Create(_ context.Context, r *reservation.Reservation) error {
	m.created = append(m.created, r)
	return nil
}

func (m *mockReservations) GetByTxRef(_ context.Context, txRef string) (*reservation.Reservation, error) {
	r, ok := m.byRef[txRef]
	if !ok {
		return nil, reservation.ErrNotFound
	}
	return r, nil
}

func (m *mockReservations) ExpireBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockOrders struct {
	orders map[string]*order.Order
	err    error
}

func (m *mockOrders) GetByTxRef(_ context.Context, txRef string) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[txRef]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type mockVerifier struct {
	tx  *gateway.VerifiedTransaction
	err error
}

func (m *mockVerifier) VerifyTransaction(_ context.Context, _ int64) (*gateway.VerifiedTransaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.tx, nil
}

type mockStore struct {
	reservations map[string]*reservation.Reservation
	promoteErr   error
	promoted     []*order.Order
}

func (m *mockStore) GetReservation(_ context.Context, txRef string) (*reservation.Reservation, error) {
	r, ok := m.reservations[txRef]
	if !ok {
		return nil, reservation.ErrNotFound
	}
	return r, nil
}

func (m *mockStore) Promote(_ context.Context, o *order.Order, _ string) error {
	if m.promoteErr != nil {
		return m.promoteErr
	}
	m.promoted = append(m.promoted, o)
	return nil
}

const testSecret = "wh-secret"

type fixture struct {
	catalog   *mockCatalog
	discounts *mockValidator
	orders    *mockOrders
	verifier  *mockVerifier
	store     *mockStore
	mux       *http.ServeMux
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: &mockCatalog{entries: []catalog.Entry{
			{SKU: "ga-2day", Name: "GA 2-Day", Category: catalog.CategoryTicket, Price: decimal.NewFromInt(50000), Currency: "NGN", Available: true},
			{SKU: "parking", Name: "Parking Pass", Category: catalog.CategoryAddon, Price: decimal.NewFromInt(5000), Currency: "NGN", Available: true},
		}},
		discounts: &mockValidator{},
		orders:    &mockOrders{orders: map[string]*order.Order{}},
		verifier:  &mockVerifier{},
		store:     &mockStore{reservations: map[string]*reservation.Reservation{}},
	}
	repo := &mockReservations{byRef: map[string]*reservation.Reservation{}}
	svc := reservation.NewService(f.catalog, f.discounts, repo)
	rec := webhook.NewReconciler([]byte(testSecret), f.verifier, f.store)

	h := NewHandler(f.catalog, f.discounts, svc, f.orders, rec)
	f.mux = http.NewServeMux()
	h.Register(f.mux)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func TestTickets(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/api/tickets", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got []catalogEntryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "ga-2day", got[0].SKU)
	assert.Equal(t, "NGN", got[0].Currency)
}

func TestAddons_StoreFailureReturnsEmptyList(t *testing.T) {
	f := newFixture(t)
	f.catalog.err = errors.New("connection refused")

	w := f.do(t, http.MethodGet, "/api/addons", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestValidateDiscount(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newFixture(t)
		f.discounts.applied = &discount.Applied{
			Code:         "EARLYBIRD",
			Type:         discount.TypeFixed,
			ValueApplied: decimal.NewFromInt(20000),
		}

		w := f.do(t, http.MethodPost, "/api/discounts/validate", validateDiscountRequest{
			Code:  "EARLYBIRD",
			Total: decimal.NewFromInt(100000),
		})

		require.Equal(t, http.StatusOK, w.Code)
		var got validateDiscountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.True(t, got.OK)
		require.NotNil(t, got.Discount)
		assert.True(t, got.Discount.AmountOff.Equal(decimal.NewFromInt(20000)))
	})

	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t)
		f.discounts.err = discount.ErrMinTotalNotMet

		w := f.do(t, http.MethodPost, "/api/discounts/validate", validateDiscountRequest{
			Code:  "EARLYBIRD",
			Total: decimal.NewFromInt(30000),
		})

		require.Equal(t, http.StatusBadRequest, w.Code)
		var got validateDiscountResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.False(t, got.OK)
		assert.NotEmpty(t, got.Error)
	})

	t.Run("missing code", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/api/discounts/validate", validateDiscountRequest{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.discounts.err = errors.New("connection refused")
		w := f.do(t, http.MethodPost, "/api/discounts/validate", validateDiscountRequest{Code: "EARLYBIRD"})
		require.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func validPrepareRequest() prepareCheckoutRequest {
	return prepareCheckoutRequest{
		FirstName: "Ada",
		LastName:  "Obi",
		Email:     "ada@example.com",
		Lines: []prepareLineRequest{
			{SKU: "ga-2day", Category: "ticket", Quantity: 2},
		},
	}
}

func TestPrepareCheckout(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodPost, "/api/checkout/prepare", validPrepareRequest())

		require.Equal(t, http.StatusOK, w.Code)
		var got prepareCheckoutResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Contains(t, got.TxRef, "SHKR-")
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(100000)), got.Amount.String())
		assert.Equal(t, "NGN", got.Currency)
	})

	t.Run("validation error", func(t *testing.T) {
		f := newFixture(t)
		req := validPrepareRequest()
		req.Email = "not-an-email"

		w := f.do(t, http.MethodPost, "/api/checkout/prepare", req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var got fieldErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "email", got.Field)
	})

	t.Run("discount rejected", func(t *testing.T) {
		f := newFixture(t)
		f.discounts.err = discount.ErrExpired
		req := validPrepareRequest()
		req.DiscountCode = "EARLYBIRD"

		w := f.do(t, http.MethodPost, "/api/checkout/prepare", req)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var got fieldErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "discountCode", got.Field)
	})

	t.Run("discount lookup failure is a server error", func(t *testing.T) {
		f := newFixture(t)
		f.discounts.err = errors.New("lookup discount rule: connection refused")
		req := validPrepareRequest()
		req.DiscountCode = "EARLYBIRD"

		w := f.do(t, http.MethodPost, "/api/checkout/prepare", req)

		require.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		f := newFixture(t)
		req := httptest.NewRequest(http.MethodPost, "/api/checkout/prepare", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		f.mux.ServeHTTP(w, req)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetOrder(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		f := newFixture(t)
		f.orders.orders["SHKR-abc"] = &order.Order{
			TxRef:    "SHKR-abc",
			Amount:   decimal.NewFromInt(80000),
			Currency: "NGN",
			Status:   order.StatusPaid,
		}

		w := f.do(t, http.MethodGet, "/api/orders/SHKR-abc", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var got orderResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "SHKR-abc", got.TxRef)
		assert.Equal(t, order.StatusPaid, got.Status)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		w := f.do(t, http.MethodGet, "/api/orders/SHKR-missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func webhookBody(txID int64, txRef string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"charge.completed","data":{"id":%d,"tx_ref":%q,"status":"successful"}}`,
		txID, txRef,
	))
}

func (f *fixture) doWebhook(t *testing.T, body []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func TestWebhook(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		f := newFixture(t)
		amount := decimal.NewFromInt(80000)
		f.store.reservations["SHKR-abc"] = &reservation.Reservation{
			TxRef:    "SHKR-abc",
			Amount:   amount,
			Currency: "NGN",
			Status:   reservation.StatusPending,
		}
		f.verifier.tx = &gateway.VerifiedTransaction{
			ID:       42,
			TxRef:    "SHKR-abc",
			Status:   gateway.StatusSuccessful,
			Amount:   amount,
			Currency: "NGN",
		}

		body := webhookBody(42, "SHKR-abc")
		w := f.doWebhook(t, body, webhook.Sign([]byte(testSecret), body))

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, f.store.promoted, 1)
		assert.Equal(t, "SHKR-abc", f.store.promoted[0].TxRef)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture(t)
		body := webhookBody(42, "SHKR-abc")

		w := f.doWebhook(t, body, "deadbeef")

		require.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, f.store.promoted)
	})

	t.Run("missing signature", func(t *testing.T) {
		f := newFixture(t)
		w := f.doWebhook(t, webhookBody(42, "SHKR-abc"), "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("ignored event acknowledged", func(t *testing.T) {
		f := newFixture(t)
		body := []byte(`{"event":"charge.refunded","data":{"id":42,"tx_ref":"SHKR-abc"}}`)

		w := f.doWebhook(t, body, webhook.Sign([]byte(testSecret), body))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, f.store.promoted)
	})

	t.Run("transient verify failure asks for redelivery", func(t *testing.T) {
		f := newFixture(t)
		f.verifier.err = errors.New("gateway timeout")
		body := webhookBody(42, "SHKR-abc")

		w := f.doWebhook(t, body, webhook.Sign([]byte(testSecret), body))

		require.Equal(t, http.StatusBadGateway, w.Code)
	})
}
