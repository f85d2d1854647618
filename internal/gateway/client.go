// Package gateway talks to the payment gateway's transaction-lookup API.
// The result of a verify call, never the webhook payload, is what decides
// whether funds were actually captured.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ErrNotSuccessful is returned when the gateway definitively reports the
// transaction as anything other than successful. Redelivering the webhook
// would reach the same conclusion, so this is terminal. Every other error
// from VerifyTransaction is transient: the caller should ask the gateway to
// redeliver.
var ErrNotSuccessful = errors.New("gateway: transaction not successful")

// StatusSuccessful is the gateway status for a fully captured charge.
const StatusSuccessful = "successful"

// VerifiedTransaction is the gateway's authoritative view of a transaction.
type VerifiedTransaction struct {
	ID       int64
	TxRef    string
	Status   string
	Amount   decimal.Decimal
	Currency string
	// Raw keeps the unmodified data object for verification evidence.
	Raw json.RawMessage
}

// Verifier confirms a transaction's status and amount with the gateway.
type Verifier interface {
	VerifyTransaction(ctx context.Context, id int64) (*VerifiedTransaction, error)
}

// Config holds the gateway client settings.
type Config struct {
	// BaseURL of the gateway API, e.g. https://api.flutterwave.com.
	BaseURL string
	// SecretKey authenticates server-to-server calls as a bearer token.
	SecretKey string
	// Timeout bounds each verify call. Defaults to 15s: the verify happens
	// inside the webhook request path, so it must not hang for long.
	Timeout time.Duration
	// TracerProvider enables spans around verify calls. Optional.
	TracerProvider trace.TracerProvider
}

// Client implements Verifier against a Flutterwave-compatible REST API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	tracer    trace.Tracer
}

// NewClient creates a gateway client from the given config.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		secretKey: cfg.SecretKey,
		http:      &http.Client{Timeout: timeout},
		tracer:    tp.Tracer("gateway"),
	}
}

// verifyResponse is the gateway's envelope for the transaction verify call.
type verifyResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type verifyData struct {
	ID       int64           `json:"id"`
	TxRef    string          `json:"tx_ref"`
	Status   string          `json:"status"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// VerifyTransaction calls the gateway's transaction-lookup endpoint and
// returns the verified status and amount. It fails closed: a network error,
// a non-200 response, or a body it cannot parse never yields a verified
// transaction.
func (c *Client) VerifyTransaction(ctx context.Context, id int64) (*VerifiedTransaction, error) {
	ctx, span := c.tracer.Start(ctx, "VerifyTransaction",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("gateway.transaction_id", id)),
	)
	defer span.End()

	url := fmt.Sprintf("%s/v3/transactions/%d/verify", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build verify request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "verify request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read verify response")
	}

	// 404 means the gateway has no such transaction: definitive, not
	// transient. Other non-200s (rate limits, 5xx) are worth a redelivery.
	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Wrapf(ErrNotSuccessful, "transaction %d unknown to gateway", id)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("verify returned status %d", resp.StatusCode)
	}

	var envelope verifyResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.Wrap(err, "decode verify response")
	}
	if envelope.Status != "success" {
		return nil, errors.Wrapf(ErrNotSuccessful, "gateway said %q: %s", envelope.Status, envelope.Message)
	}

	var data verifyData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, errors.Wrap(err, "decode verify data")
	}
	if data.Status != StatusSuccessful {
		return nil, errors.Wrapf(ErrNotSuccessful, "transaction status %q", data.Status)
	}

	return &VerifiedTransaction{
		ID:       data.ID,
		TxRef:    data.TxRef,
		Status:   data.Status,
		Amount:   data.Amount,
		Currency: data.Currency,
		Raw:      envelope.Data,
	}, nil
}
