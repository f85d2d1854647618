package discount

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRuleRepo struct {
	rule           *Rule
	err            error
	incrementCalls int
}

func (m *mockRuleRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockRuleRepo) IncrementUses(_ context.Context, _ string) error {
	m.incrementCalls++
	return nil
}

func newEvaluatorAt(repo Repository, at time.Time) *Evaluator {
	e := NewEvaluator(repo)
	e.now = func() time.Time { return at }
	return e
}

func TestEvaluator_Validate(t *testing.T) {
	fixedNow := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	past := fixedNow.Add(-24 * time.Hour)
	future := fixedNow.Add(24 * time.Hour)

	tests := []struct {
		name       string
		repo       *mockRuleRepo
		code       string
		cart       Cart
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{
			name: "fixed amount on min total",
			repo: &mockRuleRepo{rule: &Rule{
				Code:     "EARLYBIRD",
				Type:     TypeFixed,
				Value:    decimal.NewFromInt(20000),
				MinTotal: decimal.NewFromInt(50000),
			}},
			code:       "EARLYBIRD",
			cart:       Cart{Total: decimal.NewFromInt(100000)},
			wantAmount: decimal.NewFromInt(20000),
		},
		{
			name: "percentage of subtotal",
			repo: &mockRuleRepo{rule: &Rule{
				Code:  "SHAKARA10",
				Type:  TypePercentage,
				Value: decimal.NewFromInt(10),
			}},
			code:       "SHAKARA10",
			cart:       Cart{Total: decimal.NewFromInt(80000)},
			wantAmount: decimal.NewFromInt(8000),
		},
		{
			name:    "unknown code",
			repo:    &mockRuleRepo{err: ErrInvalidCode},
			code:    "BOGUS",
			cart:    Cart{Total: decimal.NewFromInt(50000)},
			wantErr: ErrInvalidCode,
		},
		{
			name:    "empty code",
			repo:    &mockRuleRepo{},
			code:    "",
			cart:    Cart{Total: decimal.NewFromInt(50000)},
			wantErr: ErrInvalidCode,
		},
		{
			name: "below minimum total",
			repo: &mockRuleRepo{rule: &Rule{
				Code:     "EARLYBIRD",
				Type:     TypeFixed,
				Value:    decimal.NewFromInt(20000),
				MinTotal: decimal.NewFromInt(50000),
			}},
			code:    "EARLYBIRD",
			cart:    Cart{Total: decimal.NewFromInt(40000)},
			wantErr: ErrMinTotalNotMet,
		},
		{
			name: "not yet valid",
			repo: &mockRuleRepo{rule: &Rule{
				Code:      "DECEMBER",
				Type:      TypePercentage,
				Value:     decimal.NewFromInt(5),
				ValidFrom: &future,
			}},
			code:    "DECEMBER",
			cart:    Cart{Total: decimal.NewFromInt(50000)},
			wantErr: ErrExpired,
		},
		{
			name: "expired",
			repo: &mockRuleRepo{rule: &Rule{
				Code:       "EARLY",
				Type:       TypePercentage,
				Value:      decimal.NewFromInt(5),
				ValidUntil: &past,
			}},
			code:    "EARLY",
			cart:    Cart{Total: decimal.NewFromInt(50000)},
			wantErr: ErrExpired,
		},
		{
			name: "usage limit exhausted",
			repo: &mockRuleRepo{rule: &Rule{
				Code:    "SINGLE",
				Type:    TypeFixed,
				Value:   decimal.NewFromInt(1000),
				MaxUses: 1,
				Uses:    1,
			}},
			code:    "SINGLE",
			cart:    Cart{Total: decimal.NewFromInt(50000)},
			wantErr: ErrUsageLimitReached,
		},
		{
			name: "sku restriction not matched",
			repo: &mockRuleRepo{rule: &Rule{
				Code:         "VIPONLY",
				Type:         TypePercentage,
				Value:        decimal.NewFromInt(15),
				EligibleSKUs: []string{"vip-3day"},
			}},
			code:    "VIPONLY",
			cart:    Cart{Total: decimal.NewFromInt(50000), SKUs: []string{"day-pass"}},
			wantErr: ErrNotEligible,
		},
		{
			name: "sku restriction matched case-insensitively",
			repo: &mockRuleRepo{rule: &Rule{
				Code:         "VIPONLY",
				Type:         TypePercentage,
				Value:        decimal.NewFromInt(15),
				EligibleSKUs: []string{"VIP-3DAY"},
			}},
			code:       "VIPONLY",
			cart:       Cart{Total: decimal.NewFromInt(100000), SKUs: []string{"vip-3day"}},
			wantAmount: decimal.NewFromInt(15000),
		},
		{
			name: "customer restriction not matched",
			repo: &mockRuleRepo{rule: &Rule{
				Code:          "PERSONAL",
				Type:          TypeFixed,
				Value:         decimal.NewFromInt(5000),
				EligibleEmail: "vip@example.com",
			}},
			code:    "PERSONAL",
			cart:    Cart{Total: decimal.NewFromInt(50000), Email: "someone@example.com"},
			wantErr: ErrNotEligible,
		},
		{
			name: "fixed amount capped at subtotal",
			repo: &mockRuleRepo{rule: &Rule{
				Code:  "BIGOFF",
				Type:  TypeFixed,
				Value: decimal.NewFromInt(90000),
			}},
			code:       "BIGOFF",
			cart:       Cart{Total: decimal.NewFromInt(30000)},
			wantAmount: decimal.NewFromInt(30000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluatorAt(tt.repo, fixedNow)

			applied, err := e.Validate(context.Background(), tt.code, tt.cart)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(applied.ValueApplied),
				"want %s, got %s", tt.wantAmount, applied.ValueApplied)
			// Validation never consumes a usage slot.
			assert.Zero(t, tt.repo.incrementCalls)
		})
	}
}

func TestEvaluator_Validate_Deterministic(t *testing.T) {
	repo := &mockRuleRepo{rule: &Rule{
		Code:  "SHAKARA10",
		Type:  TypePercentage,
		Value: decimal.NewFromInt(10),
	}}
	e := newEvaluatorAt(repo, time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC))
	c := Cart{Total: decimal.NewFromInt(123450), SKUs: []string{"day-pass"}}

	first, err := e.Validate(context.Background(), "SHAKARA10", c)
	require.NoError(t, err)
	second, err := e.Validate(context.Background(), "SHAKARA10", c)
	require.NoError(t, err)

	assert.True(t, first.ValueApplied.Equal(second.ValueApplied))
}

func TestEvaluator_Validate_WrapsRepoError(t *testing.T) {
	repo := &mockRuleRepo{err: errors.New("connection refused")}
	e := NewEvaluator(repo)

	_, err := e.Validate(context.Background(), "ANY", Cart{Total: decimal.NewFromInt(1000)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup discount rule")
}
