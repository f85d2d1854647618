package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator validates a discount code against the current cart state and
// returns the amount it authorizes. Implementations must be side-effect-free:
// validating never consumes a usage slot.
type Validator interface {
	Validate(ctx context.Context, code string, c Cart) (*Applied, error)
}

// Evaluator implements Validator by looking up rules from a Repository and
// applying them via Apply. The same code against the same cart state always
// yields the same ValueApplied.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Validate resolves the rule for code, checks temporal validity and usage
// limits, and computes the authorized amount against the cart. The usage
// counter is only read here; consumption happens at order finalization.
func (e *Evaluator) Validate(ctx context.Context, code string, c Cart) (*Applied, error) {
	if code == "" {
		return nil, ErrInvalidCode
	}

	rule, err := e.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			return nil, ErrInvalidCode
		}
		return nil, errors.Wrap(err, "lookup discount rule")
	}

	now := e.now()
	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrUsageLimitReached
	}

	applied, err := Apply(rule, c)
	if err != nil {
		return nil, err
	}
	return &applied, nil
}
