// Package coin provides the balance and payment types used to settle sales.
// Amounts are 256-bit unsigned integers. A Balance can only grow by merging a
// Payment in and only shrink by splitting a Payment out, so the total supply
// held across balances and payments is conserved by construction.
package coin

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrInsufficient is returned when a split asks for more than is held.
	ErrInsufficient = errors.New("insufficient balance")
	// ErrSpent is returned when a payment is used twice.
	ErrSpent = errors.New("payment already spent")
)

// Balance is a mutable amount owned by exactly one holder. The zero value is
// an empty balance.
type Balance struct {
	amt uint256.Int
}

// Zero returns an empty balance.
func Zero() Balance {
	return Balance{}
}

// Amount returns a copy of the held amount.
func (b *Balance) Amount() *uint256.Int {
	return new(uint256.Int).Set(&b.amt)
}

// IsZero reports whether the balance holds nothing.
func (b *Balance) IsZero() bool {
	return b.amt.IsZero()
}

// Merge consumes the payment and adds its amount to the balance.
func (b *Balance) Merge(p *Payment) error {
	if p.spent {
		return ErrSpent
	}
	p.spent = true
	b.amt.Add(&b.amt, &p.amt)
	return nil
}

// Split extracts the given amount into a fresh payment. A nil amount takes
// everything. Returns ErrInsufficient without mutating when the balance does
// not cover the request.
func (b *Balance) Split(amount *uint256.Int) (*Payment, error) {
	if amount == nil {
		out := NewPayment(&b.amt)
		b.amt.Clear()
		return out, nil
	}
	if b.amt.Lt(amount) {
		return nil, ErrInsufficient
	}
	b.amt.Sub(&b.amt, amount)
	return NewPayment(amount), nil
}

// Payment is a single-use amount in flight between balances.
type Payment struct {
	amt   uint256.Int
	spent bool
}

// NewPayment mints a payment of the given amount. Callers at the ledger
// boundary are trusted to have debited the amount elsewhere.
func NewPayment(amount *uint256.Int) *Payment {
	p := &Payment{}
	if amount != nil {
		p.amt.Set(amount)
	}
	return p
}

// Amount returns a copy of the payment amount.
func (p *Payment) Amount() *uint256.Int {
	return new(uint256.Int).Set(&p.amt)
}

// Spent reports whether the payment has already been merged into a balance.
func (p *Payment) Spent() bool {
	return p.spent
}
