// Package policy is the boundary to the external rule-checkers that approve
// transfers of regulated item types. The trading core only proves a checker
// exists (at lock time) and hands completed sales to it (as transfer
// requests); the checker's internal policy is out of scope.
package policy

import (
	"context"
	"sync"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

//go:generate mockgen -destination=mocks/rule_mock.go -package=mocks tradepost/internal/policy Rule

// Rule evaluates whether a completed sale may finalize.
type Rule interface {
	Approve(ctx context.Context, req TransferRequest) error
}

// TransferRequest is the opaque "pending approval" receipt a sale produces.
// The digest commits to the sale parameters so a checker can detect tampering
// without this package interpreting them.
type TransferRequest struct {
	ShopID   id.ShopID
	ItemID   id.ItemID
	ItemType string
	Paid     *uint256.Int
	Digest   []byte
}

// NewTransferRequest builds the receipt for a completed sale.
func NewTransferRequest(shopID id.ShopID, itemID id.ItemID, itemType string, paid *uint256.Int) TransferRequest {
	req := TransferRequest{
		ShopID:   shopID,
		ItemID:   itemID,
		ItemType: itemType,
		Paid:     new(uint256.Int).Set(paid),
	}
	req.Digest = req.digest()
	return req
}

func (r TransferRequest) digest() []byte {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(r.ShopID.String()))
	h.Write([]byte(r.ItemID.String()))
	h.Write([]byte(r.ItemType))
	paid := r.Paid.Bytes32()
	h.Write(paid[:])
	return h.Sum(nil)
}

// Verify recomputes the digest and reports whether the receipt is intact.
func (r TransferRequest) Verify() bool {
	if len(r.Digest) != blake2b.Size256 {
		return false
	}
	expected := r.digest()
	for i := range expected {
		if expected[i] != r.Digest[i] {
			return false
		}
	}
	return true
}

// Registry holds the rule-checker instances known for each item type.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewRegistry constructs an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register installs the rule-checker for an item type. Re-registering an
// already covered type is a conflict; checkers are replaced by governance,
// not overwritten.
func (r *Registry) Register(itemType string, rule Rule) error {
	if itemType == "" || rule == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "item type and rule are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[itemType]; ok {
		return dErrors.New(dErrors.CodeConflict, "rule already registered for item type")
	}
	r.rules[itemType] = rule
	return nil
}

// Has is the existence proof consumed at lock time: locking an item is only
// legal when a checker can eventually approve its sale.
func (r *Registry) Has(itemType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rules[itemType]
	return ok
}

// Confirm hands a receipt to the registered checker for final approval.
func (r *Registry) Confirm(ctx context.Context, req TransferRequest) error {
	if !req.Verify() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer request digest mismatch")
	}
	r.mu.RLock()
	rule, ok := r.rules[req.ItemType]
	r.mu.RUnlock()
	if !ok {
		return dErrors.New(dErrors.CodeNoTransferPolicy, "no rule registered for item type")
	}
	return rule.Approve(ctx, req)
}
