// Package models defines the trading shop domain records: the shop container,
// its capabilities, item records, and the per-item listing state.
package models

import (
	"encoding/json"
	"time"

	"github.com/holiman/uint256"

	"tradepost/internal/coin"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

// Shop is the shared container holding items, listings, and collected
// payments for one owner. The owner address is informational only; access
// control is by capability possession, never by address comparison.
type Shop struct {
	ID              id.ShopID
	Owner           string
	Profits         coin.Balance
	ItemCount       uint32
	AllowExtensions bool // retained for wire compatibility with early clients
	CreatedAt       time.Time
}

// OwnerCap authorizes owner-level operations on exactly one shop. It is a
// plain transferable value; possession is the entire authorization proof.
type OwnerCap struct {
	ID     id.CapID
	ShopID id.ShopID
}

// Grants reports whether the capability is bound to the given shop.
func (c OwnerCap) Grants(shopID id.ShopID) bool {
	return c.ShopID == shopID
}

// PurchaseCap is a single-use token granting the right to buy one specific
// exclusively listed item at or above a fixed minimum price. Consuming it
// (purchase or return) is the only way the exclusive listing ever goes away.
type PurchaseCap struct {
	ID       id.CapID
	ShopID   id.ShopID
	ItemID   id.ItemID
	MinPrice *uint256.Int

	consumed bool
}

// NewPurchaseCap mints a capability bound to the given shop and item.
func NewPurchaseCap(shopID id.ShopID, itemID id.ItemID, minPrice *uint256.Int) *PurchaseCap {
	return &PurchaseCap{
		ID:       id.NewCapID(),
		ShopID:   shopID,
		ItemID:   itemID,
		MinPrice: new(uint256.Int).Set(minPrice),
	}
}

// Consume marks the capability spent. Go cannot enforce move-only values, so
// single-use is a runtime flag checked on every use.
func (c *PurchaseCap) Consume() error {
	if c.consumed {
		return dErrors.New(dErrors.CodeCapConsumed, "purchase capability already consumed")
	}
	c.consumed = true
	return nil
}

// Consumed reports whether the capability has been spent.
func (c *PurchaseCap) Consumed() bool { return c.consumed }

// Borrow is the receipt returned alongside an item removed for in-place
// mutation. It must be redeemed by returning the item in the same operation
// sequence; redeeming is single-use.
type Borrow struct {
	ShopID id.ShopID
	ItemID id.ItemID

	redeemed bool
}

// NewBorrow mints a receipt bound to the given shop and item.
func NewBorrow(shopID id.ShopID, itemID id.ItemID) *Borrow {
	return &Borrow{ShopID: shopID, ItemID: itemID}
}

// Redeem marks the receipt used. Returns CodeCapConsumed if already redeemed.
func (b *Borrow) Redeem() error {
	if b.redeemed {
		return dErrors.New(dErrors.CodeCapConsumed, "borrow receipt already redeemed")
	}
	b.redeemed = true
	return nil
}

// Redeemed reports whether the receipt has been used.
func (b *Borrow) Redeemed() bool {
	return b.redeemed
}

// Item is an asset record held by a shop. Data is opaque to the trading core;
// Type selects the rule-checker that must approve regulated transfers.
type Item struct {
	ID   id.ItemID       `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ListingMode is the tagged per-item listing state. A single field rules out
// the fixed-price and exclusive flavors coexisting.
type ListingMode uint8

const (
	ModeNone ListingMode = iota
	ModeFixedPrice
	ModeExclusive
)

func (m ListingMode) String() string {
	switch m {
	case ModeFixedPrice:
		return "fixed_price"
	case ModeExclusive:
		return "exclusive"
	default:
		return "none"
	}
}

// Listing is the per-item sale state. For ModeFixedPrice, Price is the exact
// asking price; for ModeExclusive it is the minimum price and CapID names the
// purchase capability whose existence the listing represents.
type Listing struct {
	Mode  ListingMode
	Price *uint256.Int
	CapID id.CapID
}

// IsExclusive reports whether the listing pins the item to one counterparty.
func (l Listing) IsExclusive() bool { return l.Mode == ModeExclusive }
