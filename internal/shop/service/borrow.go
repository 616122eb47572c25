package service

import (
	"context"
	"errors"

	"tradepost/internal/sentinel"
	"tradepost/internal/shop/models"
	"tradepost/internal/shop/store"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

// Borrow returns a copy of an item for inspection without removing it.
func (s *Service) Borrow(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, itemID id.ItemID) (models.Item, error) {
	if !cap.Grants(shopID) {
		return models.Item{}, dErrors.New(dErrors.CodeWrongCapability, "capability not bound to this shop")
	}
	var item models.Item
	err := s.translate(s.store.View(ctx, shopID, func(tx store.Tx) error {
		got, err := tx.Item(itemID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeItemNotFound, "item not held by this shop")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read item")
		}
		item = got
		return nil
	}))
	if err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// BorrowValue removes an item for in-place mutation and issues the receipt
// that forces it back. Listed items cannot be borrowed; the listing price
// would no longer describe the item being sold.
func (s *Service) BorrowValue(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, itemID id.ItemID) (models.Item, *models.Borrow, error) {
	var item models.Item
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		listing, err := listingState(tx, itemID)
		if err != nil {
			return err
		}
		if listing.Mode != models.ModeNone {
			return dErrors.New(dErrors.CodeItemListed, "listed items cannot be borrowed for mutation")
		}
		item, err = tx.DetachItem(itemID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeItemNotFound, "item not held by this shop")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach item")
		}
		return nil
	})
	if err != nil {
		return models.Item{}, nil, err
	}
	return item, models.NewBorrow(shopID, itemID), nil
}

// ReturnValue puts a borrowed item back, redeeming the receipt. The receipt's
// bindings must match the shop and the item being returned; the item count
// was never decremented, so none of the shop's invariants move.
func (s *Service) ReturnValue(ctx context.Context, shopID id.ShopID, item models.Item, borrow *models.Borrow) error {
	if borrow == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "borrow receipt is required")
	}
	// Reject a spent receipt before touching the store; a redeemed receipt
	// must never reattach anything.
	if borrow.Redeemed() {
		return dErrors.New(dErrors.CodeCapConsumed, "borrow receipt already redeemed")
	}
	if borrow.ShopID != shopID {
		return dErrors.New(dErrors.CodeWrongReceipt, "receipt not bound to this shop")
	}
	if borrow.ItemID != item.ID {
		return dErrors.New(dErrors.CodeWrongReceipt, "receipt not bound to this item")
	}
	err := s.update(ctx, shopID, func(tx store.Tx) error {
		if err := tx.AttachItem(item); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyExists) {
				return dErrors.New(dErrors.CodeConflict, "item already returned")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reattach item")
		}
		return nil
	})
	if err != nil {
		return err
	}
	return borrow.Redeem()
}
