package service

import (
	"context"

	"github.com/holiman/uint256"

	"tradepost/internal/shop/models"
	"tradepost/internal/shop/store"
	id "tradepost/pkg/domain"
)

// ShopView is the read-only projection of a shop returned by Inspect.
type ShopView struct {
	ID        id.ShopID
	Owner     string
	ItemCount uint32
	Profits   *uint256.Int
}

// ItemView describes the state-machine position of one item.
type ItemView struct {
	Present     bool
	Locked      bool
	ListingMode models.ListingMode
	Price       *uint256.Int
}

// Inspect returns the shop header fields.
func (s *Service) Inspect(ctx context.Context, shopID id.ShopID) (ShopView, error) {
	var view ShopView
	err := s.translate(s.store.View(ctx, shopID, func(tx store.Tx) error {
		shop := tx.Shop()
		view = ShopView{
			ID:        shop.ID,
			Owner:     shop.Owner,
			ItemCount: shop.ItemCount,
			Profits:   shop.Profits.Amount(),
		}
		return nil
	}))
	if err != nil {
		return ShopView{}, err
	}
	return view, nil
}

// InspectItem reports presence, lock status, and listing state for one item.
func (s *Service) InspectItem(ctx context.Context, shopID id.ShopID, itemID id.ItemID) (ItemView, error) {
	var view ItemView
	err := s.translate(s.store.View(ctx, shopID, func(tx store.Tx) error {
		view.Present = tx.HasItem(itemID)
		view.Locked = tx.HasLock(itemID)
		listing, err := listingState(tx, itemID)
		if err != nil {
			return err
		}
		view.ListingMode = listing.Mode
		if listing.Price != nil {
			view.Price = new(uint256.Int).Set(listing.Price)
		}
		return nil
	}))
	if err != nil {
		return ItemView{}, err
	}
	return view, nil
}

// HasItem reports whether the shop holds the item.
func (s *Service) HasItem(ctx context.Context, shopID id.ShopID, itemID id.ItemID) (bool, error) {
	view, err := s.InspectItem(ctx, shopID, itemID)
	return view.Present, err
}

// IsLocked reports whether the item carries a lock marker.
func (s *Service) IsLocked(ctx context.Context, shopID id.ShopID, itemID id.ItemID) (bool, error) {
	view, err := s.InspectItem(ctx, shopID, itemID)
	return view.Locked, err
}

// IsListed reports whether the item is listed in either mode.
func (s *Service) IsListed(ctx context.Context, shopID id.ShopID, itemID id.ItemID) (bool, error) {
	view, err := s.InspectItem(ctx, shopID, itemID)
	return view.ListingMode != models.ModeNone, err
}

// IsListedExclusively reports whether the item is pinned to a purchase
// capability holder.
func (s *Service) IsListedExclusively(ctx context.Context, shopID id.ShopID, itemID id.ItemID) (bool, error) {
	view, err := s.InspectItem(ctx, shopID, itemID)
	return view.ListingMode == models.ModeExclusive, err
}

// ItemCount returns the number of items the shop holds.
func (s *Service) ItemCount(ctx context.Context, shopID id.ShopID) (uint32, error) {
	view, err := s.Inspect(ctx, shopID)
	return view.ItemCount, err
}

// Profits returns the collected balance amount.
func (s *Service) Profits(ctx context.Context, shopID id.ShopID) (*uint256.Int, error) {
	view, err := s.Inspect(ctx, shopID)
	return view.Profits, err
}

// HasAccess reports whether the capability is bound to the shop. Pure
// binding check; it does not touch the store.
func (s *Service) HasAccess(shopID id.ShopID, cap models.OwnerCap) bool {
	return cap.Grants(shopID)
}
