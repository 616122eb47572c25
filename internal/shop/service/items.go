package service

import (
	"context"
	"errors"
	"time"

	"github.com/holiman/uint256"

	"tradepost/internal/audit"
	"tradepost/internal/coin"
	"tradepost/internal/policy"
	"tradepost/internal/sentinel"
	"tradepost/internal/shop/models"
	"tradepost/internal/shop/store"
	"tradepost/internal/shop/tracer"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

// PlaceItem attaches an item inside an open transaction. Exported so the
// extension framework delegates to the same primitive the owner path uses.
func PlaceItem(tx store.Tx, item models.Item) error {
	if item.ID.IsNil() || item.Type == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "item ID and type are required")
	}
	if err := tx.AttachItem(item); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return dErrors.New(dErrors.CodeConflict, "item already held by this shop")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach item")
	}
	tx.Shop().ItemCount++
	return nil
}

// LockItem places an item and attaches its lock marker. Callers
// must have proven a rule-checker exists for the item type; without that
// proof a locked item would have no legal exit.
func LockItem(tx store.Tx, item models.Item) error {
	if err := tx.AttachLock(item.ID); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyExists) {
			return dErrors.New(dErrors.CodeConflict, "item already locked")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach lock")
	}
	return PlaceItem(tx, item)
}

// Place puts an item into the shop: absent -> present, unlocked, unlisted.
func (s *Service) Place(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, item models.Item) error {
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		return PlaceItem(tx, item)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementItemsPlaced(item.Type)
	}
	return nil
}

// Lock places an item locked: the plain take path is disabled and the item
// can only leave through a listing and sale. Requires a registered
// rule-checker for the item type.
func (s *Service) Lock(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, item models.Item) error {
	if s.policies == nil || !s.policies.Has(item.Type) {
		return dErrors.New(dErrors.CodeNoTransferPolicy, "no rule-checker registered for item type")
	}
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		return LockItem(tx, item)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementItemsLocked(item.Type)
	}
	return nil
}

// Take removes an item: present, unlocked -> absent. A plain listing is
// removed along the way; a lock or an exclusive listing blocks the call.
func (s *Service) Take(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, itemID id.ItemID) (models.Item, error) {
	var item models.Item
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		if tx.HasLock(itemID) {
			return dErrors.New(dErrors.CodeItemLocked, "locked items leave only through a sale")
		}
		listing, err := listingState(tx, itemID)
		if err != nil {
			return err
		}
		if listing.IsExclusive() {
			return dErrors.New(dErrors.CodeListedExclusively, "item is exclusively listed")
		}
		if listing.Mode == models.ModeFixedPrice {
			if err := tx.RemoveListing(itemID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove listing")
			}
		}
		item, err = tx.DetachItem(itemID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeItemNotFound, "item not held by this shop")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach item")
		}
		tx.Shop().ItemCount--
		return nil
	})
	if err != nil {
		return models.Item{}, err
	}
	return item, nil
}

// List offers an item for sale at an exact price. The item may be locked;
// only an exclusive listing blocks a new plain listing.
func (s *Service) List(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, itemID id.ItemID, price *uint256.Int) error {
	if price == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "price is required")
	}
	var itemType string
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		item, err := tx.Item(itemID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeItemNotFound, "item not held by this shop")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read item")
		}
		itemType = item.Type
		listing, err := listingState(tx, itemID)
		if err != nil {
			return err
		}
		switch listing.Mode {
		case models.ModeExclusive:
			return dErrors.New(dErrors.CodeListedExclusively, "item is exclusively listed")
		case models.ModeFixedPrice:
			return dErrors.New(dErrors.CodeAlreadyListed, "item is already listed")
		}
		return tx.PutListing(itemID, models.Listing{
			Mode:  models.ModeFixedPrice,
			Price: new(uint256.Int).Set(price),
		})
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementListingsCreated(itemType, models.ModeFixedPrice.String())
	}
	s.emit(ctx, audit.Event{
		ShopID:   shopID,
		ItemID:   itemID,
		ItemType: itemType,
		Action:   audit.ActionItemListed,
		Price:    price.Dec(),
	})
	return nil
}

// Delist withdraws a plain listing: listed -> unlisted.
func (s *Service) Delist(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, itemID id.ItemID) error {
	var itemType string
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		item, err := tx.Item(itemID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeItemNotFound, "item not held by this shop")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read item")
		}
		itemType = item.Type
		listing, err := listingState(tx, itemID)
		if err != nil {
			return err
		}
		switch listing.Mode {
		case models.ModeNone:
			return dErrors.New(dErrors.CodeNotListed, "item is not listed")
		case models.ModeExclusive:
			return dErrors.New(dErrors.CodeListedExclusively, "exclusive listings end by consuming the purchase capability")
		}
		return tx.RemoveListing(itemID)
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementListingsRemoved(itemType)
	}
	s.emit(ctx, audit.Event{
		ShopID:   shopID,
		ItemID:   itemID,
		ItemType: itemType,
		Action:   audit.ActionItemDelisted,
	})
	return nil
}

// Purchase completes a plain sale. Callable by anyone holding exact payment;
// the returned transfer request must still be approved by the item type's
// rule-checker before the transfer is final.
func (s *Service) Purchase(ctx context.Context, shopID id.ShopID, itemID id.ItemID, payment *coin.Payment) (models.Item, policy.TransferRequest, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "shop.purchase",
		tracer.String("shop_id", shopID.String()),
		tracer.String("item_id", itemID.String()),
	)
	var err error
	defer func() { span.End(err) }()

	if payment == nil {
		err = dErrors.New(dErrors.CodeInvalidInput, "payment is required")
		return models.Item{}, policy.TransferRequest{}, err
	}

	var item models.Item
	var paid *uint256.Int
	err = s.update(ctx, shopID, func(tx store.Tx) error {
		listing, err := listingState(tx, itemID)
		if err != nil {
			return err
		}
		switch listing.Mode {
		case models.ModeNone:
			return dErrors.New(dErrors.CodeNotListed, "item is not listed")
		case models.ModeExclusive:
			return dErrors.New(dErrors.CodeListedExclusively, "item is reserved for a purchase capability holder")
		}
		if !payment.Amount().Eq(listing.Price) {
			return dErrors.New(dErrors.CodeIncorrectAmount, "payment must equal the listed price exactly")
		}
		if err := tx.RemoveListing(itemID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove listing")
		}
		// A sale is the one exit for locked items; the marker leaves with it
		// so a later place of the same item starts unlocked.
		if tx.HasLock(itemID) {
			if err := tx.DetachLock(itemID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach lock")
			}
		}
		detached, err := tx.DetachItem(itemID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "listed item missing from shop")
		}
		item = detached
		paid = payment.Amount()
		if err := tx.Shop().Profits.Merge(payment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "payment already spent")
		}
		tx.Shop().ItemCount--
		return nil
	})
	if err != nil {
		return models.Item{}, policy.TransferRequest{}, err
	}

	request := policy.NewTransferRequest(shopID, itemID, item.Type, paid)
	if s.metrics != nil {
		s.metrics.IncrementItemsSold(item.Type, models.ModeFixedPrice.String())
		s.metrics.ObserveSaleLatency(time.Since(start).Seconds())
	}
	s.emit(ctx, audit.Event{
		ShopID:   shopID,
		ItemID:   itemID,
		ItemType: item.Type,
		Action:   audit.ActionItemPurchased,
		Price:    paid.Dec(),
	})
	if s.logger != nil {
		s.logger.Info("item sold",
			"shop_id", shopID,
			"item_id", itemID,
			"item_type", item.Type,
			"price", paid.Dec(),
		)
	}
	return item, request, nil
}
