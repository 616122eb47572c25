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

// ListExclusive reserves an item for a single counterparty: it creates an
// exclusive listing and mints the one purchase capability that can end it.
// Losing the capability strands the item in the listed-exclusive state; this
// path is for trusted flows that keep the capability recoverable.
func (s *Service) ListExclusive(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, itemID id.ItemID, minPrice *uint256.Int) (*models.PurchaseCap, error) {
	if minPrice == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "minimum price is required")
	}
	purchaseCap := models.NewPurchaseCap(shopID, itemID, minPrice)
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
		if listing.Mode != models.ModeNone {
			return dErrors.New(dErrors.CodeAlreadyListed, "item is already listed")
		}
		return tx.PutListing(itemID, models.Listing{
			Mode:  models.ModeExclusive,
			Price: new(uint256.Int).Set(minPrice),
			CapID: purchaseCap.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementListingsCreated(itemType, models.ModeExclusive.String())
	}
	s.emit(ctx, audit.Event{
		ShopID:   shopID,
		ItemID:   itemID,
		ItemType: itemType,
		Action:   audit.ActionItemListed,
		Price:    minPrice.Dec(),
	})
	return purchaseCap, nil
}

// PurchaseWithCap completes an exclusive sale. The capability is consumed;
// any payment at or above the agreed minimum settles.
func (s *Service) PurchaseWithCap(ctx context.Context, shopID id.ShopID, purchaseCap *models.PurchaseCap, payment *coin.Payment) (models.Item, policy.TransferRequest, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "shop.purchase_with_cap",
		tracer.String("shop_id", shopID.String()),
	)
	var err error
	defer func() { span.End(err) }()

	if purchaseCap == nil || payment == nil {
		err = dErrors.New(dErrors.CodeInvalidInput, "purchase capability and payment are required")
		return models.Item{}, policy.TransferRequest{}, err
	}
	if purchaseCap.Consumed() {
		err = dErrors.New(dErrors.CodeCapConsumed, "purchase capability already consumed")
		return models.Item{}, policy.TransferRequest{}, err
	}
	if purchaseCap.ShopID != shopID {
		err = dErrors.New(dErrors.CodeWrongCapability, "purchase capability not bound to this shop")
		return models.Item{}, policy.TransferRequest{}, err
	}

	itemID := purchaseCap.ItemID
	var item models.Item
	var paid *uint256.Int
	err = s.update(ctx, shopID, func(tx store.Tx) error {
		listing, err := s.exclusiveListing(tx, purchaseCap)
		if err != nil {
			return err
		}
		if payment.Amount().Lt(listing.Price) {
			return dErrors.New(dErrors.CodeUnderpaid, "payment below the agreed minimum price")
		}
		if err := tx.RemoveListing(itemID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to remove listing")
		}
		if tx.HasLock(itemID) {
			if err := tx.DetachLock(itemID); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to detach lock")
			}
		}
		detached, err := tx.DetachItem(itemID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "reserved item missing from shop")
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

	// Consume only after the transaction committed; an aborted sequence
	// must leave the capability usable.
	if err = purchaseCap.Consume(); err != nil {
		return models.Item{}, policy.TransferRequest{}, err
	}

	request := policy.NewTransferRequest(shopID, itemID, item.Type, paid)
	if s.metrics != nil {
		s.metrics.IncrementItemsSold(item.Type, models.ModeExclusive.String())
		s.metrics.ObserveSaleLatency(time.Since(start).Seconds())
	}
	s.emit(ctx, audit.Event{
		ShopID:   shopID,
		ItemID:   itemID,
		ItemType: item.Type,
		Action:   audit.ActionItemPurchased,
		Price:    paid.Dec(),
	})
	return item, request, nil
}

// ReturnPurchaseCap cancels an exclusive listing by consuming its capability.
// The item becomes takeable and listable again; its lock status is untouched.
func (s *Service) ReturnPurchaseCap(ctx context.Context, shopID id.ShopID, purchaseCap *models.PurchaseCap) error {
	if purchaseCap == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "purchase capability is required")
	}
	if purchaseCap.Consumed() {
		return dErrors.New(dErrors.CodeCapConsumed, "purchase capability already consumed")
	}
	if purchaseCap.ShopID != shopID {
		return dErrors.New(dErrors.CodeWrongCapability, "purchase capability not bound to this shop")
	}
	var itemType string
	err := s.update(ctx, shopID, func(tx store.Tx) error {
		if _, err := s.exclusiveListing(tx, purchaseCap); err != nil {
			return err
		}
		item, err := tx.Item(purchaseCap.ItemID)
		if err == nil {
			itemType = item.Type
		}
		return tx.RemoveListing(purchaseCap.ItemID)
	})
	if err != nil {
		return err
	}
	if err := purchaseCap.Consume(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.IncrementListingsRemoved(itemType)
	}
	s.emit(ctx, audit.Event{
		ShopID:   shopID,
		ItemID:   purchaseCap.ItemID,
		ItemType: itemType,
		Action:   audit.ActionItemDelisted,
	})
	return nil
}

// exclusiveListing loads the listing a purchase capability stands for and
// verifies the capability is the one the listing was minted with.
func (s *Service) exclusiveListing(tx store.Tx, purchaseCap *models.PurchaseCap) (models.Listing, error) {
	listing, err := listingState(tx, purchaseCap.ItemID)
	if err != nil {
		return models.Listing{}, err
	}
	if !listing.IsExclusive() {
		return models.Listing{}, dErrors.New(dErrors.CodeNotListed, "item is not exclusively listed")
	}
	if listing.CapID != purchaseCap.ID {
		return models.Listing{}, dErrors.New(dErrors.CodeWrongCapability, "capability does not match the exclusive listing")
	}
	return listing, nil
}
