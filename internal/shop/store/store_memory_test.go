package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/sentinel"
	"tradepost/internal/shop/models"
	id "tradepost/pkg/domain"
)

func newTestShop(t *testing.T, s Store) id.ShopID {
	t.Helper()
	shop := &models.Shop{
		ID:        id.NewShopID(),
		Owner:     "0xabc",
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.CreateShop(context.Background(), shop))
	return shop.ID
}

func TestCreateShopDuplicate(t *testing.T) {
	s := New()
	shop := &models.Shop{ID: id.NewShopID()}

	require.NoError(t, s.CreateShop(context.Background(), shop))
	err := s.CreateShop(context.Background(), shop)
	require.ErrorIs(t, err, sentinel.ErrAlreadyExists)
}

func TestUpdateUnknownShop(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), id.NewShopID(), func(Tx) error { return nil })
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAttachDetachItemRoundTrip(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	item := models.Item{ID: id.NewItemID(), Type: "gadget", Data: []byte(`{"n":1}`)}
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.AttachItem(item)
	}))

	var got models.Item
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		var err error
		got, err = tx.DetachItem(item.ID)
		return err
	}))
	assert.Equal(t, item, got)

	// Detached for real, not just in the overlay.
	require.NoError(t, s.View(ctx, shopID, func(tx Tx) error {
		assert.False(t, tx.HasItem(item.ID))
		return nil
	}))
}

func TestAttachItemTwice(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	item := models.Item{ID: id.NewItemID(), Type: "gadget"}
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.AttachItem(item)
	}))
	err := s.Update(ctx, shopID, func(tx Tx) error {
		return tx.AttachItem(item)
	})
	require.ErrorIs(t, err, sentinel.ErrAlreadyExists)
}

func TestFailedUpdateDiscardsAllEffects(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	item := models.Item{ID: id.NewItemID(), Type: "gadget"}
	boom := errors.New("abort")

	err := s.Update(ctx, shopID, func(tx Tx) error {
		require.NoError(t, tx.AttachItem(item))
		require.NoError(t, tx.AttachLock(item.ID))
		tx.Shop().ItemCount = 7
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, shopID, func(tx Tx) error {
		assert.False(t, tx.HasItem(item.ID))
		assert.False(t, tx.HasLock(item.ID))
		assert.Equal(t, uint32(0), tx.Shop().ItemCount)
		return nil
	}))
}

func TestTransactionSeesOwnWrites(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	item := models.Item{ID: id.NewItemID(), Type: "gadget"}
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		require.NoError(t, tx.AttachItem(item))
		assert.True(t, tx.HasItem(item.ID))
		assert.Equal(t, uint32(1), tx.CountItems())

		_, err := tx.DetachItem(item.ID)
		require.NoError(t, err)
		assert.False(t, tx.HasItem(item.ID))
		assert.Equal(t, uint32(0), tx.CountItems())
		return nil
	}))
}

func TestListingReplaceAndRemove(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()
	itemID := id.NewItemID()

	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.PutListing(itemID, models.Listing{Mode: models.ModeFixedPrice, Price: uint256.NewInt(100)})
	}))

	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		listing, err := tx.Listing(itemID)
		require.NoError(t, err)
		assert.Equal(t, models.ModeFixedPrice, listing.Mode)
		assert.Equal(t, uint256.NewInt(100), listing.Price)
		return tx.RemoveListing(itemID)
	}))

	err := s.Update(ctx, shopID, func(tx Tx) error {
		return tx.RemoveListing(itemID)
	})
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestExtensionRoundTrip(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	ext := models.NewExtension("promoter", models.PermissionPlace)
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.PutExtension(ext)
	}))

	require.NoError(t, s.View(ctx, shopID, func(tx Tx) error {
		got, err := tx.Extension("promoter")
		require.NoError(t, err)
		assert.True(t, got.Enabled)
		assert.True(t, got.CanPlace())
		assert.False(t, got.CanLock())
		return nil
	}))

	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.RemoveExtension("promoter")
	}))
	err := s.View(ctx, shopID, func(tx Tx) error {
		_, err := tx.Extension("promoter")
		return err
	})
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestLockDetachRoundTrip(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()
	itemID := id.NewItemID()

	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.AttachLock(itemID)
	}))
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.DetachLock(itemID)
	}))

	require.NoError(t, s.View(ctx, shopID, func(tx Tx) error {
		assert.False(t, tx.HasLock(itemID))
		return nil
	}))

	err := s.Update(ctx, shopID, func(tx Tx) error {
		return tx.DetachLock(itemID)
	})
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestAbortedExtensionStorageWriteDoesNotLeak(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	ext := models.NewExtension("promoter", models.PermissionPlace)
	ext.Storage["counter"] = []byte("1")
	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		return tx.PutExtension(ext)
	}))

	// Mutating the storage map of a read record inside an aborted
	// transaction must not reach the committed record.
	boom := errors.New("abort")
	err := s.Update(ctx, shopID, func(tx Tx) error {
		got, err := tx.Extension("promoter")
		require.NoError(t, err)
		got.Storage["counter"] = []byte("2")
		got.Storage["extra"] = []byte("x")
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The caller's copy staged before commit is insulated too.
	ext.Storage["counter"] = []byte("9")

	require.NoError(t, s.View(ctx, shopID, func(tx Tx) error {
		got, err := tx.Extension("promoter")
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), got.Storage["counter"])
		assert.NotContains(t, got.Storage, "extra")
		return nil
	}))
}

func TestDeleteShop(t *testing.T) {
	s := New()
	shopID := newTestShop(t, s)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, shopID, func(tx Tx) error {
		tx.DeleteShop()
		return nil
	}))
	err := s.View(ctx, shopID, func(Tx) error { return nil })
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
