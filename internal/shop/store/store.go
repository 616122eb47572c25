// Package store implements the record-attachment layer for shops: typed
// records keyed by (kind, shop, id) behind a transactional closure, so every
// operation sequence applies all of its effects or none of them.
package store

import (
	"context"

	"tradepost/internal/shop/models"
	id "tradepost/pkg/domain"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return sentinel.ErrNotFound when the requested record does not exist
// - Return sentinel.ErrAlreadyExists when attaching over an existing key
// - Return sentinel.ErrTypeMismatch when a record holds an unexpected type
// - Return wrapped errors with context for infrastructure failures

// Tx gives typed access to one shop's attached records inside a transaction.
// Mutations are staged; they become visible only if the enclosing closure
// returns nil.
type Tx interface {
	// Shop returns the staged shop record. Field mutations are persisted
	// with the rest of the transaction.
	Shop() *models.Shop

	// DeleteShop stages removal of the shop record itself. Callers must
	// have verified the shop is empty.
	DeleteShop()

	AttachItem(item models.Item) error
	DetachItem(itemID id.ItemID) (models.Item, error)
	Item(itemID id.ItemID) (models.Item, error)
	HasItem(itemID id.ItemID) bool
	CountItems() uint32

	// Lock markers disable the plain take path for their item. They stay
	// attached until the item leaves through a sale, which detaches them
	// so the marker cannot outlive the item it guards.
	AttachLock(itemID id.ItemID) error
	DetachLock(itemID id.ItemID) error
	HasLock(itemID id.ItemID) bool

	Listing(itemID id.ItemID) (models.Listing, error)
	PutListing(itemID id.ItemID, listing models.Listing) error
	RemoveListing(itemID id.ItemID) error

	Extension(name id.ExtensionName) (models.Extension, error)
	PutExtension(ext models.Extension) error
	RemoveExtension(name id.ExtensionName) error
}

// Store is the persistence boundary for shops and their attached records.
type Store interface {
	// CreateShop persists a fresh shop record.
	CreateShop(ctx context.Context, shop *models.Shop) error

	// View runs fn against a read snapshot of the shop.
	View(ctx context.Context, shopID id.ShopID, fn func(Tx) error) error

	// Update runs fn transactionally: staged mutations apply only when fn
	// returns nil, otherwise every effect is discarded.
	Update(ctx context.Context, shopID id.ShopID, fn func(Tx) error) error
}
