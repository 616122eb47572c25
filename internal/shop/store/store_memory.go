package store

import (
	"context"
	"sync"

	"tradepost/internal/sentinel"
	"tradepost/internal/shop/models"
	id "tradepost/pkg/domain"
)

// recordKind tags the type of an attached record so one arena can hold
// heterogeneous values under composite keys.
type recordKind string

const (
	kindItem      recordKind = "item"
	kindLock      recordKind = "lock"
	kindListing   recordKind = "listing"
	kindExtension recordKind = "extension"
)

type recordKey struct {
	kind recordKind
	id   string
}

type shopState struct {
	shop    models.Shop
	records map[recordKey]any
}

// InMemoryStore keeps shops and their attached records in a type-tagged map.
// A single mutex serializes transactions, matching the sequential-application
// model the hosting ledger guarantees.
type InMemoryStore struct {
	mu    sync.RWMutex
	shops map[id.ShopID]*shopState
}

// New constructs an empty in-memory shop store.
func New() *InMemoryStore {
	return &InMemoryStore{shops: make(map[id.ShopID]*shopState)}
}

func (s *InMemoryStore) CreateShop(_ context.Context, shop *models.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[shop.ID]; ok {
		return sentinel.ErrAlreadyExists
	}
	s.shops[shop.ID] = &shopState{
		shop:    *shop,
		records: make(map[recordKey]any),
	}
	return nil
}

func (s *InMemoryStore) View(_ context.Context, shopID id.ShopID, fn func(Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.shops[shopID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// Staged writes in a View are discarded, never applied.
	return fn(newMemTx(state))
}

func (s *InMemoryStore) Update(_ context.Context, shopID id.ShopID, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.shops[shopID]
	if !ok {
		return sentinel.ErrNotFound
	}
	tx := newMemTx(state)
	if err := fn(tx); err != nil {
		return err
	}
	s.apply(shopID, state, tx)
	return nil
}

func (s *InMemoryStore) apply(shopID id.ShopID, state *shopState, tx *memTx) {
	if tx.shopDeleted {
		delete(s.shops, shopID)
		return
	}
	state.shop = tx.shop
	for key, staged := range tx.staged {
		if staged.deleted {
			delete(state.records, key)
			continue
		}
		state.records[key] = staged.value
	}
}

type stagedRecord struct {
	value   any
	deleted bool
}

// memTx overlays staged mutations on a shop's records. Reads consult the
// overlay first so a transaction observes its own writes.
type memTx struct {
	base        *shopState
	shop        models.Shop
	staged      map[recordKey]stagedRecord
	shopDeleted bool
}

func newMemTx(state *shopState) *memTx {
	return &memTx{
		base:   state,
		shop:   state.shop,
		staged: make(map[recordKey]stagedRecord),
	}
}

func (t *memTx) Shop() *models.Shop { return &t.shop }

func (t *memTx) DeleteShop() { t.shopDeleted = true }

func (t *memTx) get(key recordKey) (any, bool) {
	if staged, ok := t.staged[key]; ok {
		if staged.deleted {
			return nil, false
		}
		return staged.value, true
	}
	value, ok := t.base.records[key]
	return value, ok
}

func (t *memTx) attach(key recordKey, value any) error {
	if _, ok := t.get(key); ok {
		return sentinel.ErrAlreadyExists
	}
	t.staged[key] = stagedRecord{value: value}
	return nil
}

func (t *memTx) detach(key recordKey) (any, error) {
	value, ok := t.get(key)
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	t.staged[key] = stagedRecord{deleted: true}
	return value, nil
}

func (t *memTx) AttachItem(item models.Item) error {
	return t.attach(recordKey{kindItem, item.ID.String()}, item)
}

func (t *memTx) DetachItem(itemID id.ItemID) (models.Item, error) {
	value, err := t.detach(recordKey{kindItem, itemID.String()})
	if err != nil {
		return models.Item{}, err
	}
	return asItem(value)
}

func (t *memTx) Item(itemID id.ItemID) (models.Item, error) {
	value, ok := t.get(recordKey{kindItem, itemID.String()})
	if !ok {
		return models.Item{}, sentinel.ErrNotFound
	}
	return asItem(value)
}

func (t *memTx) HasItem(itemID id.ItemID) bool {
	_, ok := t.get(recordKey{kindItem, itemID.String()})
	return ok
}

func (t *memTx) CountItems() uint32 {
	var count uint32
	for key := range t.base.records {
		if key.kind != kindItem {
			continue
		}
		if staged, ok := t.staged[key]; ok && staged.deleted {
			continue
		}
		count++
	}
	for key, staged := range t.staged {
		if key.kind != kindItem || staged.deleted {
			continue
		}
		if _, ok := t.base.records[key]; !ok {
			count++
		}
	}
	return count
}

func (t *memTx) AttachLock(itemID id.ItemID) error {
	return t.attach(recordKey{kindLock, itemID.String()}, true)
}

func (t *memTx) DetachLock(itemID id.ItemID) error {
	_, err := t.detach(recordKey{kindLock, itemID.String()})
	return err
}

func (t *memTx) HasLock(itemID id.ItemID) bool {
	_, ok := t.get(recordKey{kindLock, itemID.String()})
	return ok
}

func (t *memTx) Listing(itemID id.ItemID) (models.Listing, error) {
	value, ok := t.get(recordKey{kindListing, itemID.String()})
	if !ok {
		return models.Listing{}, sentinel.ErrNotFound
	}
	listing, ok := value.(models.Listing)
	if !ok {
		return models.Listing{}, sentinel.ErrTypeMismatch
	}
	return listing, nil
}

func (t *memTx) PutListing(itemID id.ItemID, listing models.Listing) error {
	t.staged[recordKey{kindListing, itemID.String()}] = stagedRecord{value: listing}
	return nil
}

func (t *memTx) RemoveListing(itemID id.ItemID) error {
	_, err := t.detach(recordKey{kindListing, itemID.String()})
	return err
}

func (t *memTx) Extension(name id.ExtensionName) (models.Extension, error) {
	value, ok := t.get(recordKey{kindExtension, string(name)})
	if !ok {
		return models.Extension{}, sentinel.ErrNotFound
	}
	ext, ok := value.(models.Extension)
	if !ok {
		return models.Extension{}, sentinel.ErrTypeMismatch
	}
	// Hand out a clone so callers cannot reach the committed record's
	// storage map through an aborted transaction.
	return ext.Clone(), nil
}

func (t *memTx) PutExtension(ext models.Extension) error {
	t.staged[recordKey{kindExtension, string(ext.Name)}] = stagedRecord{value: ext.Clone()}
	return nil
}

func (t *memTx) RemoveExtension(name id.ExtensionName) error {
	_, err := t.detach(recordKey{kindExtension, string(name)})
	return err
}

// asItem is the runtime type check for the heterogeneous arena.
func asItem(value any) (models.Item, error) {
	item, ok := value.(models.Item)
	if !ok {
		return models.Item{}, sentinel.ErrTypeMismatch
	}
	return item, nil
}
