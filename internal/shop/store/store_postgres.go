package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/lib/pq"

	"tradepost/internal/coin"
	"tradepost/internal/sentinel"
	"tradepost/internal/shop/models"
	id "tradepost/pkg/domain"
)

// PostgresStore persists shops and attached records in PostgreSQL. Attached
// records live in one table keyed by (shop_id, kind, record_id) with a JSONB
// value, mirroring the composite-key arena of the memory backend.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed shop store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateShop(ctx context.Context, shop *models.Shop) error {
	query := `
		INSERT INTO shops (id, owner, profits, item_count, allow_extensions, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		shop.ID.String(),
		shop.Owner,
		shop.Profits.Amount().Dec(),
		shop.ItemCount,
		shop.AllowExtensions,
		shop.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("create shop: %w", err)
	}
	return nil
}

func (s *PostgresStore) View(ctx context.Context, shopID id.ShopID, fn func(Tx) error) error {
	return s.run(ctx, shopID, fn, false)
}

func (s *PostgresStore) Update(ctx context.Context, shopID id.ShopID, fn func(Tx) error) error {
	return s.run(ctx, shopID, fn, true)
}

func (s *PostgresStore) run(ctx context.Context, shopID id.ShopID, fn func(Tx) error, commit bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin shop tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	shop, err := lockShop(ctx, tx, shopID, commit)
	if err != nil {
		return err
	}

	pgTx := &postgresTx{ctx: ctx, tx: tx, shopID: shopID, shop: shop}
	if err := fn(pgTx); err != nil {
		return err
	}
	if !commit {
		return nil
	}

	if pgTx.shopDeleted {
		if _, err := tx.ExecContext(ctx, `DELETE FROM shops WHERE id = $1`, shopID.String()); err != nil {
			return fmt.Errorf("delete shop: %w", err)
		}
	} else if err := saveShop(ctx, tx, pgTx.shop); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit shop tx: %w", err)
	}
	return nil
}

func lockShop(ctx context.Context, tx *sql.Tx, shopID id.ShopID, forUpdate bool) (*models.Shop, error) {
	query := `
		SELECT id, owner, profits, item_count, allow_extensions, created_at
		FROM shops
		WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var shop models.Shop
	var rawID, profits string
	err := tx.QueryRowContext(ctx, query, shopID.String()).Scan(
		&rawID, &shop.Owner, &profits, &shop.ItemCount, &shop.AllowExtensions, &shop.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find shop: %w", err)
	}
	if err := shop.ID.UnmarshalText([]byte(rawID)); err != nil {
		return nil, fmt.Errorf("scan shop id: %w", err)
	}
	amount, err := uint256.FromDecimal(profits)
	if err != nil {
		return nil, fmt.Errorf("scan shop profits: %w", err)
	}
	shop.Profits = coin.Zero()
	_ = shop.Profits.Merge(coin.NewPayment(amount))
	return &shop, nil
}

func saveShop(ctx context.Context, tx *sql.Tx, shop *models.Shop) error {
	query := `
		UPDATE shops
		SET owner = $2, profits = $3, item_count = $4, allow_extensions = $5
		WHERE id = $1
	`
	_, err := tx.ExecContext(ctx, query,
		shop.ID.String(),
		shop.Owner,
		shop.Profits.Amount().Dec(),
		shop.ItemCount,
		shop.AllowExtensions,
	)
	if err != nil {
		return fmt.Errorf("save shop: %w", err)
	}
	return nil
}

// Serialized record shapes. Amounts travel as decimal strings so JSONB never
// sees a number wider than it can hold.

type listingRecord struct {
	Mode  uint8  `json:"mode"`
	Price string `json:"price"`
	CapID string `json:"cap_id,omitempty"`
}

type extensionRecord struct {
	Name        string            `json:"name"`
	Permissions string            `json:"permissions"`
	Enabled     bool              `json:"enabled"`
	Storage     map[string][]byte `json:"storage"`
}

type postgresTx struct {
	ctx         context.Context
	tx          *sql.Tx
	shopID      id.ShopID
	shop        *models.Shop
	shopDeleted bool
}

func (t *postgresTx) Shop() *models.Shop { return t.shop }

func (t *postgresTx) DeleteShop() { t.shopDeleted = true }

func (t *postgresTx) attach(kind, recordID string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	query := `
		INSERT INTO shop_records (shop_id, kind, record_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shop_id, kind, record_id) DO NOTHING
	`
	res, err := t.tx.ExecContext(t.ctx, query, t.shopID.String(), kind, recordID, data)
	if err != nil {
		return fmt.Errorf("attach %s record: %w", kind, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach %s record rows: %w", kind, err)
	}
	if rows == 0 {
		return sentinel.ErrAlreadyExists
	}
	return nil
}

func (t *postgresTx) put(kind, recordID string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", kind, err)
	}
	query := `
		INSERT INTO shop_records (shop_id, kind, record_id, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (shop_id, kind, record_id) DO UPDATE SET value = EXCLUDED.value
	`
	if _, err := t.tx.ExecContext(t.ctx, query, t.shopID.String(), kind, recordID, data); err != nil {
		return fmt.Errorf("put %s record: %w", kind, err)
	}
	return nil
}

func (t *postgresTx) get(kind, recordID string) ([]byte, error) {
	query := `
		SELECT value FROM shop_records
		WHERE shop_id = $1 AND kind = $2 AND record_id = $3
	`
	var data []byte
	err := t.tx.QueryRowContext(t.ctx, query, t.shopID.String(), kind, recordID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get %s record: %w", kind, err)
	}
	return data, nil
}

func (t *postgresTx) remove(kind, recordID string) ([]byte, error) {
	query := `
		DELETE FROM shop_records
		WHERE shop_id = $1 AND kind = $2 AND record_id = $3
		RETURNING value
	`
	var data []byte
	err := t.tx.QueryRowContext(t.ctx, query, t.shopID.String(), kind, recordID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("remove %s record: %w", kind, err)
	}
	return data, nil
}

func (t *postgresTx) exists(kind, recordID string) bool {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM shop_records
			WHERE shop_id = $1 AND kind = $2 AND record_id = $3
		)
	`
	var ok bool
	if err := t.tx.QueryRowContext(t.ctx, query, t.shopID.String(), kind, recordID).Scan(&ok); err != nil {
		return false
	}
	return ok
}

func (t *postgresTx) AttachItem(item models.Item) error {
	return t.attach(string(kindItem), item.ID.String(), item)
}

func (t *postgresTx) DetachItem(itemID id.ItemID) (models.Item, error) {
	data, err := t.remove(string(kindItem), itemID.String())
	if err != nil {
		return models.Item{}, err
	}
	return decodeItem(data)
}

func (t *postgresTx) Item(itemID id.ItemID) (models.Item, error) {
	data, err := t.get(string(kindItem), itemID.String())
	if err != nil {
		return models.Item{}, err
	}
	return decodeItem(data)
}

func (t *postgresTx) HasItem(itemID id.ItemID) bool {
	return t.exists(string(kindItem), itemID.String())
}

func (t *postgresTx) CountItems() uint32 {
	query := `SELECT count(*) FROM shop_records WHERE shop_id = $1 AND kind = $2`
	var count uint32
	if err := t.tx.QueryRowContext(t.ctx, query, t.shopID.String(), string(kindItem)).Scan(&count); err != nil {
		return 0
	}
	return count
}

func (t *postgresTx) AttachLock(itemID id.ItemID) error {
	return t.attach(string(kindLock), itemID.String(), true)
}

func (t *postgresTx) DetachLock(itemID id.ItemID) error {
	_, err := t.remove(string(kindLock), itemID.String())
	return err
}

func (t *postgresTx) HasLock(itemID id.ItemID) bool {
	return t.exists(string(kindLock), itemID.String())
}

func (t *postgresTx) Listing(itemID id.ItemID) (models.Listing, error) {
	data, err := t.get(string(kindListing), itemID.String())
	if err != nil {
		return models.Listing{}, err
	}
	return decodeListing(data)
}

func (t *postgresTx) PutListing(itemID id.ItemID, listing models.Listing) error {
	record := listingRecord{Mode: uint8(listing.Mode)}
	if listing.Price != nil {
		record.Price = listing.Price.Dec()
	}
	if !listing.CapID.IsNil() {
		record.CapID = listing.CapID.String()
	}
	return t.put(string(kindListing), itemID.String(), record)
}

func (t *postgresTx) RemoveListing(itemID id.ItemID) error {
	_, err := t.remove(string(kindListing), itemID.String())
	return err
}

func (t *postgresTx) Extension(name id.ExtensionName) (models.Extension, error) {
	data, err := t.get(string(kindExtension), string(name))
	if err != nil {
		return models.Extension{}, err
	}
	return decodeExtension(data)
}

func (t *postgresTx) PutExtension(ext models.Extension) error {
	record := extensionRecord{
		Name:    string(ext.Name),
		Enabled: ext.Enabled,
		Storage: ext.Storage,
	}
	if ext.Permissions != nil {
		record.Permissions = ext.Permissions.Dec()
	}
	return t.put(string(kindExtension), string(ext.Name), record)
}

func (t *postgresTx) RemoveExtension(name id.ExtensionName) error {
	_, err := t.remove(string(kindExtension), string(name))
	return err
}

func decodeItem(data []byte) (models.Item, error) {
	var item models.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return models.Item{}, fmt.Errorf("%w: item record: %v", sentinel.ErrTypeMismatch, err)
	}
	return item, nil
}

func decodeListing(data []byte) (models.Listing, error) {
	var record listingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.Listing{}, fmt.Errorf("%w: listing record: %v", sentinel.ErrTypeMismatch, err)
	}
	listing := models.Listing{Mode: models.ListingMode(record.Mode)}
	if record.Price != "" {
		price, err := uint256.FromDecimal(record.Price)
		if err != nil {
			return models.Listing{}, fmt.Errorf("%w: listing price: %v", sentinel.ErrTypeMismatch, err)
		}
		listing.Price = price
	}
	if record.CapID != "" {
		if err := listing.CapID.UnmarshalText([]byte(record.CapID)); err != nil {
			return models.Listing{}, fmt.Errorf("%w: listing cap id: %v", sentinel.ErrTypeMismatch, err)
		}
	}
	return listing, nil
}

func decodeExtension(data []byte) (models.Extension, error) {
	var record extensionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return models.Extension{}, fmt.Errorf("%w: extension record: %v", sentinel.ErrTypeMismatch, err)
	}
	ext := models.Extension{
		Name:    id.ExtensionName(record.Name),
		Enabled: record.Enabled,
		Storage: record.Storage,
	}
	if ext.Storage == nil {
		ext.Storage = make(map[string][]byte)
	}
	if record.Permissions != "" {
		mask, err := uint256.FromDecimal(record.Permissions)
		if err != nil {
			return models.Extension{}, fmt.Errorf("%w: extension permissions: %v", sentinel.ErrTypeMismatch, err)
		}
		ext.Permissions = mask
	} else {
		ext.Permissions = new(uint256.Int)
	}
	return ext, nil
}
