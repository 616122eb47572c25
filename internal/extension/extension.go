// Package extension implements the permission framework that lets third-party
// code operate on shops it does not own. An extension authenticates with a
// witness value only its own package can construct; the shop owner grants it a
// permission mask at install time and can revoke or disable it at any moment.
package extension

import (
	"context"
	"errors"
	"log/slog"

	"github.com/holiman/uint256"

	"tradepost/internal/policy"
	"tradepost/internal/sentinel"
	"tradepost/internal/shop/models"
	"tradepost/internal/shop/service"
	"tradepost/internal/shop/store"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

// Witness proves the caller speaks for an extension. Implementations should
// be unexported struct types so nobody outside the extension's package can
// forge one.
type Witness interface {
	ExtensionName() id.ExtensionName
}

// Service manages extension installs and the extension-facing shop
// operations.
type Service struct {
	store    store.Store
	policies *policy.Registry
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the extension service over the same store the shop
// service uses. Both must share one store or permission checks and the writes
// they guard would race.
func NewService(st store.Store, policies *policy.Registry, opts ...Option) *Service {
	svc := &Service{store: st, policies: policies}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Install adds an extension to a shop with the given permission mask. Owner
// approval is the capability; the witness pins which extension is installed.
func (s *Service) Install(ctx context.Context, w Witness, shopID id.ShopID, cap models.OwnerCap, permissions *uint256.Int) error {
	if w == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "extension witness is required")
	}
	name, err := id.ParseExtensionName(string(w.ExtensionName()))
	if err != nil {
		return err
	}
	err = s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		if _, err := tx.Extension(name); err == nil {
			return dErrors.New(dErrors.CodeConflict, "extension already installed")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read extension")
		}
		return tx.PutExtension(models.NewExtension(name, permissions))
	})
	if err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("extension installed", "shop_id", shopID, "extension", name)
	}
	return nil
}

// Disable revokes the extension's permissions without touching its storage.
// The extension keeps read and write access to its own storage while disabled.
func (s *Service) Disable(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, name id.ExtensionName) error {
	return s.setEnabled(ctx, shopID, cap, name, false)
}

// Enable restores the permissions the extension was installed with.
func (s *Service) Enable(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, name id.ExtensionName) error {
	return s.setEnabled(ctx, shopID, cap, name, true)
}

func (s *Service) setEnabled(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, name id.ExtensionName, enabled bool) error {
	return s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		ext, err := s.installed(tx, name)
		if err != nil {
			return err
		}
		ext.Enabled = enabled
		return tx.PutExtension(ext)
	})
}

// Remove uninstalls an extension. The extension must have emptied its storage
// first; dropping unknown state on the floor is never the owner's call.
func (s *Service) Remove(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, name id.ExtensionName) error {
	return s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		ext, err := s.installed(tx, name)
		if err != nil {
			return err
		}
		if len(ext.Storage) != 0 {
			return dErrors.New(dErrors.CodeNotEmpty, "extension storage is not empty")
		}
		return tx.RemoveExtension(name)
	})
}

// IsInstalled reports whether the extension is installed on the shop.
func (s *Service) IsInstalled(ctx context.Context, shopID id.ShopID, name id.ExtensionName) (bool, error) {
	var installed bool
	err := s.translate(s.store.View(ctx, shopID, func(tx store.Tx) error {
		_, err := tx.Extension(name)
		if err == nil {
			installed = true
			return nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read extension")
	}))
	return installed, err
}

// IsEnabled reports whether the extension is installed and currently enabled.
func (s *Service) IsEnabled(ctx context.Context, shopID id.ShopID, name id.ExtensionName) (bool, error) {
	ext, err := s.inspect(ctx, shopID, name)
	if err != nil {
		return false, err
	}
	return ext.Enabled, nil
}

// CanPlace reports whether the extension currently holds the place permission.
func (s *Service) CanPlace(ctx context.Context, shopID id.ShopID, name id.ExtensionName) (bool, error) {
	ext, err := s.inspect(ctx, shopID, name)
	if err != nil {
		return false, err
	}
	return ext.Enabled && ext.CanPlace(), nil
}

// CanLock reports whether the extension currently holds the lock permission.
func (s *Service) CanLock(ctx context.Context, shopID id.ShopID, name id.ExtensionName) (bool, error) {
	ext, err := s.inspect(ctx, shopID, name)
	if err != nil {
		return false, err
	}
	return ext.Enabled && ext.CanLock(), nil
}

// StorageGet reads one key from the extension's private storage. Storage
// stays accessible while the extension is disabled so it can wind itself
// down.
func (s *Service) StorageGet(ctx context.Context, w Witness, shopID id.ShopID, key string) ([]byte, error) {
	if w == nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "extension witness is required")
	}
	var value []byte
	err := s.translate(s.store.View(ctx, shopID, func(tx store.Tx) error {
		ext, err := s.installed(tx, w.ExtensionName())
		if err != nil {
			return err
		}
		stored, ok := ext.Storage[key]
		if !ok {
			return dErrors.New(dErrors.CodeNotFound, "storage key not found")
		}
		value = append([]byte(nil), stored...)
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return value, nil
}

// StoragePut writes one key into the extension's private storage.
func (s *Service) StoragePut(ctx context.Context, w Witness, shopID id.ShopID, key string, value []byte) error {
	if w == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "extension witness is required")
	}
	return s.translate(s.store.Update(ctx, shopID, func(tx store.Tx) error {
		ext, err := s.installed(tx, w.ExtensionName())
		if err != nil {
			return err
		}
		if ext.Storage == nil {
			ext.Storage = make(map[string][]byte)
		}
		ext.Storage[key] = append([]byte(nil), value...)
		return tx.PutExtension(ext)
	}))
}

// StorageDelete removes one key from the extension's private storage.
func (s *Service) StorageDelete(ctx context.Context, w Witness, shopID id.ShopID, key string) error {
	if w == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "extension witness is required")
	}
	return s.translate(s.store.Update(ctx, shopID, func(tx store.Tx) error {
		ext, err := s.installed(tx, w.ExtensionName())
		if err != nil {
			return err
		}
		if _, ok := ext.Storage[key]; !ok {
			return dErrors.New(dErrors.CodeNotFound, "storage key not found")
		}
		delete(ext.Storage, key)
		return tx.PutExtension(ext)
	}))
}

// Place puts an item into the shop on the extension's authority. Requires the
// extension to be enabled with the place or lock permission.
func (s *Service) Place(ctx context.Context, w Witness, shopID id.ShopID, item models.Item) error {
	if w == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "extension witness is required")
	}
	return s.translate(s.store.Update(ctx, shopID, func(tx store.Tx) error {
		ext, err := s.enabled(tx, w.ExtensionName())
		if err != nil {
			return err
		}
		if !ext.CanPlace() {
			return dErrors.New(dErrors.CodeExtensionForbidden, "extension lacks the place permission")
		}
		return service.PlaceItem(tx, item)
	}))
}

// Lock places an item locked on the extension's authority. Requires the lock
// permission and, like the owner path, a registered rule-checker for the item
// type.
func (s *Service) Lock(ctx context.Context, w Witness, shopID id.ShopID, item models.Item) error {
	if w == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "extension witness is required")
	}
	if s.policies == nil || !s.policies.Has(item.Type) {
		return dErrors.New(dErrors.CodeNoTransferPolicy, "no rule-checker registered for item type")
	}
	return s.translate(s.store.Update(ctx, shopID, func(tx store.Tx) error {
		ext, err := s.enabled(tx, w.ExtensionName())
		if err != nil {
			return err
		}
		if !ext.CanLock() {
			return dErrors.New(dErrors.CodeExtensionForbidden, "extension lacks the lock permission")
		}
		return service.LockItem(tx, item)
	}))
}

// installed loads the extension record, mapping absence to the domain error.
func (s *Service) installed(tx store.Tx, name id.ExtensionName) (models.Extension, error) {
	ext, err := tx.Extension(name)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Extension{}, dErrors.New(dErrors.CodeExtensionNotInstalled, "extension not installed on this shop")
		}
		return models.Extension{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read extension")
	}
	return ext, nil
}

// enabled loads the extension and rejects disabled ones.
func (s *Service) enabled(tx store.Tx, name id.ExtensionName) (models.Extension, error) {
	ext, err := s.installed(tx, name)
	if err != nil {
		return models.Extension{}, err
	}
	if !ext.Enabled {
		return models.Extension{}, dErrors.New(dErrors.CodeExtensionDisabled, "extension is disabled")
	}
	return ext, nil
}

func (s *Service) inspect(ctx context.Context, shopID id.ShopID, name id.ExtensionName) (models.Extension, error) {
	var ext models.Extension
	err := s.translate(s.store.View(ctx, shopID, func(tx store.Tx) error {
		got, err := s.installed(tx, name)
		if err != nil {
			return err
		}
		ext = got
		return nil
	}))
	if err != nil {
		return models.Extension{}, err
	}
	return ext, nil
}

func (s *Service) ownerUpdate(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, fn func(store.Tx) error) error {
	if !cap.Grants(shopID) {
		return dErrors.New(dErrors.CodeWrongCapability, "capability not bound to this shop")
	}
	return s.translate(s.store.Update(ctx, shopID, fn))
}

func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "shop not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "shop store failure")
}
