package extension_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tradepost/internal/extension"
	"tradepost/internal/policy"
	"tradepost/internal/policy/mocks"
	"tradepost/internal/shop/models"
	"tradepost/internal/shop/service"
	"tradepost/internal/shop/store"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

type testWitness struct{ name id.ExtensionName }

func (w testWitness) ExtensionName() id.ExtensionName { return w.name }

type fixture struct {
	ext      *extension.Service
	shops    *service.Service
	policies *policy.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.New()
	policies := policy.NewRegistry()
	return &fixture{
		ext:      extension.NewService(st, policies),
		shops:    service.NewService(st, policies),
		policies: policies,
	}
}

func (f *fixture) newShop(t *testing.T) (id.ShopID, models.OwnerCap) {
	t.Helper()
	shop, cap, err := f.shops.New(context.Background(), "0xowner")
	require.NoError(t, err)
	return shop.ID, cap
}

func TestInstallLifecycle(t *testing.T) {
	f := newFixture(t)
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}

	installed, err := f.ext.IsInstalled(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, models.PermissionPlace))

	installed, err = f.ext.IsInstalled(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.True(t, installed)

	enabled, err := f.ext.IsEnabled(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.True(t, enabled, "extensions install enabled")

	err = f.ext.Install(ctx, w, shopID, cap, models.PermissionPlace)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	require.NoError(t, f.ext.Remove(ctx, shopID, cap, w.name))
	installed, err = f.ext.IsInstalled(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestInstallRequiresOwnerCapability(t *testing.T) {
	f := newFixture(t)
	shopID, _ := f.newShop(t)
	_, otherCap := f.newShop(t)

	err := f.ext.Install(context.Background(), testWitness{name: "marketplace"}, shopID, otherCap, models.PermissionPlace)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeWrongCapability))
}

func TestPlacePermission(t *testing.T) {
	f := newFixture(t)
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}
	item := models.Item{ID: id.NewItemID(), Type: "gadget"}

	// Not installed yet.
	err := f.ext.Place(ctx, w, shopID, item)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtensionNotInstalled))

	// Installed without any permission.
	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, nil))
	err = f.ext.Place(ctx, w, shopID, item)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtensionForbidden))
	require.NoError(t, f.ext.Remove(ctx, shopID, cap, w.name))

	// With the place permission.
	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, models.PermissionPlace))
	require.NoError(t, f.ext.Place(ctx, w, shopID, item))

	present, err := f.shops.HasItem(ctx, shopID, item.ID)
	require.NoError(t, err)
	assert.True(t, present)

	// The owner can take an extension-placed item as usual.
	got, err := f.shops.Take(ctx, shopID, cap, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestLockPermissionImpliesPlace(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	require.NoError(t, f.policies.Register("regulated", mocks.NewMockRule(ctrl)))
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}

	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, models.PermissionLock))

	// Lock permission also grants place.
	canPlace, err := f.ext.CanPlace(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.True(t, canPlace)
	require.NoError(t, f.ext.Place(ctx, w, shopID, models.Item{ID: id.NewItemID(), Type: "gadget"}))

	item := models.Item{ID: id.NewItemID(), Type: "regulated"}
	require.NoError(t, f.ext.Lock(ctx, w, shopID, item))

	locked, err := f.shops.IsLocked(ctx, shopID, item.ID)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestPlacePermissionDoesNotGrantLock(t *testing.T) {
	f := newFixture(t)
	ctrl := gomock.NewController(t)
	require.NoError(t, f.policies.Register("regulated", mocks.NewMockRule(ctrl)))
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}

	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, models.PermissionPlace))

	canLock, err := f.ext.CanLock(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.False(t, canLock)

	err = f.ext.Lock(ctx, w, shopID, models.Item{ID: id.NewItemID(), Type: "regulated"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtensionForbidden))
}

func TestLockRequiresRuleChecker(t *testing.T) {
	f := newFixture(t)
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}

	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, models.PermissionLock))

	err := f.ext.Lock(ctx, w, shopID, models.Item{ID: id.NewItemID(), Type: "unregulated"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoTransferPolicy))
}

func TestDisableRevokesPermissionsNotStorage(t *testing.T) {
	f := newFixture(t)
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}

	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, models.PermissionPlace))
	require.NoError(t, f.ext.StoragePut(ctx, w, shopID, "state", []byte(`{"orders":3}`)))
	require.NoError(t, f.ext.Disable(ctx, shopID, cap, w.name))

	err := f.ext.Place(ctx, w, shopID, models.Item{ID: id.NewItemID(), Type: "gadget"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExtensionDisabled))

	canPlace, err := f.ext.CanPlace(ctx, shopID, w.name)
	require.NoError(t, err)
	assert.False(t, canPlace)

	// Storage stays accessible so the extension can wind down.
	value, err := f.ext.StorageGet(ctx, w, shopID, "state")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"orders":3}`), value)
	require.NoError(t, f.ext.StorageDelete(ctx, w, shopID, "state"))

	// Enable restores the original permissions.
	require.NoError(t, f.ext.Enable(ctx, shopID, cap, w.name))
	require.NoError(t, f.ext.Place(ctx, w, shopID, models.Item{ID: id.NewItemID(), Type: "gadget"}))
}

func TestRemoveRequiresEmptyStorage(t *testing.T) {
	f := newFixture(t)
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	w := testWitness{name: "marketplace"}

	require.NoError(t, f.ext.Install(ctx, w, shopID, cap, nil))
	require.NoError(t, f.ext.StoragePut(ctx, w, shopID, "state", []byte("x")))

	err := f.ext.Remove(ctx, shopID, cap, w.name)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotEmpty))

	require.NoError(t, f.ext.StorageDelete(ctx, w, shopID, "state"))
	require.NoError(t, f.ext.Remove(ctx, shopID, cap, w.name))
}

func TestStorageIsolationPerExtension(t *testing.T) {
	f := newFixture(t)
	shopID, cap := f.newShop(t)
	ctx := context.Background()
	first := testWitness{name: "marketplace"}
	second := testWitness{name: "auction-house"}

	require.NoError(t, f.ext.Install(ctx, first, shopID, cap, nil))
	require.NoError(t, f.ext.Install(ctx, second, shopID, cap, nil))
	require.NoError(t, f.ext.StoragePut(ctx, first, shopID, "state", []byte("mine")))

	_, err := f.ext.StorageGet(ctx, second, shopID, "state")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
