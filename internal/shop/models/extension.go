package models

import (
	"github.com/holiman/uint256"

	id "tradepost/pkg/domain"
)

// Permission bits an extension may request at install time. The mask is
// 128 bits wide; only the low two bits are assigned today.
var (
	PermissionPlace = uint256.NewInt(1) // bit 0: may place items into the shop
	PermissionLock  = uint256.NewInt(2) // bit 1: may lock items (implies place)
)

// Extension is per-add-on state attached to a shop: a permission mask, an
// enabled flag, and isolated scratch storage the extension may use freely
// regardless of enabled status.
type Extension struct {
	Name        id.ExtensionName
	Permissions *uint256.Int
	Enabled     bool
	Storage     map[string][]byte
}

// NewExtension builds an enabled extension record with the requested mask.
func NewExtension(name id.ExtensionName, permissions *uint256.Int) Extension {
	mask := new(uint256.Int)
	if permissions != nil {
		mask.Set(permissions)
	}
	return Extension{
		Name:        name,
		Permissions: mask,
		Enabled:     true,
		Storage:     make(map[string][]byte),
	}
}

// Clone returns a copy that shares no mutable state with the original, so
// stores can hand out records without exposing their committed maps.
func (e Extension) Clone() Extension {
	storage := make(map[string][]byte, len(e.Storage))
	for key, value := range e.Storage {
		storage[key] = append([]byte(nil), value...)
	}
	e.Storage = storage
	if e.Permissions != nil {
		e.Permissions = new(uint256.Int).Set(e.Permissions)
	}
	return e
}

// CanPlace reports whether the mask allows placing. Lock permission implies
// place, so either bit suffices.
func (e *Extension) CanPlace() bool {
	return e.hasBit(PermissionPlace) || e.hasBit(PermissionLock)
}

// CanLock reports whether the mask allows locking.
func (e *Extension) CanLock() bool {
	return e.hasBit(PermissionLock)
}

func (e *Extension) hasBit(bit *uint256.Int) bool {
	if e.Permissions == nil {
		return false
	}
	return !new(uint256.Int).And(e.Permissions, bit).IsZero()
}
