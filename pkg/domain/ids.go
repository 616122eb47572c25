// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "tradepost/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a ShopID where an ItemID is expected.
type (
	ShopID uuid.UUID
	ItemID uuid.UUID
	CapID  uuid.UUID
)

// ExtensionName identifies an installed extension. It comes from the
// extension's witness type, not from user input, so it is a plain string.
type ExtensionName string

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseShopID(s string) (ShopID, error) {
	id, err := parseUUID(s, "shop ID")
	return ShopID(id), err
}

func ParseItemID(s string) (ItemID, error) {
	id, err := parseUUID(s, "item ID")
	return ItemID(id), err
}

func ParseCapID(s string) (CapID, error) {
	id, err := parseUUID(s, "capability ID")
	return CapID(id), err
}

func ParseExtensionName(s string) (ExtensionName, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "extension name cannot be empty")
	}
	return ExtensionName(s), nil
}

// New functions - mint fresh, globally unique identities.

func NewShopID() ShopID { return ShopID(uuid.New()) }
func NewItemID() ItemID { return ItemID(uuid.New()) }
func NewCapID() CapID   { return CapID(uuid.New()) }

// String methods - for logging and debugging.

func (id ShopID) String() string      { return uuid.UUID(id).String() }
func (id ItemID) String() string      { return uuid.UUID(id).String() }
func (id CapID) String() string       { return uuid.UUID(id).String() }
func (n ExtensionName) String() string { return string(n) }

// IsNil checks - used for service-layer validation.

func (id ShopID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ItemID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id CapID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (n ExtensionName) IsNil() bool { return n == "" }

// Text marshaling - defined types do not inherit uuid.UUID's methods, so JSON
// and database round-trips need these explicitly.

func (id ShopID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ItemID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id CapID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *ShopID) UnmarshalText(b []byte) error {
	parsed, err := ParseShopID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *ItemID) UnmarshalText(b []byte) error {
	parsed, err := ParseItemID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *CapID) UnmarshalText(b []byte) error {
	parsed, err := ParseCapID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID is the shared validation logic. Nil UUIDs are allowed here so
// store lookups can return proper "not found" errors; use IsNil() at the
// service layer for business validation.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
