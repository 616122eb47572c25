package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

func TestParseShopIDRoundTrip(t *testing.T) {
	minted := id.NewShopID()

	parsed, err := id.ParseShopID(minted.String())
	require.NoError(t, err)
	assert.Equal(t, minted, parsed)
}

func TestParseShopIDRejectsGarbage(t *testing.T) {
	_, err := id.ParseShopID("not-a-uuid")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestItemIDJSONRoundTrip(t *testing.T) {
	minted := id.NewItemID()

	data, err := json.Marshal(minted)
	require.NoError(t, err)

	var decoded id.ItemID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, minted, decoded)
}

func TestIsNil(t *testing.T) {
	assert.True(t, id.ShopID{}.IsNil())
	assert.False(t, id.NewShopID().IsNil())
}

func TestParseExtensionName(t *testing.T) {
	name, err := id.ParseExtensionName("marketplace")
	require.NoError(t, err)
	assert.Equal(t, id.ExtensionName("marketplace"), name)

	_, err = id.ParseExtensionName("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
