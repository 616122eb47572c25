package captoken_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/captoken"
	"tradepost/internal/shop/models"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
	"tradepost/pkg/requestcontext"
)

func newCap() models.OwnerCap {
	return models.OwnerCap{ID: id.NewCapID(), ShopID: id.NewShopID()}
}

func TestMintAndValidateRoundTrip(t *testing.T) {
	svc := captoken.NewService("test-signing-key", "tradepost", time.Hour)
	cap := newCap()

	token, err := svc.Mint(context.Background(), cap)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, cap, got)
	assert.True(t, got.Grants(cap.ShopID))
}

func TestValidateRejectsWrongKey(t *testing.T) {
	minter := captoken.NewService("key-one", "tradepost", time.Hour)
	verifier := captoken.NewService("key-two", "tradepost", time.Hour)

	token, err := minter.Mint(context.Background(), newCap())
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := captoken.NewService("test-signing-key", "tradepost", time.Hour)

	past := requestcontext.WithNow(context.Background(), time.Now().Add(-2*time.Hour))
	token, err := svc.Mint(past, newCap())
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	minter := captoken.NewService("test-signing-key", "somewhere-else", time.Hour)
	verifier := captoken.NewService("test-signing-key", "tradepost", time.Hour)

	token, err := minter.Mint(context.Background(), newCap())
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestValidateRejectsEmptyToken(t *testing.T) {
	svc := captoken.NewService("test-signing-key", "tradepost", time.Hour)

	_, err := svc.Validate("")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func TestZeroTTLTokensDoNotExpire(t *testing.T) {
	svc := captoken.NewService("test-signing-key", "tradepost", 0)

	past := requestcontext.WithNow(context.Background(), time.Now().Add(-24*time.Hour))
	token, err := svc.Mint(past, newCap())
	require.NoError(t, err)

	_, err = svc.Validate(token)
	require.NoError(t, err)
}
