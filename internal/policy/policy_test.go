package policy_test

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tradepost/internal/policy"
	"tradepost/internal/policy/mocks"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

func TestRegistryRegisterAndHas(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := policy.NewRegistry()

	require.False(t, reg.Has("gadget"))
	require.NoError(t, reg.Register("gadget", mocks.NewMockRule(ctrl)))
	assert.True(t, reg.Has("gadget"))

	err := reg.Register("gadget", mocks.NewMockRule(ctrl))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
}

func TestConfirmDelegatesToRule(t *testing.T) {
	ctrl := gomock.NewController(t)
	rule := mocks.NewMockRule(ctrl)
	reg := policy.NewRegistry()
	require.NoError(t, reg.Register("gadget", rule))

	req := policy.NewTransferRequest(id.NewShopID(), id.NewItemID(), "gadget", uint256.NewInt(100))
	rule.EXPECT().Approve(gomock.Any(), req).Return(nil)

	require.NoError(t, reg.Confirm(context.Background(), req))
}

func TestConfirmWithoutRule(t *testing.T) {
	reg := policy.NewRegistry()
	req := policy.NewTransferRequest(id.NewShopID(), id.NewItemID(), "gadget", uint256.NewInt(100))

	err := reg.Confirm(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoTransferPolicy))
}

func TestConfirmRejectsTamperedReceipt(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := policy.NewRegistry()
	require.NoError(t, reg.Register("gadget", mocks.NewMockRule(ctrl)))

	req := policy.NewTransferRequest(id.NewShopID(), id.NewItemID(), "gadget", uint256.NewInt(100))
	req.Paid = uint256.NewInt(1) // digest no longer matches

	err := reg.Confirm(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestTransferRequestVerify(t *testing.T) {
	req := policy.NewTransferRequest(id.NewShopID(), id.NewItemID(), "gadget", uint256.NewInt(42))
	assert.True(t, req.Verify())

	req.Digest = req.Digest[:16]
	assert.False(t, req.Verify())
}
