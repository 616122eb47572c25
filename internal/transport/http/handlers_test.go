package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradepost/internal/captoken"
	"tradepost/internal/extension"
	"tradepost/internal/platform/health"
	"tradepost/internal/platform/logger"
	"tradepost/internal/policy"
	"tradepost/internal/shop/service"
	"tradepost/internal/shop/store"
	httptransport "tradepost/internal/transport/http"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	st := store.New()
	policies := policy.NewRegistry()
	shops := service.NewService(st, policies)
	extensions := extension.NewService(st, policies)
	tokens := captoken.NewService("test-signing-key", "tradepost", time.Hour)
	log := logger.New()
	h := httptransport.NewHandler(shops, extensions, tokens, log)
	return httptransport.NewRouter(h, health.New("test"), log)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

type shopCreated struct {
	ShopID   string `json:"shop_id"`
	Owner    string `json:"owner"`
	CapToken string `json:"cap_token"`
}

func createShop(t *testing.T, router http.Handler) shopCreated {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/shops", "", map[string]string{"owner": "0xowner"})
	require.Equal(t, http.StatusCreated, rec.Code)
	return decode[shopCreated](t, rec)
}

func TestCreateShopReturnsCapToken(t *testing.T) {
	router := newTestServer(t)

	shop := createShop(t, router)
	assert.NotEmpty(t, shop.ShopID)
	assert.Equal(t, "0xowner", shop.Owner)
	assert.NotEmpty(t, shop.CapToken)
}

func TestCreateShopRequiresOwner(t *testing.T) {
	router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/shops", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPlaceListPurchaseOverHTTP(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)

	rec := doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/items", shop.CapToken,
		map[string]any{"type": "gadget", "data": map[string]int{"v": 1}})
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[struct {
		ItemID string `json:"item_id"`
	}](t, rec)

	itemPath := fmt.Sprintf("/shops/%s/items/%s", shop.ShopID, item.ItemID)

	rec = doJSON(t, router, http.MethodPost, itemPath+"/listing", shop.CapToken,
		map[string]string{"price": "100"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodGet, itemPath, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[struct {
		Present     bool   `json:"present"`
		ListingMode string `json:"listing_mode"`
		Price       string `json:"price"`
	}](t, rec)
	assert.True(t, state.Present)
	assert.Equal(t, "fixed_price", state.ListingMode)
	assert.Equal(t, "100", state.Price)

	// Purchase needs no capability.
	rec = doJSON(t, router, http.MethodPost, itemPath+"/purchase", "",
		map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, rec.Code)
	sale := decode[struct {
		Paid   string `json:"paid"`
		Digest []byte `json:"digest"`
	}](t, rec)
	assert.Equal(t, "100", sale.Paid)
	assert.NotEmpty(t, sale.Digest)

	// Profits are visible on the shop view.
	rec = doJSON(t, router, http.MethodGet, "/shops/"+shop.ShopID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[struct {
		ItemCount uint32 `json:"item_count"`
		Profits   string `json:"profits"`
	}](t, rec)
	assert.Equal(t, uint32(0), view.ItemCount)
	assert.Equal(t, "100", view.Profits)
}

func TestPurchaseWrongAmountReturns402(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)

	rec := doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/items", shop.CapToken,
		map[string]any{"type": "gadget"})
	require.Equal(t, http.StatusCreated, rec.Code)
	item := decode[struct {
		ItemID string `json:"item_id"`
	}](t, rec)
	itemPath := fmt.Sprintf("/shops/%s/items/%s", shop.ShopID, item.ItemID)

	rec = doJSON(t, router, http.MethodPost, itemPath+"/listing", shop.CapToken,
		map[string]string{"price": "100"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, itemPath+"/purchase", "",
		map[string]string{"amount": "99"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestOwnerEndpointsRejectMissingToken(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)

	rec := doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/items", "",
		map[string]any{"type": "gadget"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOwnerEndpointsRejectForeignToken(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)
	other := createShop(t, router)

	rec := doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/items", other.CapToken,
		map[string]any{"type": "gadget"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithdrawAndClose(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)

	rec := doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/withdrawals", shop.CapToken,
		map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code, "no profits to withdraw yet")

	rec = doJSON(t, router, http.MethodDelete, "/shops/"+shop.ShopID, shop.CapToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decode[struct {
		Amount string `json:"amount"`
	}](t, rec)
	assert.Equal(t, "0", closed.Amount)

	rec = doJSON(t, router, http.MethodGet, "/shops/"+shop.ShopID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTakeLockedItemReturns412(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)

	// Locking over HTTP needs a registered rule-checker; absent one the
	// request is refused up front.
	rec := doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/items", shop.CapToken,
		map[string]any{"type": "gadget", "lock": true})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)
}

func TestExtensionEndpointsForUnknownExtension(t *testing.T) {
	router := newTestServer(t)
	shop := createShop(t, router)

	rec := doJSON(t, router, http.MethodGet, "/shops/"+shop.ShopID+"/extensions/marketplace", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[struct {
		Installed bool `json:"installed"`
	}](t, rec)
	assert.False(t, state.Installed)

	rec = doJSON(t, router, http.MethodPost, "/shops/"+shop.ShopID+"/extensions/marketplace/disable", shop.CapToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
