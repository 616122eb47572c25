package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	jsonutil "tradepost/internal/transport/http/json"
	"tradepost/internal/transport/http/shared"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
	"tradepost/pkg/requestcontext"
)

type createShopRequest struct {
	Owner string `json:"owner,omitempty"`
}

type createShopResponse struct {
	ShopID   string `json:"shop_id"`
	Owner    string `json:"owner"`
	CapToken string `json:"cap_token"`
}

func (h *Handler) handleCreateShop(w http.ResponseWriter, r *http.Request) {
	var req createShopRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	ctx := r.Context()
	owner := req.Owner
	if owner == "" {
		owner = requestcontext.Caller(ctx)
	}
	if owner == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "owner address or caller header required"))
		return
	}

	shop, cap, err := h.shops.New(ctx, owner)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	token, err := h.tokens.Mint(ctx, cap)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint capability token"))
		return
	}

	jsonutil.WriteJSON(w, http.StatusCreated, createShopResponse{
		ShopID:   shop.ID.String(),
		Owner:    shop.Owner,
		CapToken: token,
	})
}

type shopResponse struct {
	ShopID    string `json:"shop_id"`
	Owner     string `json:"owner"`
	ItemCount uint32 `json:"item_count"`
	Profits   string `json:"profits"`
}

func (h *Handler) handleInspectShop(w http.ResponseWriter, r *http.Request) {
	shopID, err := id.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	view, err := h.shops.Inspect(r.Context(), shopID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, shopResponse{
		ShopID:    view.ID.String(),
		Owner:     view.Owner,
		ItemCount: view.ItemCount,
		Profits:   view.Profits.Dec(),
	})
}

type paymentResponse struct {
	Amount string `json:"amount"`
}

func (h *Handler) handleCloseShop(w http.ResponseWriter, r *http.Request) {
	shopID, err := id.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	payment, err := h.shops.Close(r.Context(), shopID, cap)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, paymentResponse{Amount: payment.Amount().Dec()})
}

func (h *Handler) handleSetOwner(w http.ResponseWriter, r *http.Request) {
	shopID, err := id.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.shops.SetOwner(r.Context(), shopID, cap); err != nil {
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type withdrawRequest struct {
	// Amount is a decimal string; omit to withdraw everything.
	Amount string `json:"amount,omitempty"`
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	shopID, err := id.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req withdrawRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
	}

	var amount *uint256.Int
	if req.Amount != "" {
		amount, err = uint256.FromDecimal(req.Amount)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "amount must be a decimal string"))
			return
		}
	}

	payment, err := h.shops.Withdraw(r.Context(), shopID, cap, amount)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, paymentResponse{Amount: payment.Amount().Dec()})
}
