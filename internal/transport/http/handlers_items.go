package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"tradepost/internal/coin"
	"tradepost/internal/shop/models"
	jsonutil "tradepost/internal/transport/http/json"
	"tradepost/internal/transport/http/shared"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
)

type placeItemRequest struct {
	ItemID string          `json:"item_id,omitempty"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
	Lock   bool            `json:"lock,omitempty"`
}

type itemResponse struct {
	ItemID string          `json:"item_id"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (h *Handler) handlePlaceItem(w http.ResponseWriter, r *http.Request) {
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

	var req placeItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	itemID := id.NewItemID()
	if req.ItemID != "" {
		itemID, err = id.ParseItemID(req.ItemID)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
	}
	item := models.Item{ID: itemID, Type: req.Type, Data: req.Data}

	if req.Lock {
		err = h.shops.Lock(r.Context(), shopID, cap, item)
	} else {
		err = h.shops.Place(r.Context(), shopID, cap, item)
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusCreated, itemResponse{
		ItemID: item.ID.String(),
		Type:   item.Type,
		Data:   item.Data,
	})
}

func (h *Handler) handleTakeItem(w http.ResponseWriter, r *http.Request) {
	shopID, itemID, err := shopItemParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	item, err := h.shops.Take(r.Context(), shopID, cap, itemID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, itemResponse{
		ItemID: item.ID.String(),
		Type:   item.Type,
		Data:   item.Data,
	})
}

type itemStateResponse struct {
	ItemID      string `json:"item_id"`
	Present     bool   `json:"present"`
	Locked      bool   `json:"locked"`
	ListingMode string `json:"listing_mode"`
	Price       string `json:"price,omitempty"`
}

func (h *Handler) handleInspectItem(w http.ResponseWriter, r *http.Request) {
	shopID, itemID, err := shopItemParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	view, err := h.shops.InspectItem(r.Context(), shopID, itemID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := itemStateResponse{
		ItemID:      itemID.String(),
		Present:     view.Present,
		Locked:      view.Locked,
		ListingMode: view.ListingMode.String(),
	}
	if view.Price != nil {
		resp.Price = view.Price.Dec()
	}
	jsonutil.WriteJSON(w, http.StatusOK, resp)
}

type listItemRequest struct {
	Price string `json:"price"`
}

func (h *Handler) handleListItem(w http.ResponseWriter, r *http.Request) {
	shopID, itemID, err := shopItemParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req listItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	price, err := uint256.FromDecimal(req.Price)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "price must be a decimal string"))
		return
	}

	if err := h.shops.List(r.Context(), shopID, cap, itemID, price); err != nil {
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDelistItem(w http.ResponseWriter, r *http.Request) {
	shopID, itemID, err := shopItemParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.shops.Delist(r.Context(), shopID, cap, itemID); err != nil {
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type purchaseRequest struct {
	Amount string `json:"amount"`
}

type purchaseResponse struct {
	Item     itemResponse `json:"item"`
	ItemType string       `json:"item_type"`
	Paid     string       `json:"paid"`
	Digest   []byte       `json:"digest"`
}

func (h *Handler) handlePurchaseItem(w http.ResponseWriter, r *http.Request) {
	shopID, itemID, err := shopItemParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "amount must be a decimal string"))
		return
	}

	item, request, err := h.shops.Purchase(r.Context(), shopID, itemID, coin.NewPayment(amount))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	jsonutil.WriteJSON(w, http.StatusOK, purchaseResponse{
		Item: itemResponse{
			ItemID: item.ID.String(),
			Type:   item.Type,
			Data:   item.Data,
		},
		ItemType: request.ItemType,
		Paid:     request.Paid.Dec(),
		Digest:   request.Digest,
	})
}

func shopItemParams(r *http.Request) (id.ShopID, id.ItemID, error) {
	shopID, err := id.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		return id.ShopID{}, id.ItemID{}, err
	}
	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		return id.ShopID{}, id.ItemID{}, err
	}
	return shopID, itemID, nil
}
