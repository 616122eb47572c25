package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	jsonutil "tradepost/internal/transport/http/json"
	"tradepost/internal/transport/http/shared"
	id "tradepost/pkg/domain"
)

type extensionResponse struct {
	Name      string `json:"name"`
	Installed bool   `json:"installed"`
	Enabled   bool   `json:"enabled"`
	CanPlace  bool   `json:"can_place"`
	CanLock   bool   `json:"can_lock"`
}

func (h *Handler) handleInspectExtension(w http.ResponseWriter, r *http.Request) {
	shopID, name, err := shopExtensionParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	ctx := r.Context()
	installed, err := h.extensions.IsInstalled(ctx, shopID, name)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	resp := extensionResponse{Name: string(name), Installed: installed}
	if installed {
		if resp.Enabled, err = h.extensions.IsEnabled(ctx, shopID, name); err != nil {
			shared.WriteError(w, err)
			return
		}
		if resp.CanPlace, err = h.extensions.CanPlace(ctx, shopID, name); err != nil {
			shared.WriteError(w, err)
			return
		}
		if resp.CanLock, err = h.extensions.CanLock(ctx, shopID, name); err != nil {
			shared.WriteError(w, err)
			return
		}
	}

	jsonutil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleEnableExtension(w http.ResponseWriter, r *http.Request) {
	h.setExtensionEnabled(w, r, true)
}

func (h *Handler) handleDisableExtension(w http.ResponseWriter, r *http.Request) {
	h.setExtensionEnabled(w, r, false)
}

func (h *Handler) setExtensionEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	shopID, name, err := shopExtensionParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if enabled {
		err = h.extensions.Enable(r.Context(), shopID, cap, name)
	} else {
		err = h.extensions.Disable(r.Context(), shopID, cap, name)
	}
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveExtension(w http.ResponseWriter, r *http.Request) {
	shopID, name, err := shopExtensionParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	cap, err := h.ownerCap(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	if err := h.extensions.Remove(r.Context(), shopID, cap, name); err != nil {
		shared.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func shopExtensionParams(r *http.Request) (id.ShopID, id.ExtensionName, error) {
	shopID, err := id.ParseShopID(chi.URLParam(r, "shopID"))
	if err != nil {
		return id.ShopID{}, "", err
	}
	name, err := id.ParseExtensionName(chi.URLParam(r, "name"))
	if err != nil {
		return id.ShopID{}, "", err
	}
	return shopID, name, nil
}
