// Package httptransport exposes the shop operations over HTTP. Owner
// authority travels as a bearer capability token; everything the token
// does not prove is refused before any service call.
//
// The exclusive-listing protocol and the borrow escrow are deliberately not
// routed: both hand out single-use values whose linearity cannot be enforced
// across a stateless HTTP boundary. Embedding callers use the service API
// directly for those flows.
package httptransport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradepost/internal/captoken"
	"tradepost/internal/extension"
	"tradepost/internal/platform/health"
	"tradepost/internal/platform/middleware"
	"tradepost/internal/shop/models"
	"tradepost/internal/shop/service"
	dErrors "tradepost/pkg/domain-errors"
)

// Handler is the thin HTTP layer. It delegates to the domain services without
// embedding business logic so transport concerns remain isolated.
type Handler struct {
	shops      *service.Service
	extensions *extension.Service
	tokens     *captoken.Service
	logger     *slog.Logger
}

func NewHandler(shops *service.Service, extensions *extension.Service, tokens *captoken.Service, logger *slog.Logger) *Handler {
	return &Handler{
		shops:      shops,
		extensions: extensions,
		tokens:     tokens,
		logger:     logger,
	}
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(h *Handler, healthHandler *health.Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.ClientMetadata)

	if healthHandler != nil {
		healthHandler.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/shops", func(r chi.Router) {
		r.Post("/", h.handleCreateShop)

		r.Route("/{shopID}", func(r chi.Router) {
			r.Get("/", h.handleInspectShop)
			r.Delete("/", h.handleCloseShop)
			r.Post("/owner", h.handleSetOwner)
			r.Post("/withdrawals", h.handleWithdraw)

			r.Route("/items", func(r chi.Router) {
				r.Post("/", h.handlePlaceItem)
				r.Route("/{itemID}", func(r chi.Router) {
					r.Get("/", h.handleInspectItem)
					r.Delete("/", h.handleTakeItem)
					r.Post("/listing", h.handleListItem)
					r.Delete("/listing", h.handleDelistItem)
					r.Post("/purchase", h.handlePurchaseItem)
				})
			})

			r.Route("/extensions/{name}", func(r chi.Router) {
				r.Get("/", h.handleInspectExtension)
				r.Post("/enable", h.handleEnableExtension)
				r.Post("/disable", h.handleDisableExtension)
				r.Delete("/", h.handleRemoveExtension)
			})
		})
	})

	return r
}

// ownerCap extracts and validates the bearer capability token.
func (h *Handler) ownerCap(r *http.Request) (models.OwnerCap, error) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "missing bearer capability token")
	}
	return h.tokens.Validate(token)
}
