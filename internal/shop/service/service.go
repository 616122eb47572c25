// Package service implements the trading core: the per-shop item state
// machine, capability-gated access control, the exclusive-listing protocol,
// and the borrow/return escrow. Every operation runs inside one store
// transaction, so a failed precondition discards the whole sequence.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/holiman/uint256"

	"tradepost/internal/audit"
	"tradepost/internal/coin"
	"tradepost/internal/policy"
	"tradepost/internal/sentinel"
	"tradepost/internal/shop/metrics"
	"tradepost/internal/shop/models"
	"tradepost/internal/shop/store"
	"tradepost/internal/shop/tracer"
	id "tradepost/pkg/domain"
	dErrors "tradepost/pkg/domain-errors"
	"tradepost/pkg/requestcontext"
)

// Service exposes the shop operations. Owner-privileged calls take the target
// shop and an owner capability; the capability binding is the entire
// authorization proof - there is no role list and no ACL.
type Service struct {
	store    store.Store
	policies *policy.Registry
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
	tracer   tracer.Tracer
	logger   *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithAuditor sets the trade event publisher.
func WithAuditor(a *audit.Publisher) Option {
	return func(s *Service) { s.auditor = a }
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer sets the tracer wrapping the purchase paths.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithLogger sets the logger instance for the service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService constructs the trading service over a shop store and the
// registry of known rule-checkers.
func NewService(st store.Store, policies *policy.Registry, opts ...Option) *Service {
	svc := &Service{
		store:    st,
		policies: policies,
		tracer:   tracer.Noop{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// New creates a shop owned by the given address and mints its one owner
// capability. The owner address is informational; the capability is what
// authorizes.
func (s *Service) New(ctx context.Context, owner string) (*models.Shop, models.OwnerCap, error) {
	shop := &models.Shop{
		ID:        id.NewShopID(),
		Owner:     owner,
		Profits:   coin.Zero(),
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := s.store.CreateShop(ctx, shop); err != nil {
		return nil, models.OwnerCap{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create shop")
	}
	cap := models.OwnerCap{ID: id.NewCapID(), ShopID: shop.ID}
	if s.metrics != nil {
		s.metrics.IncrementShopsOpen()
	}
	if s.logger != nil {
		s.logger.Info("shop created", "shop_id", shop.ID, "owner", owner)
	}
	return shop, cap, nil
}

// NewDefault creates a shop for the transaction sender.
func (s *Service) NewDefault(ctx context.Context) (*models.Shop, models.OwnerCap, error) {
	caller := requestcontext.Caller(ctx)
	if caller == "" {
		return nil, models.OwnerCap{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller context")
	}
	return s.New(ctx, caller)
}

// SetOwner refreshes the informational owner address from the transaction
// sender. It changes nothing about authorization.
func (s *Service) SetOwner(ctx context.Context, shopID id.ShopID, cap models.OwnerCap) error {
	caller := requestcontext.Caller(ctx)
	if caller == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "missing caller context")
	}
	return s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		tx.Shop().Owner = caller
		return nil
	})
}

// Withdraw extracts profits from the shop. A nil amount takes everything.
func (s *Service) Withdraw(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, amount *uint256.Int) (*coin.Payment, error) {
	var out *coin.Payment
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		payment, err := tx.Shop().Profits.Split(amount)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInsufficientFunds, "withdrawal exceeds collected profits")
		}
		out = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementWithdrawals()
	}
	return out, nil
}

// Close destroys an empty shop together with its owner capability and
// returns any remaining profits.
func (s *Service) Close(ctx context.Context, shopID id.ShopID, cap models.OwnerCap) (*coin.Payment, error) {
	var out *coin.Payment
	err := s.ownerUpdate(ctx, shopID, cap, func(tx store.Tx) error {
		if tx.Shop().ItemCount != 0 {
			return dErrors.New(dErrors.CodeNotEmpty, "shop still holds items")
		}
		payment, err := tx.Shop().Profits.Split(nil)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to drain profits")
		}
		out = payment
		tx.DeleteShop()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.DecrementShopsOpen()
	}
	if s.logger != nil {
		s.logger.Info("shop closed", "shop_id", shopID)
	}
	return out, nil
}

// ownerUpdate runs fn transactionally after asserting the capability binding.
func (s *Service) ownerUpdate(ctx context.Context, shopID id.ShopID, cap models.OwnerCap, fn func(store.Tx) error) error {
	if !cap.Grants(shopID) {
		return dErrors.New(dErrors.CodeWrongCapability, "capability not bound to this shop")
	}
	return s.translate(s.store.Update(ctx, shopID, fn))
}

// update runs fn transactionally without a capability gate, for operations
// callable by anyone (purchase).
func (s *Service) update(ctx context.Context, shopID id.ShopID, fn func(store.Tx) error) error {
	return s.translate(s.store.Update(ctx, shopID, fn))
}

// translate maps store sentinels that escape a closure untranslated.
func (s *Service) translate(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeNotFound, "shop not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "shop store failure")
}

// listingState reads the tagged listing state, treating absence as ModeNone.
func listingState(tx store.Tx, itemID id.ItemID) (models.Listing, error) {
	listing, err := tx.Listing(itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Listing{Mode: models.ModeNone}, nil
		}
		return models.Listing{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read listing")
	}
	return listing, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.Actor = requestcontext.Caller(ctx)
	event.Client = requestcontext.Client(ctx)
	event.Timestamp = requestcontext.Now(ctx)
	_ = s.auditor.Emit(ctx, event)
}
