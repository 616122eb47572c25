package audit

import (
	"context"

	id "tradepost/pkg/domain"
)

// Sink persists audit events. Implementations must be safe for concurrent
// appends; failures are logged by the publisher, never surfaced to trading
// operations.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a sink that also supports reads, used by indexer-facing queries
// and tests.
type Store interface {
	Sink
	ListByShop(ctx context.Context, shopID id.ShopID) ([]Event, error)
}
