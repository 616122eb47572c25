package audit

import (
	"time"

	id "tradepost/pkg/domain"
	"tradepost/pkg/requestcontext"
)

// Action names the change-tracking signals emitted by the trading core.
// These feed off-chain indexers; nothing in the core reads them back.
type Action string

const (
	ActionItemListed    Action = "item_listed"
	ActionItemPurchased Action = "item_purchased"
	ActionItemDelisted  Action = "item_delisted"
)

// Event is one append-only trade record. Price is the decimal string of the
// listed or paid amount so sinks never need 256-bit arithmetic.
type Event struct {
	ShopID    id.ShopID
	ItemID    id.ItemID
	ItemType  string
	Action    Action
	Price     string
	Actor     string
	Client    requestcontext.ClientMetadata
	Timestamp time.Time
}
