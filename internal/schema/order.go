package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks the lifecycle of an order.
type OrderStatus uint16

const (
	OrderStatusUnknown OrderStatus = iota
	OrderStatusPending
	OrderStatusSubmitted
	OrderStatusPartFilled
	OrderStatusFilled
	OrderStatusCancelled
	OrderStatusRejected
	OrderStatusOrphaned
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusSubmitted:
		return "submitted"
	case OrderStatusPartFilled:
		return "part_filled"
	case OrderStatusFilled:
		return "filled"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRejected:
		return "rejected"
	case OrderStatusOrphaned:
		return "orphaned"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// IsLive reports whether the order may still trade on its venue. An orphaned
// order is live on the legacy venue until cancelled there.
func (s OrderStatus) IsLive() bool {
	switch s {
	case OrderStatusPending, OrderStatusSubmitted, OrderStatusPartFilled, OrderStatusOrphaned:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// step. Fills may arrive interleaved, so part-filled and submitted flip both
// ways. Any non-terminal state may orphan.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusOrphaned {
		return true
	}
	switch s {
	case OrderStatusPending:
		return next == OrderStatusSubmitted || next == OrderStatusRejected || next == OrderStatusCancelled
	case OrderStatusSubmitted:
		return next == OrderStatusPartFilled || next == OrderStatusFilled ||
			next == OrderStatusCancelled || next == OrderStatusRejected
	case OrderStatusPartFilled:
		return next == OrderStatusSubmitted || next == OrderStatusPartFilled ||
			next == OrderStatusFilled || next == OrderStatusCancelled
	case OrderStatusOrphaned:
		return next == OrderStatusCancelled || next == OrderStatusFilled || next == OrderStatusPartFilled
	default:
		return false
	}
}

// ProposedOrder is what the decision layer hands to the execution core.
type ProposedOrder struct {
	Symbol     string
	Side       OrderSide
	Qty        decimal.Decimal
	Type       OrderType
	LimitPrice decimal.Decimal
	Bucket     Bucket
	DecisionAt time.Time
	CycleID    uint64
}

// DedupKey identifies one decision. Two proposals sharing the key collapse
// into a single submission.
type DedupKey struct {
	DecisionTs int64
	CycleID    uint64
	Symbol     string
	Side       OrderSide
}

// Key derives the deduplication key for the proposal.
func (p ProposedOrder) Key() DedupKey {
	return DedupKey{
		DecisionTs: p.DecisionAt.UnixNano(),
		CycleID:    p.CycleID,
		Symbol:     p.Symbol,
		Side:       p.Side,
	}
}

// OrderRequest is the account-scoped request shape providers accept. Symbol
// is in display form; the adapter translates to the venue form.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Qty           decimal.Decimal
	Type          OrderType
	LimitPrice    decimal.Decimal
	TimeInForce   TimeInForce
	ClientOrderID string
}

// PlaceResult reports the venue's answer to a place call.
type PlaceResult struct {
	OrderID  string
	Accepted bool
	Reason   string
}

// OpenOrder is a provider's view of one resting order.
type OpenOrder struct {
	OrderID    string
	Symbol     string
	Side       OrderSide
	Qty        decimal.Decimal
	LeavesQty  decimal.Decimal
	LimitPrice decimal.Decimal
	Status     OrderStatus
}

// Position is one (symbol, bucket) sub-ledger entry. Qty is signed; short
// positions carry negative quantity.
type Position struct {
	Symbol   string
	Bucket   Bucket
	Qty      decimal.Decimal
	AvgPrice decimal.Decimal
}
