package controller

import (
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// TrackedOrder is the controller's authoritative record of one in-flight
// order. The controller owns it exclusively; queries return copies. Mode is
// fixed at tracking time and never mutated, an account switch flips
// OrphanedProvider instead of migrating the order.
type TrackedOrder struct {
	OrderID          string
	ClientOrderID    string
	Symbol           string
	Side             schema.OrderSide
	Type             schema.OrderType
	Qty              decimal.Decimal
	LimitPrice       decimal.Decimal
	Account          schema.AccountID
	Mode             schema.Mode
	Bucket           schema.Bucket
	Status           schema.OrderStatus
	Reason           string
	FilledQty        decimal.Decimal
	OrphanedProvider bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// samePayload compares the immutable submission fields. Lifecycle fields
// (status, fills, timestamps) are excluded so an identical re-track of a
// progressed order still counts as identical.
func (o TrackedOrder) samePayload(other TrackedOrder) bool {
	return o.OrderID == other.OrderID &&
		o.Symbol == other.Symbol &&
		o.Side == other.Side &&
		o.Type == other.Type &&
		o.Qty.Equal(other.Qty) &&
		o.LimitPrice.Equal(other.LimitPrice) &&
		o.Account == other.Account &&
		o.Mode == other.Mode &&
		o.Bucket == other.Bucket
}
