package schema

import (
	"time"

	"github.com/shopspring/decimal"

	"main/pkg/exception"
)

// Fill is a normalized execution report. Symbol is always in display form.
type Fill struct {
	Symbol    string
	Side      OrderSide
	Qty       decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
	OrderID   string
	ExecID    string
}

// OrderStatusUpdate is a normalized order-status event. Reason carries the
// venue's text verbatim on rejects.
type OrderStatusUpdate struct {
	OrderID   string
	Symbol    string
	Status    OrderStatus
	Reason    string
	FilledQty decimal.Decimal
	LeavesQty decimal.Decimal
	Timestamp time.Time
}

// ConnectivityUpdate reports a venue connection flag change.
type ConnectivityUpdate struct {
	Connected bool
	Detail    string
}

// MessageKind tags the provider message union.
type MessageKind uint16

const (
	MessageKindUnknown MessageKind = iota
	MessageKindOrderStatus
	MessageKindFill
	MessageKindConnectivity
)

// Message is the tagged union for everything a provider pushes upward.
// Exactly one payload pointer is set, matching Kind.
type Message struct {
	Kind         MessageKind
	Account      AccountID
	Status       *OrderStatusUpdate
	Fill         *Fill
	Connectivity *ConnectivityUpdate
}

// NewStatusMessage builds an order-status message.
func NewStatusMessage(account AccountID, update OrderStatusUpdate) Message {
	return Message{Kind: MessageKindOrderStatus, Account: account, Status: &update}
}

// NewFillMessage builds a fill message.
func NewFillMessage(account AccountID, fill Fill) Message {
	return Message{Kind: MessageKindFill, Account: account, Fill: &fill}
}

// NewConnectivityMessage builds a connectivity message.
func NewConnectivityMessage(account AccountID, update ConnectivityUpdate) Message {
	return Message{Kind: MessageKindConnectivity, Account: account, Connectivity: &update}
}

// Validate checks that the payload matches the kind. The adapter calls this
// at its boundary so nothing malformed propagates upward.
func (m Message) Validate() error {
	if m.Account == "" {
		return exception.ErrInvalidArgument
	}
	switch m.Kind {
	case MessageKindOrderStatus:
		if m.Status == nil || m.Fill != nil || m.Connectivity != nil {
			return exception.ErrInvalidArgument
		}
		if m.Status.OrderID == "" {
			return exception.ErrInvalidArgument
		}
	case MessageKindFill:
		if m.Fill == nil || m.Status != nil || m.Connectivity != nil {
			return exception.ErrInvalidArgument
		}
		if m.Fill.OrderID == "" || m.Fill.Symbol == "" || !m.Fill.Qty.IsPositive() {
			return exception.ErrInvalidArgument
		}
	case MessageKindConnectivity:
		if m.Connectivity == nil || m.Status != nil || m.Fill != nil {
			return exception.ErrInvalidArgument
		}
	default:
		return exception.ErrInvalidArgument
	}
	return nil
}
