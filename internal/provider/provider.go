// Package provider defines the execution-provider contract. One
// implementation exists per venue; every call is explicitly account-scoped.
package provider

import (
	"context"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

// EventHandler receives asynchronous order-status, fill, and connectivity
// messages from a provider. Providers emit venue-native symbols; the adapter
// normalizes them before anything above sees the message.
type EventHandler func(msg schema.Message)

// ExecutionProvider is the venue contract. Implementations must honor the
// account scope on every call and keep callbacks for the same order in
// delivery order.
type ExecutionProvider interface {
	// Name returns the venue identifier (e.g. "terminal", "retail").
	Name() string

	// Connect establishes connectivity for the account. Implementations
	// bound the wait; a dead venue returns an error, never hangs.
	Connect(ctx context.Context, account schema.AccountID) error

	// Disconnect tears down connectivity for the account.
	Disconnect(ctx context.Context, account schema.AccountID) error

	// Positions returns the venue's view of current holdings.
	Positions(ctx context.Context, account schema.AccountID) ([]schema.Position, error)

	// OpenOrders returns all resting orders for the account.
	OpenOrders(ctx context.Context, account schema.AccountID) ([]schema.OpenOrder, error)

	// PlaceOrder submits an order. A venue-side refusal is reported in the
	// result, not as an error; errors mean the request never took effect.
	PlaceOrder(ctx context.Context, account schema.AccountID, req schema.OrderRequest) (schema.PlaceResult, error)

	// CancelOrder requests cancellation of one resting order.
	CancelOrder(ctx context.Context, account schema.AccountID, orderID string) error

	// ReplaceOrder amends price and, when qty is positive, quantity.
	ReplaceOrder(ctx context.Context, account schema.AccountID, orderID string, price, qty decimal.Decimal) error

	// SetHandler registers the callback sink. Must be called before Connect.
	SetHandler(h EventHandler)
}
