// Package adapter wraps one execution provider for one account. It enforces
// the account guard, validates requests before they touch the network, and
// normalizes everything the provider pushes upward into schema types with
// display-form symbols.
package adapter

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/provider"
	"main/internal/schema"
	"main/pkg/exception"
)

// ExecutionAdapter is the boundary between venue-specific behavior and the
// execution core. Construction binds it to a single account; every call must
// name that account or it is rejected before any network activity.
type ExecutionAdapter struct {
	account  schema.AccountID
	mode     schema.Mode
	provider provider.ExecutionProvider

	mu      sync.RWMutex
	handler provider.EventHandler
}

// New binds the adapter to its account and registers it as the provider's
// callback sink.
func New(account schema.AccountID, mode schema.Mode, p provider.ExecutionProvider) *ExecutionAdapter {
	a := &ExecutionAdapter{
		account:  account,
		mode:     mode,
		provider: p,
	}
	p.SetHandler(a.onProviderMessage)
	return a
}

// Account returns the construction-time account.
func (a *ExecutionAdapter) Account() schema.AccountID {
	return a.account
}

// Mode returns the execution mode this adapter serves.
func (a *ExecutionAdapter) Mode() schema.Mode {
	return a.mode
}

// Subscribe registers the sink for normalized messages.
func (a *ExecutionAdapter) Subscribe(h provider.EventHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

func (a *ExecutionAdapter) guard(account schema.AccountID) error {
	if account != a.account {
		return errors.Wrap(exception.ErrAccountGuardMismatch, string(a.account)+" got "+string(account))
	}
	return nil
}

// Connect establishes venue connectivity for the account.
func (a *ExecutionAdapter) Connect(ctx context.Context, account schema.AccountID) error {
	if err := a.guard(account); err != nil {
		return err
	}
	if err := a.provider.Connect(ctx, account); err != nil {
		return errors.Wrap(exception.ErrVenueUnreachable, err.Error())
	}
	return nil
}

// Disconnect tears down venue connectivity for the account.
func (a *ExecutionAdapter) Disconnect(ctx context.Context, account schema.AccountID) error {
	if err := a.guard(account); err != nil {
		return err
	}
	return a.provider.Disconnect(ctx, account)
}

// Positions queries holdings, translated to display symbols.
func (a *ExecutionAdapter) Positions(ctx context.Context, account schema.AccountID) ([]schema.Position, error) {
	if err := a.guard(account); err != nil {
		return nil, err
	}
	positions, err := a.provider.Positions(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, "query positions")
	}
	for i := range positions {
		positions[i].Symbol = ToDisplaySymbol(positions[i].Symbol)
	}
	return positions, nil
}

// OpenOrders queries resting orders, translated to display symbols.
func (a *ExecutionAdapter) OpenOrders(ctx context.Context, account schema.AccountID) ([]schema.OpenOrder, error) {
	if err := a.guard(account); err != nil {
		return nil, err
	}
	orders, err := a.provider.OpenOrders(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, "query open orders")
	}
	for i := range orders {
		orders[i].Symbol = ToDisplaySymbol(orders[i].Symbol)
	}
	return orders, nil
}

// PlaceOrder validates and submits an order. Validation failures are
// synchronous and never reach the venue.
func (a *ExecutionAdapter) PlaceOrder(ctx context.Context, account schema.AccountID, req schema.OrderRequest) (schema.PlaceResult, error) {
	if err := a.guard(account); err != nil {
		return schema.PlaceResult{}, err
	}
	if err := validateRequest(req); err != nil {
		return schema.PlaceResult{}, err
	}
	req.Symbol = ToVenueSymbol(req.Symbol)
	res, err := a.provider.PlaceOrder(ctx, account, req)
	if err != nil {
		return schema.PlaceResult{}, errors.Wrap(err, "place order")
	}
	return res, nil
}

// CancelOrder requests cancellation of one resting order.
func (a *ExecutionAdapter) CancelOrder(ctx context.Context, account schema.AccountID, orderID string) error {
	if err := a.guard(account); err != nil {
		return err
	}
	if orderID == "" {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "empty order id")
	}
	if err := a.provider.CancelOrder(ctx, account, orderID); err != nil {
		return errors.Wrap(err, "cancel order "+orderID)
	}
	return nil
}

// ReplaceOrder amends a resting order's price and optionally quantity.
func (a *ExecutionAdapter) ReplaceOrder(ctx context.Context, account schema.AccountID, orderID string, price, qty decimal.Decimal) error {
	if err := a.guard(account); err != nil {
		return err
	}
	if orderID == "" {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "empty order id")
	}
	if !price.IsPositive() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "replace price must be positive")
	}
	if err := a.provider.ReplaceOrder(ctx, account, orderID, price, qty); err != nil {
		return errors.Wrap(err, "replace order "+orderID)
	}
	return nil
}

func validateRequest(req schema.OrderRequest) error {
	if req.Symbol == "" {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "empty symbol")
	}
	if req.Side == schema.OrderSideUnknown {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "unknown side")
	}
	if !req.Qty.IsPositive() {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "qty must be positive")
	}
	switch req.Type {
	case schema.OrderTypeLimit:
		if !req.LimitPrice.IsPositive() {
			return errors.Wrap(exception.ErrOrderInvalidRequest, "limit order without price")
		}
	case schema.OrderTypeMarket:
	default:
		return errors.Wrap(exception.ErrOrderUnsupportedType, req.Type.String())
	}
	return nil
}

// onProviderMessage normalizes and forwards one provider callback. Messages
// scoped to a different account are dropped here; this is the last line of
// the account guard on the inbound path.
func (a *ExecutionAdapter) onProviderMessage(msg schema.Message) {
	if msg.Account == "" {
		msg.Account = a.account
	}
	if msg.Account != a.account {
		logs.Errorf("adapter %s dropped message for account %s", a.account, msg.Account)
		return
	}

	switch msg.Kind {
	case schema.MessageKindFill:
		if msg.Fill != nil {
			msg.Fill.Symbol = ToDisplaySymbol(msg.Fill.Symbol)
		}
	case schema.MessageKindOrderStatus:
		if msg.Status != nil {
			msg.Status.Symbol = ToDisplaySymbol(msg.Status.Symbol)
		}
	}

	if err := msg.Validate(); err != nil {
		logs.Errorf("adapter %s dropped malformed %d message, err: %+v", a.account, msg.Kind, err)
		return
	}

	a.mu.RLock()
	h := a.handler
	a.mu.RUnlock()
	if h != nil {
		h(msg)
	}
}
