// Package retail implements the execution provider for the retail brokerage
// API. The same type serves the paper and live endpoints; the account context
// treats them as distinct execution modes.
package retail

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/provider"
	"main/internal/schema"
	"main/pkg/exception"
)

const _defaultConnectTimeout = 15 * time.Second

// Config holds brokerage credentials and the endpoint that decides paper vs
// live.
type Config struct {
	APIKey         string
	APISecret      string
	BaseURL        string
	ConnectTimeout time.Duration
}

var _ provider.ExecutionProvider = (*Provider)(nil)

// Provider talks to one brokerage account (paper or live by endpoint).
type Provider struct {
	cfg    Config
	client *alpaca.Client

	mu         sync.RWMutex
	handler    provider.EventHandler
	cancelFeed context.CancelFunc
}

// New creates a retail provider for the configured endpoint.
func New(cfg Config) *Provider {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = _defaultConnectTimeout
	}
	return &Provider{
		cfg: cfg,
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			BaseURL:   cfg.BaseURL,
		}),
	}
}

// Name returns "retail".
func (p *Provider) Name() string {
	return "retail"
}

// SetHandler registers the callback sink.
func (p *Provider) SetHandler(h provider.EventHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// Connect verifies credentials within a bounded wait and starts the
// trade-update feed for the account.
func (p *Provider) Connect(ctx context.Context, account schema.AccountID) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := p.client.GetAccount()
		done <- err
	}()
	select {
	case <-ctx.Done():
		return errors.Wrap(exception.ErrConnectTimeout, p.cfg.BaseURL)
	case err := <-done:
		if err != nil {
			return errors.Wrap(exception.ErrVenueUnreachable, err.Error())
		}
	}

	feedCtx, cancelFeed := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancelFeed = cancelFeed
	p.mu.Unlock()
	go p.streamTradeUpdates(feedCtx, account)

	p.emit(schema.NewConnectivityMessage(account, schema.ConnectivityUpdate{Connected: true, Detail: "retail feed up: " + p.cfg.BaseURL}))
	return nil
}

// Disconnect stops the trade-update feed.
func (p *Provider) Disconnect(_ context.Context, account schema.AccountID) error {
	p.mu.Lock()
	if p.cancelFeed != nil {
		p.cancelFeed()
		p.cancelFeed = nil
	}
	p.mu.Unlock()
	p.emit(schema.NewConnectivityMessage(account, schema.ConnectivityUpdate{Connected: false, Detail: "retail feed down"}))
	return nil
}

func (p *Provider) streamTradeUpdates(ctx context.Context, account schema.AccountID) {
	err := p.client.StreamTradeUpdates(ctx, func(tu alpaca.TradeUpdate) {
		for _, msg := range normalizeTradeUpdate(account, tu) {
			p.emit(msg)
		}
	}, alpaca.StreamTradeUpdatesRequest{})
	if err != nil && ctx.Err() == nil {
		logs.Errorf("retail: trade update stream stopped, err: %+v", err)
		p.emit(schema.NewConnectivityMessage(account, schema.ConnectivityUpdate{Connected: false, Detail: err.Error()}))
	}
}

func (p *Provider) emit(msg schema.Message) {
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h != nil {
		h(msg)
	}
}

// normalizeTradeUpdate maps one brokerage trade update into canonical
// messages. Fill events produce both a fill and a status update so the order
// map and the ledger stay in step from a single venue event.
func normalizeTradeUpdate(account schema.AccountID, tu alpaca.TradeUpdate) []schema.Message {
	status := schema.OrderStatusUpdate{
		OrderID:   tu.Order.ID,
		Symbol:    tu.Order.Symbol,
		Timestamp: tu.At,
	}
	if tu.Order.FilledQty.IsPositive() {
		status.FilledQty = tu.Order.FilledQty
	}

	switch tu.Event {
	case "new", "pending_new", "accepted", "replaced":
		status.Status = schema.OrderStatusSubmitted
	case "partial_fill":
		status.Status = schema.OrderStatusPartFilled
	case "fill":
		status.Status = schema.OrderStatusFilled
	case "canceled", "expired", "done_for_day":
		status.Status = schema.OrderStatusCancelled
	case "rejected":
		status.Status = schema.OrderStatusRejected
		status.Reason = tu.Event
	default:
		return nil
	}

	out := []schema.Message{schema.NewStatusMessage(account, status)}
	if (tu.Event == "fill" || tu.Event == "partial_fill") && tu.Price != nil && tu.Qty != nil {
		out = append(out, schema.NewFillMessage(account, schema.Fill{
			Symbol:    tu.Order.Symbol,
			Side:      mapSide(tu.Order.Side),
			Qty:       *tu.Qty,
			Price:     *tu.Price,
			Timestamp: tu.At,
			OrderID:   tu.Order.ID,
			ExecID:    tu.ExecutionID,
		}))
	}
	return out
}

func mapSide(side alpaca.Side) schema.OrderSide {
	switch side {
	case alpaca.Buy:
		return schema.OrderSideBuy
	case alpaca.Sell:
		return schema.OrderSideSell
	default:
		return schema.OrderSideUnknown
	}
}

func mapOrderStatus(status string) schema.OrderStatus {
	switch strings.ToLower(status) {
	case "new", "accepted", "pending_new", "replaced":
		return schema.OrderStatusSubmitted
	case "partially_filled":
		return schema.OrderStatusPartFilled
	case "filled":
		return schema.OrderStatusFilled
	case "canceled", "expired", "done_for_day":
		return schema.OrderStatusCancelled
	case "rejected":
		return schema.OrderStatusRejected
	default:
		return schema.OrderStatusUnknown
	}
}

// PlaceOrder submits an order to the brokerage.
func (p *Provider) PlaceOrder(_ context.Context, _ schema.AccountID, req schema.OrderRequest) (schema.PlaceResult, error) {
	placeReq := alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &req.Qty,
		Side:          toSide(req.Side),
		Type:          toType(req.Type),
		TimeInForce:   toTimeInForce(req.TimeInForce),
		ClientOrderID: req.ClientOrderID,
	}
	if req.Type == schema.OrderTypeLimit {
		placeReq.LimitPrice = &req.LimitPrice
	}

	order, err := p.client.PlaceOrder(placeReq)
	if err != nil {
		// The brokerage rejects malformed or unaffordable orders with an API
		// error rather than an async status; surface it as a refusal.
		var apiErr *alpaca.APIError
		if stderrors.As(err, &apiErr) {
			return schema.PlaceResult{Accepted: false, Reason: apiErr.Message}, nil
		}
		return schema.PlaceResult{}, errors.Wrap(exception.ErrVenueUnreachable, err.Error())
	}
	if order == nil || order.ID == "" {
		return schema.PlaceResult{}, exception.ErrOrderEmptyResponseID
	}
	return schema.PlaceResult{OrderID: order.ID, Accepted: true}, nil
}

// CancelOrder requests cancellation of a resting order.
func (p *Provider) CancelOrder(_ context.Context, _ schema.AccountID, orderID string) error {
	if err := p.client.CancelOrder(orderID); err != nil {
		return errors.Wrap(err, "cancel "+orderID)
	}
	return nil
}

// ReplaceOrder amends a resting order.
func (p *Provider) ReplaceOrder(_ context.Context, _ schema.AccountID, orderID string, price, qty decimal.Decimal) error {
	replaceReq := alpaca.ReplaceOrderRequest{LimitPrice: &price}
	if qty.IsPositive() {
		replaceReq.Qty = &qty
	}
	if _, err := p.client.ReplaceOrder(orderID, replaceReq); err != nil {
		return errors.Wrap(err, "replace "+orderID)
	}
	return nil
}

// Positions queries current holdings.
func (p *Provider) Positions(_ context.Context, _ schema.AccountID) ([]schema.Position, error) {
	positions, err := p.client.GetPositions()
	if err != nil {
		return nil, errors.Wrap(exception.ErrVenueUnreachable, err.Error())
	}
	out := make([]schema.Position, 0, len(positions))
	for _, pos := range positions {
		out = append(out, schema.Position{
			Symbol:   pos.Symbol,
			Qty:      pos.Qty,
			AvgPrice: pos.AvgEntryPrice,
		})
	}
	return out, nil
}

// OpenOrders queries resting orders.
func (p *Provider) OpenOrders(_ context.Context, _ schema.AccountID) ([]schema.OpenOrder, error) {
	orders, err := p.client.GetOrders(alpaca.GetOrdersRequest{Status: "open"})
	if err != nil {
		return nil, errors.Wrap(exception.ErrVenueUnreachable, err.Error())
	}
	out := make([]schema.OpenOrder, 0, len(orders))
	for _, o := range orders {
		open := schema.OpenOrder{
			OrderID: o.ID,
			Symbol:  o.Symbol,
			Side:    mapSide(o.Side),
			Status:  mapOrderStatus(string(o.Status)),
		}
		if o.Qty != nil {
			open.Qty = *o.Qty
			open.LeavesQty = o.Qty.Sub(o.FilledQty)
		}
		if o.LimitPrice != nil {
			open.LimitPrice = *o.LimitPrice
		}
		out = append(out, open)
	}
	return out, nil
}

func toSide(side schema.OrderSide) alpaca.Side {
	if side == schema.OrderSideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func toType(t schema.OrderType) alpaca.OrderType {
	if t == schema.OrderTypeMarket {
		return alpaca.Market
	}
	return alpaca.Limit
}

func toTimeInForce(tif schema.TimeInForce) alpaca.TimeInForce {
	switch tif {
	case schema.TimeInForceGTC:
		return alpaca.GTC
	case schema.TimeInForceIOC:
		return alpaca.IOC
	case schema.TimeInForceFOK:
		return alpaca.FOK
	default:
		return alpaca.Day
	}
}
