// Package terminal implements the execution provider for the proprietary
// trading terminal. Order actions go over its signed REST API; order-status
// and deal events arrive on a private websocket stream.
package terminal

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/ws"

	"main/internal/provider"
	"main/internal/schema"
	"main/pkg/exception"
	"main/pkg/retry"
)

const (
	_pathPlaceOrder   = "/term_api/order/place"
	_pathCancelOrder  = "/term_api/order/cancel"
	_pathReplaceOrder = "/term_api/order/replace"
	_pathOpenOrders   = "/term_api/order/open_list"
	_pathPositions    = "/term_api/position/list"

	_defaultConnectTimeout = 10 * time.Second
	_requestTimeout        = 15 * time.Second

	_wsMethodSubscribeID = 301
)

// Config holds terminal endpoints and credentials.
type Config struct {
	BaseURL        string
	StreamURL      string
	AccessID       string
	SecretKey      string
	ConnectTimeout time.Duration
	Retry          retry.Policy
}

var _ provider.ExecutionProvider = (*Provider)(nil)

// Provider talks to one terminal account session.
type Provider struct {
	cfg    Config
	client *http.Client

	mu        sync.RWMutex
	handler   provider.EventHandler
	wss       *ws.WebSocket
	connected bool
	unsub     func()
}

// New creates a terminal provider.
func New(cfg Config, client *http.Client) *Provider {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = _defaultConnectTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}
	return &Provider{cfg: cfg, client: client}
}

// Name returns "terminal".
func (p *Provider) Name() string {
	return "terminal"
}

// SetHandler registers the callback sink.
func (p *Provider) SetHandler(h provider.EventHandler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// Connect opens the private stream and subscribes to order and deal updates
// for the account. The wait is bounded by ConnectTimeout per attempt and the
// shared retry policy across attempts.
func (p *Provider) Connect(ctx context.Context, account schema.AccountID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return nil
	}

	err := p.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
		defer cancel()

		wss := ws.New(ctx, p.cfg.StreamURL)
		if err := wss.Start(ctx); err != nil {
			return errors.Wrap(err, "start private stream")
		}
		if err := p.subscribe(ctx, wss, account); err != nil {
			wss.Close()
			return err
		}
		p.wss = wss
		return nil
	})
	if err != nil {
		return errors.Wrap(exception.ErrVenueUnreachable, err.Error())
	}

	p.connected = true
	p.unsub = p.observe(account)
	p.emit(schema.NewConnectivityMessage(account, schema.ConnectivityUpdate{Connected: true, Detail: "terminal stream up"}))
	return nil
}

// Disconnect closes the private stream.
func (p *Provider) Disconnect(_ context.Context, account schema.AccountID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	if p.unsub != nil {
		p.unsub()
	}
	if p.wss != nil {
		p.wss.Close()
	}
	p.connected = false
	p.emit(schema.NewConnectivityMessage(account, schema.ConnectivityUpdate{Connected: false, Detail: "terminal stream closed"}))
	return nil
}

func (p *Provider) subscribe(ctx context.Context, wss *ws.WebSocket, account schema.AccountID) error {
	if err := wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, client *ws.WebSocket) error {
			if err := client.WriteJSON(map[string]any{
				"id":     _wsMethodSubscribeID,
				"method": "account.subscribe",
				"params": []any{string(account), "order.update", "deal.update"},
			}); err != nil {
				return errors.Wrap(err, "write subscribe payload")
			}
			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[StreamSubscribeResponse](m)
			if !ok || resp.ID != _wsMethodSubscribeID {
				return false, nil
			}
			if resp.Error != nil || resp.Result.Status != "success" {
				return false, errors.New("subscribe refused: " + resp.Result.Status)
			}
			return true, nil
		},
	}); err != nil {
		return errors.Wrap(err, "send and wait")
	}
	return nil
}

type streamMessage[T any] struct {
	Method string `json:"method"`
	Params T      `json:"params"`
}

func (p *Provider) observe(account schema.AccountID) (unsubscribe func()) {
	ch, cancel := p.wss.Subscribe()
	go func() {
		defer cancel()
		for m := range ch {
			envelope, ok := ws.ReadMessage[StreamEnvelope](m)
			if !ok {
				continue
			}
			switch envelope.Method {
			case "order.update":
				update, ok := ws.ReadMessage[streamMessage[StreamOrderUpdate]](m)
				if !ok {
					logs.Errorf("terminal: unmarshal order.update failed")
					continue
				}
				p.emit(normalizeOrderUpdate(account, update.Params))
			case "deal.update":
				deal, ok := ws.ReadMessage[streamMessage[StreamDealUpdate]](m)
				if !ok {
					logs.Errorf("terminal: unmarshal deal.update failed")
					continue
				}
				p.emit(normalizeDealUpdate(account, deal.Params))
			}
		}
	}()
	return cancel
}

func (p *Provider) emit(msg schema.Message) {
	p.mu.RLock()
	h := p.handler
	p.mu.RUnlock()
	if h != nil {
		h(msg)
	}
}

func normalizeOrderUpdate(account schema.AccountID, u StreamOrderUpdate) schema.Message {
	return schema.NewStatusMessage(account, schema.OrderStatusUpdate{
		OrderID:   u.OrderID,
		Symbol:    u.Market,
		Status:    mapStatus(u.Status),
		Reason:    u.Reason,
		FilledQty: toDecimal(u.Filled.String()),
		LeavesQty: toDecimal(u.Left.String()),
		Timestamp: time.UnixMilli(u.Time),
	})
}

func normalizeDealUpdate(account schema.AccountID, d StreamDealUpdate) schema.Message {
	return schema.NewFillMessage(account, schema.Fill{
		Symbol:    d.Market,
		Side:      mapSide(d.Side),
		Qty:       toDecimal(d.Amount.String()),
		Price:     toDecimal(d.Price.String()),
		Timestamp: time.UnixMilli(d.Time),
		OrderID:   d.OrderID,
		ExecID:    d.DealID,
	})
}

func mapStatus(status int) schema.OrderStatus {
	switch status {
	case statusAccepted:
		return schema.OrderStatusSubmitted
	case statusPartFilled:
		return schema.OrderStatusPartFilled
	case statusFilled:
		return schema.OrderStatusFilled
	case statusCancelled:
		return schema.OrderStatusCancelled
	case statusRejected:
		return schema.OrderStatusRejected
	default:
		return schema.OrderStatusUnknown
	}
}

func mapSide(side int) schema.OrderSide {
	switch side {
	case 1:
		return schema.OrderSideBuy
	case 2:
		return schema.OrderSideSell
	default:
		return schema.OrderSideUnknown
	}
}

func terminalSide(side schema.OrderSide) string {
	switch side {
	case schema.OrderSideSell:
		return "2"
	default:
		return "1"
	}
}

func terminalTimeInForce(tif schema.TimeInForce) string {
	switch tif {
	case schema.TimeInForceIOC:
		return "8"
	case schema.TimeInForceFOK:
		return "16"
	case schema.TimeInForceDay:
		return "1"
	default:
		return "0"
	}
}

func toDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// PlaceOrder submits an order over the signed REST API. A venue refusal is
// reported in the result with the venue's reason verbatim.
func (p *Provider) PlaceOrder(ctx context.Context, account schema.AccountID, req schema.OrderRequest) (schema.PlaceResult, error) {
	if req.Type != schema.OrderTypeLimit && req.Type != schema.OrderTypeMarket {
		return schema.PlaceResult{}, exception.ErrOrderUnsupportedType
	}

	body := map[string]string{
		"access_id": p.cfg.AccessID,
		"account":   string(account),
		"tm":        fmt.Sprintf("%d", time.Now().Unix()),
		"market":    req.Symbol,
		"side":      terminalSide(req.Side),
		"type":      fmt.Sprintf("%d", req.Type),
		"amount":    req.Qty.String(),
		"option":    terminalTimeInForce(req.TimeInForce),
		"client_id": req.ClientOrderID,
	}
	if req.Type == schema.OrderTypeLimit {
		body["price"] = req.LimitPrice.String()
	}

	var data Response[ResponsePlaceOrder]
	if err := p.post(ctx, _pathPlaceOrder, body, &data); err != nil {
		return schema.PlaceResult{}, err
	}
	if data.Error.Code != 0 {
		return schema.PlaceResult{Accepted: false, Reason: data.Error.Message}, nil
	}
	if data.Data.OrderID == "" {
		return schema.PlaceResult{}, exception.ErrOrderEmptyResponseID
	}
	return schema.PlaceResult{OrderID: data.Data.OrderID, Accepted: true}, nil
}

// CancelOrder requests cancellation of a resting order.
func (p *Provider) CancelOrder(ctx context.Context, account schema.AccountID, orderID string) error {
	body := map[string]string{
		"access_id": p.cfg.AccessID,
		"account":   string(account),
		"tm":        fmt.Sprintf("%d", time.Now().Unix()),
		"order_id":  orderID,
	}

	var data Response[ResponseCancelOrder]
	if err := p.post(ctx, _pathCancelOrder, body, &data); err != nil {
		return err
	}
	if data.Error.Code != 0 {
		return errors.Wrap(exception.ErrOrderVenueRejected, data.Error.Message)
	}
	return nil
}

// ReplaceOrder amends price and optionally quantity of a resting order.
func (p *Provider) ReplaceOrder(ctx context.Context, account schema.AccountID, orderID string, price, qty decimal.Decimal) error {
	body := map[string]string{
		"access_id": p.cfg.AccessID,
		"account":   string(account),
		"tm":        fmt.Sprintf("%d", time.Now().Unix()),
		"order_id":  orderID,
		"price":     price.String(),
	}
	if qty.IsPositive() {
		body["amount"] = qty.String()
	}

	var data Response[ResponsePlaceOrder]
	if err := p.post(ctx, _pathReplaceOrder, body, &data); err != nil {
		return err
	}
	if data.Error.Code != 0 {
		return errors.Wrap(exception.ErrOrderVenueRejected, data.Error.Message)
	}
	return nil
}

// Positions queries current holdings for the account.
func (p *Provider) Positions(ctx context.Context, account schema.AccountID) ([]schema.Position, error) {
	body := map[string]string{
		"access_id": p.cfg.AccessID,
		"account":   string(account),
		"tm":        fmt.Sprintf("%d", time.Now().Unix()),
	}

	var data Response[[]ResponsePosition]
	if err := p.post(ctx, _pathPositions, body, &data); err != nil {
		return nil, err
	}
	if data.Error.Code != 0 {
		return nil, errors.New("positions query refused: " + data.Error.Message)
	}

	out := make([]schema.Position, 0, len(data.Data))
	for _, pos := range data.Data {
		qty := toDecimal(pos.Amount.String())
		if pos.Side == 2 {
			qty = qty.Neg()
		}
		out = append(out, schema.Position{
			Symbol:   pos.Market,
			Qty:      qty,
			AvgPrice: toDecimal(pos.AvgPrice.String()),
		})
	}
	return out, nil
}

// OpenOrders queries resting orders for the account.
func (p *Provider) OpenOrders(ctx context.Context, account schema.AccountID) ([]schema.OpenOrder, error) {
	body := map[string]string{
		"access_id": p.cfg.AccessID,
		"account":   string(account),
		"tm":        fmt.Sprintf("%d", time.Now().Unix()),
	}

	var data Response[[]ResponseOpenOrder]
	if err := p.post(ctx, _pathOpenOrders, body, &data); err != nil {
		return nil, err
	}
	if data.Error.Code != 0 {
		return nil, errors.New("open orders query refused: " + data.Error.Message)
	}

	out := make([]schema.OpenOrder, 0, len(data.Data))
	for _, o := range data.Data {
		out = append(out, schema.OpenOrder{
			OrderID:    o.OrderID,
			Symbol:     o.Market,
			Side:       mapSide(o.Side),
			Qty:        toDecimal(o.Amount.String()),
			LeavesQty:  toDecimal(o.Left.String()),
			LimitPrice: toDecimal(o.Price.String()),
			Status:     mapStatus(o.Status),
		})
	}
	return out, nil
}

func (p *Provider) post(ctx context.Context, path string, body map[string]string, out any) error {
	payload, err := sonic.ConfigFastest.Marshal(body)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, _requestTimeout)
	defer cancel()
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	r.Header.Set("authorization", signParams(body, p.cfg.SecretKey))

	resp, err := p.client.Do(r)
	if err != nil {
		return errors.Wrap(exception.ErrVenueUnreachable, err.Error())
	}
	defer resp.Body.Close()

	if err := sonic.ConfigFastest.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(exception.ErrOrderDecodeResponseBody, err.Error())
	}
	return nil
}

func signParams(body map[string]string, secret string) string {
	pairs := make([]string, 0, len(body)+1)
	for k, v := range body {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, v))
	}
	pairs = append(pairs, fmt.Sprintf("secret_key=%s", secret))
	sort.Strings(pairs)
	hash := md5.Sum([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(hash[:])
}
