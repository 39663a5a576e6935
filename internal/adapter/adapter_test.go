package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/provider"
	"main/internal/schema"
	"main/pkg/exception"
)

type fakeProvider struct {
	handler   provider.EventHandler
	placed    []schema.OrderRequest
	cancelled []string
	placeRes  schema.PlaceResult
}

func (f *fakeProvider) Name() string                                            { return "fake" }
func (f *fakeProvider) Connect(context.Context, schema.AccountID) error         { return nil }
func (f *fakeProvider) Disconnect(context.Context, schema.AccountID) error      { return nil }
func (f *fakeProvider) SetHandler(h provider.EventHandler)                      { f.handler = h }
func (f *fakeProvider) Positions(context.Context, schema.AccountID) ([]schema.Position, error) {
	return []schema.Position{{Symbol: "CIM-B", Qty: decimal.NewFromInt(100)}}, nil
}
func (f *fakeProvider) OpenOrders(context.Context, schema.AccountID) ([]schema.OpenOrder, error) {
	return nil, nil
}
func (f *fakeProvider) PlaceOrder(_ context.Context, _ schema.AccountID, req schema.OrderRequest) (schema.PlaceResult, error) {
	f.placed = append(f.placed, req)
	return f.placeRes, nil
}
func (f *fakeProvider) CancelOrder(_ context.Context, _ schema.AccountID, orderID string) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}
func (f *fakeProvider) ReplaceOrder(context.Context, schema.AccountID, string, decimal.Decimal, decimal.Decimal) error {
	return nil
}

func limitReq(symbol string) schema.OrderRequest {
	return schema.OrderRequest{
		Symbol:     symbol,
		Side:       schema.OrderSideBuy,
		Qty:        decimal.NewFromInt(10),
		Type:       schema.OrderTypeLimit,
		LimitPrice: decimal.NewFromFloat(10.5),
	}
}

func TestAccountGuard(t *testing.T) {
	fp := &fakeProvider{}
	a := New("ACC-1", schema.ModeTerminal, fp)

	_, err := a.PlaceOrder(context.Background(), "ACC-2", limitReq("AAPL"))
	require.ErrorIs(t, err, exception.ErrAccountGuardMismatch)
	assert.Empty(t, fp.placed, "guarded call must never reach the provider")

	err = a.CancelOrder(context.Background(), "ACC-2", "o-1")
	require.ErrorIs(t, err, exception.ErrAccountGuardMismatch)
	assert.Empty(t, fp.cancelled)

	_, err = a.Positions(context.Background(), "ACC-2")
	require.ErrorIs(t, err, exception.ErrAccountGuardMismatch)
}

func TestPlaceOrderTranslatesSymbol(t *testing.T) {
	fp := &fakeProvider{placeRes: schema.PlaceResult{OrderID: "o-1", Accepted: true}}
	a := New("ACC-1", schema.ModeTerminal, fp)

	res, err := a.PlaceOrder(context.Background(), "ACC-1", limitReq("CIM PRB"))
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.Len(t, fp.placed, 1)
	assert.Equal(t, "CIM-B", fp.placed[0].Symbol, "provider must see the venue form")
}

func TestPositionsTranslateToDisplay(t *testing.T) {
	fp := &fakeProvider{}
	a := New("ACC-1", schema.ModeTerminal, fp)

	positions, err := a.Positions(context.Background(), "ACC-1")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "CIM PRB", positions[0].Symbol)
}

func TestValidationRejectsBeforeNetwork(t *testing.T) {
	fp := &fakeProvider{}
	a := New("ACC-1", schema.ModeTerminal, fp)

	testCases := []struct {
		desc string
		req  schema.OrderRequest
	}{
		{"empty symbol", schema.OrderRequest{Side: schema.OrderSideBuy, Qty: decimal.NewFromInt(1), Type: schema.OrderTypeMarket}},
		{"zero qty", schema.OrderRequest{Symbol: "AAPL", Side: schema.OrderSideBuy, Type: schema.OrderTypeMarket}},
		{"limit without price", schema.OrderRequest{Symbol: "AAPL", Side: schema.OrderSideSell, Qty: decimal.NewFromInt(1), Type: schema.OrderTypeLimit}},
		{"unknown side", schema.OrderRequest{Symbol: "AAPL", Qty: decimal.NewFromInt(1), Type: schema.OrderTypeMarket}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			_, err := a.PlaceOrder(context.Background(), "ACC-1", tc.req)
			require.Error(t, err)
			assert.Empty(t, fp.placed)
		})
	}
}

func TestInboundMessagesNormalized(t *testing.T) {
	fp := &fakeProvider{}
	a := New("ACC-1", schema.ModeTerminal, fp)

	var got []schema.Message
	a.Subscribe(func(msg schema.Message) { got = append(got, msg) })

	// Fill with a venue-native symbol arrives in display form.
	fp.handler(schema.NewFillMessage("", schema.Fill{
		Symbol:    "CIM-B",
		Side:      schema.OrderSideBuy,
		Qty:       decimal.NewFromInt(5),
		Price:     decimal.NewFromFloat(25.4),
		Timestamp: time.Now(),
		OrderID:   "o-1",
		ExecID:    "e-1",
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "CIM PRB", got[0].Fill.Symbol)
	assert.Equal(t, schema.AccountID("ACC-1"), got[0].Account)

	// A message scoped to another account is dropped.
	fp.handler(schema.NewFillMessage("ACC-9", schema.Fill{
		Symbol: "AAPL", Side: schema.OrderSideBuy,
		Qty: decimal.NewFromInt(1), Price: decimal.NewFromInt(1), OrderID: "o-2",
	}))
	assert.Len(t, got, 1)

	// A malformed fill (no order id) is dropped at the boundary.
	fp.handler(schema.NewFillMessage("ACC-1", schema.Fill{
		Symbol: "AAPL", Side: schema.OrderSideBuy,
		Qty: decimal.NewFromInt(1), Price: decimal.NewFromInt(1),
	}))
	assert.Len(t, got, 1)
}
