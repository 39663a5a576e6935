package account

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/adapter"
	"main/internal/provider"
	"main/internal/schema"
	"main/pkg/exception"
)

type nopProvider struct{}

func (nopProvider) Name() string                                       { return "nop" }
func (nopProvider) Connect(context.Context, schema.AccountID) error    { return nil }
func (nopProvider) Disconnect(context.Context, schema.AccountID) error { return nil }
func (nopProvider) SetHandler(provider.EventHandler)                   {}
func (nopProvider) Positions(context.Context, schema.AccountID) ([]schema.Position, error) {
	return nil, nil
}
func (nopProvider) OpenOrders(context.Context, schema.AccountID) ([]schema.OpenOrder, error) {
	return nil, nil
}
func (nopProvider) PlaceOrder(context.Context, schema.AccountID, schema.OrderRequest) (schema.PlaceResult, error) {
	return schema.PlaceResult{}, nil
}
func (nopProvider) CancelOrder(context.Context, schema.AccountID, string) error { return nil }
func (nopProvider) ReplaceOrder(context.Context, schema.AccountID, string, decimal.Decimal, decimal.Decimal) error {
	return nil
}

func newTestContext() *Context {
	c := NewContext()
	c.Register(schema.ModeTerminal, adapter.New("ACC-T", schema.ModeTerminal, nopProvider{}))
	c.Register(schema.ModePaper, adapter.New("ACC-P", schema.ModePaper, nopProvider{}))
	return c
}

func TestSetModeNotifiesListener(t *testing.T) {
	c := newTestContext()
	require.NoError(t, c.SetMode(schema.ModeTerminal))

	var gotOld, gotNew schema.AccountID
	c.OnSwitch(func(oldAccount, newAccount schema.AccountID) {
		gotOld, gotNew = oldAccount, newAccount
	})

	require.NoError(t, c.SetMode(schema.ModePaper))
	assert.Equal(t, schema.AccountID("ACC-T"), gotOld)
	assert.Equal(t, schema.AccountID("ACC-P"), gotNew)
	assert.Equal(t, schema.ModePaper, c.ActiveMode())
}

func TestSetModeUnknownLeavesOldActive(t *testing.T) {
	c := newTestContext()
	require.NoError(t, c.SetMode(schema.ModeTerminal))

	err := c.SetMode(schema.ModeLive)
	require.ErrorIs(t, err, exception.ErrAccountUnknownMode)
	assert.Equal(t, schema.ModeTerminal, c.ActiveMode())
}

func TestSetModeSameModeIsNoOp(t *testing.T) {
	c := newTestContext()
	require.NoError(t, c.SetMode(schema.ModeTerminal))

	called := false
	c.OnSwitch(func(_, _ schema.AccountID) { called = true })
	require.NoError(t, c.SetMode(schema.ModeTerminal))
	assert.False(t, called)
}

func TestSetModeDisconnectedTargetStillSwitches(t *testing.T) {
	// A down connection flag warns but does not block the switch.
	c := newTestContext()
	require.NoError(t, c.SetMode(schema.ModeTerminal))
	c.SetConnected(schema.ModePaper, false)

	require.NoError(t, c.SetMode(schema.ModePaper))
	assert.Equal(t, schema.ModePaper, c.ActiveMode())
}

func TestAdapterFor(t *testing.T) {
	c := newTestContext()

	a, err := c.AdapterFor("ACC-P")
	require.NoError(t, err)
	assert.Equal(t, schema.ModePaper, a.Mode())

	_, err = c.AdapterFor("ACC-X")
	require.ErrorIs(t, err, exception.ErrAccountUnknownMode)
}
