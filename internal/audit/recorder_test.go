package audit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"main/internal/schema"
)

func TestOrderEventFrom(t *testing.T) {
	at := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	row := orderEventFrom("TERM-001", schema.OrderStatusUpdate{
		OrderID:   "ORD-1",
		Symbol:    "CIM PRB",
		Status:    schema.OrderStatusRejected,
		Reason:    "ERR_BALANCE_NOT_ENOUGH",
		FilledQty: decimal.NewFromInt(0),
		LeavesQty: decimal.NewFromInt(100),
		Timestamp: at,
	})

	assert.Equal(t, "TERM-001", row.Account)
	assert.Equal(t, "rejected", row.Status)
	assert.Equal(t, "ERR_BALANCE_NOT_ENOUGH", row.Reason)
	assert.Equal(t, "100", row.LeavesQty)
	assert.Equal(t, at, row.OccurredAt)
}

func TestFillEventFrom(t *testing.T) {
	at := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	row := fillEventFrom("PAPER-001", schema.Fill{
		Symbol:    "AAPL",
		Side:      schema.OrderSideSell,
		Qty:       decimal.RequireFromString("12.5"),
		Price:     decimal.RequireFromString("201.35"),
		Timestamp: at,
		OrderID:   "ORD-7",
		ExecID:    "E-42",
	})

	assert.Equal(t, "PAPER-001", row.Account)
	assert.Equal(t, "sell", row.Side)
	assert.Equal(t, "12.5", row.Qty)
	assert.Equal(t, "201.35", row.Price)
	assert.Equal(t, "E-42", row.ExecID)
}
