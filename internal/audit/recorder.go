// Package audit persists the normalized event stream and risk decisions.
// The recorder subscribes to the bus; a failed insert is logged and dropped
// so the trading path never waits on the database.
package audit

import (
	"time"

	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"main/internal/schema"
)

// OrderEvent is one persisted order-status update.
type OrderEvent struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Account    string `gorm:"index"`
	OrderID    string `gorm:"index"`
	Symbol     string
	Status     string
	Reason     string
	FilledQty  string
	LeavesQty  string
	OccurredAt time.Time
	RecordedAt time.Time
}

func (OrderEvent) TableName() string { return "order_events" }

// FillEvent is one persisted execution report.
type FillEvent struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Account    string `gorm:"index"`
	OrderID    string `gorm:"index"`
	ExecID     string `gorm:"uniqueIndex"`
	Symbol     string
	Side       string
	Qty        string
	Price      string
	ExecutedAt time.Time
	RecordedAt time.Time
}

func (FillEvent) TableName() string { return "fill_events" }

// PolicyDecision is one persisted risk-table result.
type PolicyDecision struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Cycle        uint64 `gorm:"index"`
	Regime       string
	Mode         string
	Reason       string
	GrossPct     float64
	PotentialPct float64
	DecidedAt    time.Time
}

func (PolicyDecision) TableName() string { return "policy_decisions" }

// Recorder writes audit rows.
type Recorder struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecorder wraps an open database handle.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Migrate creates or updates the audit tables.
func (r *Recorder) Migrate() error {
	return r.db.AutoMigrate(&OrderEvent{}, &FillEvent{}, &PolicyDecision{})
}

// OnMessage persists one bus message. Connectivity updates are not stored.
func (r *Recorder) OnMessage(msg schema.Message) {
	switch msg.Kind {
	case schema.MessageKindOrderStatus:
		row := orderEventFrom(msg.Account, *msg.Status)
		row.RecordedAt = r.now()
		if err := r.db.Create(&row).Error; err != nil {
			logs.Errorf("audit insert order event %s failed, err: %+v", row.OrderID, err)
		}
	case schema.MessageKindFill:
		row := fillEventFrom(msg.Account, *msg.Fill)
		row.RecordedAt = r.now()
		if err := r.db.Create(&row).Error; err != nil {
			logs.Errorf("audit insert fill %s failed, err: %+v", row.ExecID, err)
		}
	}
}

// RecordDecision persists one risk-table result tagged with its evaluation
// cycle so decisions correlate with the loop's log lines.
func (r *Recorder) RecordDecision(cycle uint64, regime string, mode schema.PolicyMode, reason string, snapshot schema.ExposureSnapshot) {
	row := PolicyDecision{
		Cycle:        cycle,
		Regime:       regime,
		Mode:         mode.String(),
		Reason:       reason,
		GrossPct:     snapshot.GrossPct,
		PotentialPct: snapshot.PotentialPct,
		DecidedAt:    r.now(),
	}
	if err := r.db.Create(&row).Error; err != nil {
		logs.Errorf("audit insert policy decision failed, err: %+v", err)
	}
}

func orderEventFrom(account schema.AccountID, update schema.OrderStatusUpdate) OrderEvent {
	return OrderEvent{
		Account:    string(account),
		OrderID:    update.OrderID,
		Symbol:     update.Symbol,
		Status:     update.Status.String(),
		Reason:     update.Reason,
		FilledQty:  update.FilledQty.String(),
		LeavesQty:  update.LeavesQty.String(),
		OccurredAt: update.Timestamp,
	}
}

func fillEventFrom(account schema.AccountID, fill schema.Fill) FillEvent {
	return FillEvent{
		Account:    string(account),
		OrderID:    fill.OrderID,
		ExecID:     fill.ExecID,
		Symbol:     fill.Symbol,
		Side:       fill.Side.String(),
		Qty:        fill.Qty.String(),
		Price:      fill.Price.String(),
		ExecutedAt: fill.Timestamp,
	}
}
