// Package controller owns the authoritative map of in-flight orders. State
// partitions by account; each account's book has its own lock and the lock
// is never held across a network call.
package controller

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/cooldown"
	"main/internal/schema"
	"main/pkg/exception"
	"main/pkg/retry"
)

// FillListener receives normalized fills after the controller has applied
// them to its own book. The position manager registers here.
type FillListener func(account schema.AccountID, fill schema.Fill)

// SubmitOutcome tags the result of a submission attempt. Business refusals
// (duplicate decision, cooldown) are outcomes, not errors.
type SubmitOutcome uint16

const (
	SubmitAccepted SubmitOutcome = iota
	SubmitDuplicate
	SubmitCoolingDown
	SubmitRejected
	SubmitFailed
)

func (o SubmitOutcome) String() string {
	switch o {
	case SubmitAccepted:
		return "accepted"
	case SubmitDuplicate:
		return "duplicate"
	case SubmitCoolingDown:
		return "cooling_down"
	case SubmitRejected:
		return "rejected"
	case SubmitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SubmitResult reports what happened to one proposed order.
type SubmitResult struct {
	Outcome SubmitOutcome
	OrderID string
	Reason  string
}

// CancelReport distinguishes "nothing matched" from "matched but failed".
type CancelReport struct {
	Matched   int
	Cancelled int
	Failed    []string
}

// Filter narrows an order query. Zero fields match everything.
type Filter struct {
	Account  schema.AccountID
	Bucket   schema.Bucket
	Status   schema.OrderStatus
	LiveOnly bool
}

const (
	_pendingOrderLimit  = 128
	_pendingUpdateLimit = 16
)

type accountBook struct {
	mu     sync.RWMutex
	orders map[string]*TrackedOrder

	// pending buffers stream updates keyed by an order id the book does not
	// know yet. A venue can push an update for the venue order id before the
	// REST acknowledgement re-keys the entry from its client order id.
	pending map[string][]schema.Message
}

// stash buffers one update for a not-yet-tracked order id. Caller holds the
// write lock. Both limits bound memory against ids that never match.
func (b *accountBook) stash(msg schema.Message) bool {
	var orderID string
	switch msg.Kind {
	case schema.MessageKindOrderStatus:
		orderID = msg.Status.OrderID
	case schema.MessageKindFill:
		orderID = msg.Fill.OrderID
	default:
		return false
	}
	if _, ok := b.pending[orderID]; !ok && len(b.pending) >= _pendingOrderLimit {
		return false
	}
	if len(b.pending[orderID]) >= _pendingUpdateLimit {
		return false
	}
	b.pending[orderID] = append(b.pending[orderID], msg)
	return true
}

// take removes and returns the buffered updates for an order id. Caller
// holds the write lock.
func (b *accountBook) take(orderID string) []schema.Message {
	buffered := b.pending[orderID]
	if buffered != nil {
		delete(b.pending, orderID)
	}
	return buffered
}

// Controller tracks every in-flight order keyed by (account, order id) and
// gates new submissions through deduplication and the cooldown manager.
type Controller struct {
	accounts     *account.Context
	cool         *cooldown.Manager
	cancelPolicy retry.Policy

	// gateMu makes the dedup check and the cooldown check one decision.
	// Checked separately, two concurrent duplicates can both pass.
	gateMu sync.Mutex
	dedup  *dedupeSet

	mu    sync.RWMutex
	books map[schema.AccountID]*accountBook

	fillMu sync.RWMutex
	onFill FillListener
}

// New creates the controller and registers it as the account context's
// switch listener so live orders orphan when the execution target moves.
func New(accounts *account.Context, cool *cooldown.Manager, cancelPolicy retry.Policy) *Controller {
	c := &Controller{
		accounts:     accounts,
		cool:         cool,
		dedup:        newDedupeSet(time.Hour),
		cancelPolicy: cancelPolicy,
		books:        make(map[schema.AccountID]*accountBook),
	}
	accounts.OnSwitch(c.OnAccountSwitch)
	return c
}

// SubscribeFills registers the fill listener. Only one listener is
// supported; the position manager owns it.
func (c *Controller) SubscribeFills(l FillListener) {
	c.fillMu.Lock()
	c.onFill = l
	c.fillMu.Unlock()
}

func (c *Controller) book(accountID schema.AccountID) *accountBook {
	c.mu.RLock()
	b, ok := c.books[accountID]
	c.mu.RUnlock()
	if ok {
		return b
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok = c.books[accountID]; ok {
		return b
	}
	b = &accountBook{
		orders:  make(map[string]*TrackedOrder),
		pending: make(map[string][]schema.Message),
	}
	c.books[accountID] = b
	return b
}

// Submit routes one proposed order to the active execution target. The
// decision key is consumed before the network call so a concurrent duplicate
// collapses into a single submission. Submissions are never retried here.
func (c *Controller) Submit(ctx context.Context, p schema.ProposedOrder) (SubmitResult, error) {
	key := p.Key()
	c.gateMu.Lock()
	seen := c.dedup.contains(key)
	if !c.cool.Allow(p.Symbol) {
		c.gateMu.Unlock()
		if seen {
			return SubmitResult{Outcome: SubmitDuplicate, Reason: "decision key already submitted"}, nil
		}
		return SubmitResult{Outcome: SubmitCoolingDown, Reason: "symbol cooldown not elapsed"}, nil
	}
	c.dedup.mark(key)
	c.cool.Record(p.Symbol)
	c.gateMu.Unlock()

	ad, err := c.accounts.Active()
	if err != nil {
		return SubmitResult{Outcome: SubmitFailed, Reason: err.Error()}, err
	}
	accountID := ad.Account()
	now := time.Now()
	order := &TrackedOrder{
		ClientOrderID: uuid.NewString(),
		Symbol:        p.Symbol,
		Side:          p.Side,
		Type:          p.Type,
		Qty:           p.Qty,
		LimitPrice:    p.LimitPrice,
		Account:       accountID,
		Mode:          ad.Mode(),
		Bucket:        p.Bucket,
		Status:        schema.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	b := c.book(accountID)
	b.mu.Lock()
	b.orders[order.ClientOrderID] = order
	b.mu.Unlock()

	res, err := ad.PlaceOrder(ctx, accountID, schema.OrderRequest{
		Symbol:        p.Symbol,
		Side:          p.Side,
		Qty:           p.Qty,
		Type:          p.Type,
		LimitPrice:    p.LimitPrice,
		TimeInForce:   schema.TimeInForceDay,
		ClientOrderID: order.ClientOrderID,
	})

	b.mu.Lock()
	switch {
	case err != nil:
		order.Status = schema.OrderStatusRejected
		order.Reason = err.Error()
		order.UpdatedAt = time.Now()
		b.mu.Unlock()
		return SubmitResult{Outcome: SubmitFailed, Reason: err.Error()}, err
	case !res.Accepted:
		order.Status = schema.OrderStatusRejected
		order.Reason = res.Reason
		order.UpdatedAt = time.Now()
		b.mu.Unlock()
		logs.Warnf("order %s %s rejected by venue: %s", p.Side, p.Symbol, res.Reason)
		return SubmitResult{Outcome: SubmitRejected, Reason: res.Reason}, nil
	default:
		delete(b.orders, order.ClientOrderID)
		order.OrderID = res.OrderID
		order.Status = schema.OrderStatusSubmitted
		order.UpdatedAt = time.Now()
		b.orders[order.OrderID] = order
		replay := b.take(res.OrderID)
		b.mu.Unlock()

		// A stream update for the venue order id can win the race against
		// the REST acknowledgement. Anything buffered while the order was
		// still keyed by its client order id applies now, in arrival order.
		for _, msg := range replay {
			c.OnMessage(msg)
		}
		return SubmitResult{Outcome: SubmitAccepted, OrderID: res.OrderID}, nil
	}
}

// Track inserts an externally created order, typically recovered from a
// venue's open-order query at startup. An identical re-track is a no-op; the
// same (account, order id) with a differing payload fails.
func (c *Controller) Track(order TrackedOrder) error {
	key := order.OrderID
	if key == "" {
		key = order.ClientOrderID
	}
	if key == "" {
		return errors.Wrap(exception.ErrOrderInvalidRequest, "track without order id")
	}
	if order.Status == schema.OrderStatusUnknown {
		order.Status = schema.OrderStatusSubmitted
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	b := c.book(order.Account)
	b.mu.Lock()
	if existing, ok := b.orders[key]; ok {
		same := existing.samePayload(order)
		b.mu.Unlock()
		if same {
			return nil
		}
		return errors.Wrap(exception.ErrOrderDuplicate, key)
	}
	stored := order
	b.orders[key] = &stored
	replay := b.take(key)
	b.mu.Unlock()

	for _, msg := range replay {
		c.OnMessage(msg)
	}
	return nil
}

// CancelOpenOrders cancels every live order under the account, narrowed to
// one bucket when given. Orders under other accounts or buckets are left
// untouched. Each cancel is retried on the bounded policy before it counts
// as failed; a stale resting order is worse than a duplicate cancel.
func (c *Controller) CancelOpenOrders(ctx context.Context, accountID schema.AccountID, buckets ...schema.Bucket) (CancelReport, error) {
	var bucket schema.Bucket
	if len(buckets) != 0 {
		bucket = buckets[0]
	}

	type target struct {
		orderID string
		mode    schema.Mode
	}
	b := c.book(accountID)
	b.mu.RLock()
	targets := make([]target, 0, len(b.orders))
	for id, o := range b.orders {
		if !o.Status.IsLive() {
			continue
		}
		if bucket != "" && o.Bucket != bucket {
			continue
		}
		targets = append(targets, target{orderID: id, mode: o.Mode})
	}
	b.mu.RUnlock()

	report := CancelReport{Matched: len(targets)}
	if len(targets) == 0 {
		return report, nil
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].orderID < targets[j].orderID })

	for _, t := range targets {
		if err := c.cancelOnVenue(ctx, accountID, t.orderID, t.mode); err != nil {
			logs.Errorf("cancel order %s under %s failed, err: %+v", t.orderID, accountID, err)
			report.Failed = append(report.Failed, t.orderID)
			continue
		}
		report.Cancelled++
		c.markCancelled(accountID, t.orderID)
	}

	if len(report.Failed) != 0 {
		return report, errors.Wrap(exception.ErrOrderNotCancellable, report.Failed[0]).
			With("failed", len(report.Failed))
	}
	return report, nil
}

// cancelOnVenue issues one cancel through the order's original venue. No
// book lock is held while waiting on the network.
func (c *Controller) cancelOnVenue(ctx context.Context, accountID schema.AccountID, orderID string, mode schema.Mode) error {
	ad, err := c.accounts.Adapter(mode)
	if err != nil {
		return err
	}
	return c.cancelPolicy.Do(ctx, func(ctx context.Context) error {
		return ad.CancelOrder(ctx, accountID, orderID)
	})
}

func (c *Controller) markCancelled(accountID schema.AccountID, orderID string) {
	b := c.book(accountID)
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return
	}
	if o.Status.CanTransition(schema.OrderStatusCancelled) {
		o.Status = schema.OrderStatusCancelled
		o.UpdatedAt = time.Now()
	}
}

// OnAccountSwitch orphans every non-terminal order under the old account.
// The orders stay individually cancellable through their original venue;
// nothing is migrated or silently dropped. Other accounts are untouched.
func (c *Controller) OnAccountSwitch(oldAccount, newAccount schema.AccountID) {
	b := c.book(oldAccount)
	b.mu.Lock()
	orphaned := 0
	for _, o := range b.orders {
		if !o.Status.IsLive() || o.Status == schema.OrderStatusOrphaned {
			continue
		}
		o.Status = schema.OrderStatusOrphaned
		o.OrphanedProvider = true
		o.UpdatedAt = time.Now()
		orphaned++
	}
	b.mu.Unlock()

	if orphaned > 0 {
		logs.Infof("orphaned %d live orders under %s after switch to %s", orphaned, oldAccount, newAccount)
	}
}

// CancelOrphan cancels one orphaned order through its original venue.
func (c *Controller) CancelOrphan(ctx context.Context, accountID schema.AccountID, orderID string) error {
	b := c.book(accountID)
	b.mu.RLock()
	o, ok := b.orders[orderID]
	if !ok {
		b.mu.RUnlock()
		return errors.Wrap(exception.ErrOrderUnknown, orderID)
	}
	if o.Status != schema.OrderStatusOrphaned {
		b.mu.RUnlock()
		return errors.Wrap(exception.ErrOrderNotOrphaned, orderID).With("status", o.Status.String())
	}
	mode := o.Mode
	b.mu.RUnlock()

	if err := c.cancelOnVenue(ctx, accountID, orderID, mode); err != nil {
		return err
	}
	c.markCancelled(accountID, orderID)
	return nil
}

// OnMessage consumes one normalized provider message. The adapters'
// Subscribe sinks point here.
func (c *Controller) OnMessage(msg schema.Message) {
	switch msg.Kind {
	case schema.MessageKindOrderStatus:
		c.applyStatus(msg.Account, *msg.Status)
	case schema.MessageKindFill:
		c.applyFill(msg.Account, *msg.Fill)
	case schema.MessageKindConnectivity:
		c.applyConnectivity(msg.Account, *msg.Connectivity)
	default:
		logs.Errorf("controller dropped message of unknown kind %d", msg.Kind)
	}
}

// applyStatus advances one order's state machine. Updates for the same
// order apply in delivery order; an illegal transition is dropped with a
// warning rather than corrupting the book.
func (c *Controller) applyStatus(accountID schema.AccountID, update schema.OrderStatusUpdate) {
	b := c.book(accountID)
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[update.OrderID]
	if !ok {
		if b.stash(schema.NewStatusMessage(accountID, update)) {
			logs.Warnf("buffered status update for not-yet-tracked order %s under %s", update.OrderID, accountID)
		} else {
			logs.Warnf("status update for untracked order %s under %s", update.OrderID, accountID)
		}
		return
	}

	if o.Status != update.Status && !o.Status.CanTransition(update.Status) {
		logs.Warnf("order %s dropped illegal transition %s -> %s", update.OrderID, o.Status, update.Status)
		return
	}
	o.Status = update.Status
	if update.Reason != "" {
		o.Reason = update.Reason
	}
	if update.FilledQty.IsPositive() {
		o.FilledQty = update.FilledQty
	}
	o.UpdatedAt = time.Now()
}

// applyFill books the fill against its order and forwards it to the fill
// listener. A fill for an order id the book does not know yet is held back
// so the listener only ever sees fills it can attribute.
func (c *Controller) applyFill(accountID schema.AccountID, fill schema.Fill) {
	b := c.book(accountID)
	b.mu.Lock()
	o, ok := b.orders[fill.OrderID]
	if !ok {
		if b.stash(schema.NewFillMessage(accountID, fill)) {
			logs.Warnf("buffered fill %s for not-yet-tracked order %s under %s", fill.ExecID, fill.OrderID, accountID)
		} else {
			logs.Warnf("fill %s for untracked order %s under %s", fill.ExecID, fill.OrderID, accountID)
		}
		b.mu.Unlock()
		return
	}
	o.FilledQty = o.FilledQty.Add(fill.Qty)
	o.UpdatedAt = time.Now()
	b.mu.Unlock()

	c.fillMu.RLock()
	l := c.onFill
	c.fillMu.RUnlock()
	if l != nil {
		l(accountID, fill)
	}
}

func (c *Controller) applyConnectivity(accountID schema.AccountID, update schema.ConnectivityUpdate) {
	ad, err := c.accounts.AdapterFor(accountID)
	if err != nil {
		logs.Errorf("connectivity update for unknown account %s", accountID)
		return
	}
	c.accounts.SetConnected(ad.Mode(), update.Connected)
	logs.Infof("venue %s connected=%t %s", ad.Mode(), update.Connected, update.Detail)
}

// Order returns a copy of one tracked order.
func (c *Controller) Order(accountID schema.AccountID, orderID string) (TrackedOrder, bool) {
	b := c.book(accountID)
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[orderID]
	if !ok {
		return TrackedOrder{}, false
	}
	return *o, true
}

// Orders returns copies of every tracked order matching the filter, sorted
// by creation time for stable output.
func (c *Controller) Orders(f Filter) []TrackedOrder {
	c.mu.RLock()
	books := make([]*accountBook, 0, len(c.books))
	for id, b := range c.books {
		if f.Account != "" && id != f.Account {
			continue
		}
		books = append(books, b)
	}
	c.mu.RUnlock()

	var out []TrackedOrder
	for _, b := range books {
		b.mu.RLock()
		for _, o := range b.orders {
			if f.Bucket != "" && o.Bucket != f.Bucket {
				continue
			}
			if f.Status != schema.OrderStatusUnknown && o.Status != f.Status {
				continue
			}
			if f.LiveOnly && !o.Status.IsLive() {
				continue
			}
			out = append(out, *o)
		}
		b.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

// ClearTerminal drops terminal orders from the account's book and returns
// how many were removed. Terminal orders stay queryable until this is
// called.
func (c *Controller) ClearTerminal(accountID schema.AccountID) int {
	b := c.book(accountID)
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, o := range b.orders {
		if o.Status.IsTerminal() {
			delete(b.orders, id)
			removed++
		}
	}
	return removed
}
