// Package position is the authoritative in-memory ledger of holdings. Each
// symbol splits into independent strategy buckets, each carrying its own
// weighted-average cost. State partitions by symbol; unrelated symbols never
// share a lock.
package position

import (
	"sync"

	"github.com/shopspring/decimal"

	"main/internal/schema"
	"main/pkg/exception"
)

// FillResult reports the ledger change from one applied fill.
type FillResult struct {
	Qty      decimal.Decimal
	AvgPrice decimal.Decimal
	Realized decimal.Decimal
}

type bucketPosition struct {
	qty      decimal.Decimal
	avg      decimal.Decimal
	realized decimal.Decimal
}

type symbolBook struct {
	mu      sync.Mutex
	buckets map[schema.Bucket]*bucketPosition
}

// Manager owns the ledger. Safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	books map[string]*symbolBook
}

// NewManager creates an empty ledger.
func NewManager() *Manager {
	return &Manager{books: make(map[string]*symbolBook)}
}

func (m *Manager) book(symbol string) *symbolBook {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok = m.books[symbol]; ok {
		return b
	}
	b = &symbolBook{buckets: make(map[schema.Bucket]*bucketPosition)}
	m.books[symbol] = b
	return b
}

// ApplyFill applies one signed fill to a (symbol, bucket) sub-ledger.
//
// A fill in the direction of the position (or opening from flat) recomputes
// the weighted average. A reducing fill leaves the average untouched for the
// remaining shares and realizes P&L on the closed portion. A fill crossing
// zero closes the whole position and opens a fresh one at the fill price for
// the residual.
func (m *Manager) ApplyFill(symbol string, bucket schema.Bucket, signedQty, price decimal.Decimal) (FillResult, error) {
	if symbol == "" || signedQty.IsZero() || price.IsNegative() {
		return FillResult{}, exception.ErrInvalidArgument
	}

	b := m.book(symbol)
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.buckets[bucket]
	if !ok {
		pos = &bucketPosition{}
		b.buckets[bucket] = pos
	}

	var realized decimal.Decimal
	switch {
	case pos.qty.IsZero() || pos.qty.Sign() == signedQty.Sign():
		// Same direction or flat: quantity-weighted average.
		newQty := pos.qty.Add(signedQty)
		pos.avg = pos.qty.Mul(pos.avg).Add(signedQty.Mul(price)).Div(newQty)
		pos.qty = newQty

	case signedQty.Abs().LessThanOrEqual(pos.qty.Abs()):
		// Reducing: avg unchanged, realize on the closed portion.
		closed := signedQty.Abs()
		realized = closed.Mul(price.Sub(pos.avg)).Mul(decimal.NewFromInt(int64(pos.qty.Sign())))
		pos.qty = pos.qty.Add(signedQty)

	default:
		// Reversing: close everything, reopen the residual at the fill price.
		closed := pos.qty.Abs()
		realized = closed.Mul(price.Sub(pos.avg)).Mul(decimal.NewFromInt(int64(pos.qty.Sign())))
		pos.qty = pos.qty.Add(signedQty)
		pos.avg = price
	}

	pos.realized = pos.realized.Add(realized)
	return FillResult{Qty: pos.qty, AvgPrice: pos.avg, Realized: realized}, nil
}

// Bucket returns one (symbol, bucket) sub-ledger entry. A zero-qty position
// that has traded still exists and is returned.
func (m *Manager) Bucket(symbol string, bucket schema.Bucket) (schema.Position, bool) {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if !ok {
		return schema.Position{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.buckets[bucket]
	if !ok {
		return schema.Position{}, false
	}
	return schema.Position{Symbol: symbol, Bucket: bucket, Qty: pos.qty, AvgPrice: pos.avg}, true
}

// Realized returns the cumulative realized P&L of a sub-ledger.
func (m *Manager) Realized(symbol string, bucket schema.Bucket) decimal.Decimal {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if !ok {
		return decimal.Zero
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	pos, ok := b.buckets[bucket]
	if !ok {
		return decimal.Zero
	}
	return pos.realized
}

// Merged returns the bucket-merged view of one symbol: qty-sum and
// quantity-weighted average. The average is zero when the merged quantity
// nets to zero.
func (m *Manager) Merged(symbol string) (schema.Position, bool) {
	m.mu.RLock()
	b, ok := m.books[symbol]
	m.mu.RUnlock()
	if !ok {
		return schema.Position{}, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buckets) == 0 {
		return schema.Position{}, false
	}

	var qtySum, weighted decimal.Decimal
	for _, pos := range b.buckets {
		qtySum = qtySum.Add(pos.qty)
		weighted = weighted.Add(pos.qty.Mul(pos.avg))
	}

	merged := schema.Position{Symbol: symbol, Qty: qtySum}
	if !qtySum.IsZero() {
		merged.AvgPrice = weighted.Div(qtySum)
	}
	return merged, true
}

// All returns every sub-ledger entry, zero-qty entries included.
func (m *Manager) All() []schema.Position {
	m.mu.RLock()
	symbols := make([]string, 0, len(m.books))
	for symbol := range m.books {
		symbols = append(symbols, symbol)
	}
	m.mu.RUnlock()

	var out []schema.Position
	for _, symbol := range symbols {
		m.mu.RLock()
		b := m.books[symbol]
		m.mu.RUnlock()
		if b == nil {
			continue
		}
		b.mu.Lock()
		for bucket, pos := range b.buckets {
			out = append(out, schema.Position{Symbol: symbol, Bucket: bucket, Qty: pos.qty, AvgPrice: pos.avg})
		}
		b.mu.Unlock()
	}
	return out
}

// Reset destroys every sub-ledger of the symbol, realized history included.
// This is the only way a position is ever removed.
func (m *Manager) Reset(symbol string) {
	m.mu.Lock()
	delete(m.books, symbol)
	m.mu.Unlock()
}

// Inflight describes one open order's contribution to potential exposure.
type Inflight struct {
	Symbol string
	Bucket schema.Bucket
	Qty    decimal.Decimal
	Price  decimal.Decimal
}

// Exposure derives the exposure snapshot on demand. mark supplies a
// valuation price per symbol; a zero mark falls back to the sub-ledger's
// average cost. Inflight orders extend current exposure into potential
// exposure as if every open order filled.
func (m *Manager) Exposure(equity decimal.Decimal, mark func(symbol string) decimal.Decimal, inflight []Inflight) schema.ExposureSnapshot {
	snapshot := schema.ExposureSnapshot{
		BucketPct:          make(map[schema.Bucket]float64),
		BucketPotentialPct: make(map[schema.Bucket]float64),
	}
	if !equity.IsPositive() {
		return snapshot
	}

	hundred := decimal.NewFromInt(100)
	pct := func(notional decimal.Decimal) float64 {
		f, _ := notional.Mul(hundred).Div(equity).Float64()
		return f
	}

	for _, pos := range m.All() {
		if pos.Qty.IsZero() {
			continue
		}
		price := pos.AvgPrice
		if mark != nil {
			if marked := mark(pos.Symbol); marked.IsPositive() {
				price = marked
			}
		}
		exposure := pct(pos.Qty.Abs().Mul(price))
		snapshot.GrossPct += exposure
		snapshot.BucketPct[pos.Bucket] += exposure
	}

	snapshot.PotentialPct = snapshot.GrossPct
	for bucket, current := range snapshot.BucketPct {
		snapshot.BucketPotentialPct[bucket] = current
	}
	for _, o := range inflight {
		exposure := pct(o.Qty.Abs().Mul(o.Price))
		snapshot.PotentialPct += exposure
		snapshot.BucketPotentialPct[o.Bucket] += exposure
	}
	return snapshot
}
