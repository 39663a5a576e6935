// Package schema defines the canonical types shared by every component in
// the execution core. Provider-specific shapes never leave their adapter;
// everything above deals only with these types.
package schema

// AccountID identifies one venue account. All controller and ledger state
// partitions by this key.
type AccountID string

// Bucket is a strategy tag partitioning one symbol's holdings into
// independent sub-ledgers, each with its own cost basis.
type Bucket string

// Mode selects the active execution target.
type Mode uint16

const (
	ModeUnknown Mode = iota
	ModeTerminal
	ModePaper
	ModeLive
)

func (m Mode) String() string {
	switch m {
	case ModeTerminal:
		return "terminal"
	case ModePaper:
		return "paper"
	case ModeLive:
		return "live"
	default:
		return "unknown"
	}
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "buy"
	case OrderSideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Sign returns +1 for buys and -1 for sells.
func (s OrderSide) Sign() int64 {
	if s == OrderSideSell {
		return -1
	}
	return 1
}

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "limit"
	case OrderTypeMarket:
		return "market"
	default:
		return "unknown"
	}
}

// TimeInForce describes order time-in-force. It is passed through to the
// venue; no expiry logic lives in this process.
type TimeInForce uint16

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceDay
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
)

func (tif TimeInForce) String() string {
	switch tif {
	case TimeInForceDay:
		return "day"
	case TimeInForceGTC:
		return "gtc"
	case TimeInForceIOC:
		return "ioc"
	case TimeInForceFOK:
		return "fok"
	default:
		return "unknown"
	}
}
