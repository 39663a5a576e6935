package schema

// PolicyMode is the output of the risk decision table. It is computed fresh
// on every check; there is no monotonicity between consecutive results.
type PolicyMode uint16

const (
	PolicyNormal PolicyMode = iota
	PolicyThrottleNewOrders
	PolicySoftDerisk
	PolicyHardDerisk
)

func (m PolicyMode) String() string {
	switch m {
	case PolicyNormal:
		return "normal"
	case PolicyThrottleNewOrders:
		return "throttle_new_orders"
	case PolicySoftDerisk:
		return "soft_derisk"
	case PolicyHardDerisk:
		return "hard_derisk"
	default:
		return "unknown"
	}
}

// ExposureSnapshot is derived on demand from ledger state and in-flight
// orders. It is never persisted.
type ExposureSnapshot struct {
	GrossPct           float64
	PotentialPct       float64
	BucketPct          map[Bucket]float64
	BucketPotentialPct map[Bucket]float64
	MinutesToClose     float64
}
