// Package risk evaluates portfolio exposure against regime-aware limits.
// The decision table is a pure function: exposure snapshot in, policy mode
// and an auditable reason out. Nothing here mutates state.
package risk

import (
	"fmt"
	"sort"

	"main/internal/schema"
)

// Regime is a named time-of-day trading phase. It parameterizes how
// aggressively the table tolerates or corrects exposure.
type Regime struct {
	Name         string
	TolerancePct float64
	AllowDerisk  bool
	LateSession  bool
}

// Config defines the table's limits.
type Config struct {
	HardCapPct         float64                   `json:"hardCapPct"`
	IntradayCeilingPct float64                   `json:"intradayCeilingPct"`
	PreCloseWindowMin  float64                   `json:"preCloseWindowMin"`
	SoftCeilingPct     float64                   `json:"softCeilingPct"`
	BucketCapPct       map[schema.Bucket]float64 `json:"bucketCapPct"`
}

// Table is the policy decision table.
type Table struct {
	cfg Config
}

// NewTable creates a table with static limits.
func NewTable(cfg Config) *Table {
	return &Table{cfg: cfg}
}

// Decide runs the first-match rule chain. Every non-NORMAL result carries
// the triggering numbers in its reason; the reason is part of the audit
// trail, not decoration.
func (t *Table) Decide(regime Regime, snapshot schema.ExposureSnapshot) (schema.PolicyMode, string) {
	// 1. Current exposure through the absolute hard cap.
	if t.cfg.HardCapPct > 0 && snapshot.GrossPct > t.cfg.HardCapPct {
		return schema.PolicyHardDerisk,
			fmt.Sprintf("gross exposure %.1f%% exceeds hard cap %.1f%%", snapshot.GrossPct, t.cfg.HardCapPct)
	}

	// 2. A merely proposed breach throttles; existing positions are not
	// force-closed for orders that have not filled.
	if t.cfg.HardCapPct > 0 && snapshot.PotentialPct > t.cfg.HardCapPct {
		return schema.PolicyThrottleNewOrders,
			fmt.Sprintf("potential exposure %.1f%% exceeds hard cap %.1f%%", snapshot.PotentialPct, t.cfg.HardCapPct)
	}

	// 3. Inside the pre-close window the intraday ceiling binds hard.
	if t.cfg.PreCloseWindowMin > 0 && snapshot.MinutesToClose > 0 &&
		snapshot.MinutesToClose <= t.cfg.PreCloseWindowMin &&
		snapshot.GrossPct > t.cfg.IntradayCeilingPct {
		return schema.PolicyHardDerisk,
			fmt.Sprintf("gross exposure %.1f%% exceeds intraday ceiling %.1f%% with %.0f min to close",
				snapshot.GrossPct, t.cfg.IntradayCeilingPct, snapshot.MinutesToClose)
	}

	// 4. Late session winds down softly when the regime permits.
	if regime.LateSession && regime.AllowDerisk && t.cfg.SoftCeilingPct > 0 &&
		snapshot.GrossPct > t.cfg.SoftCeilingPct {
		return schema.PolicySoftDerisk,
			fmt.Sprintf("late session %s: gross exposure %.1f%% exceeds soft ceiling %.1f%%",
				regime.Name, snapshot.GrossPct, t.cfg.SoftCeilingPct)
	}

	// 5. Regime tolerance. An open/early regime never force-sells; it only
	// stops adding.
	if regime.TolerancePct > 0 && snapshot.GrossPct > regime.TolerancePct {
		reason := fmt.Sprintf("regime %s: gross exposure %.1f%% exceeds tolerance %.1f%%",
			regime.Name, snapshot.GrossPct, regime.TolerancePct)
		if regime.AllowDerisk {
			return schema.PolicySoftDerisk, reason
		}
		return schema.PolicyThrottleNewOrders, reason
	}

	// 6. Per-bucket caps, current or potential.
	for _, bucket := range sortedBuckets(t.cfg.BucketCapPct) {
		capPct := t.cfg.BucketCapPct[bucket]
		if capPct <= 0 {
			continue
		}
		if current := snapshot.BucketPct[bucket]; current > capPct {
			return schema.PolicyThrottleNewOrders,
				fmt.Sprintf("bucket %s exposure %.1f%% exceeds its cap %.1f%%", bucket, current, capPct)
		}
		if potential := snapshot.BucketPotentialPct[bucket]; potential > capPct {
			return schema.PolicyThrottleNewOrders,
				fmt.Sprintf("bucket %s potential exposure %.1f%% exceeds its cap %.1f%%", bucket, potential, capPct)
		}
	}

	return schema.PolicyNormal, ""
}

func sortedBuckets(caps map[schema.Bucket]float64) []schema.Bucket {
	out := make([]schema.Bucket, 0, len(caps))
	for bucket := range caps {
		out = append(out, bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
