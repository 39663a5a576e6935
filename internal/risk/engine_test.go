package risk

import (
	"strings"
	"testing"

	"main/internal/schema"
)

func testTable() *Table {
	return NewTable(Config{
		HardCapPct:         130,
		IntradayCeilingPct: 100,
		PreCloseWindowMin:  15,
		SoftCeilingPct:     110,
		BucketCapPct: map[schema.Bucket]float64{
			"alpha": 40,
		},
	})
}

func TestDecideFirstMatch(t *testing.T) {
	open := Regime{Name: "open", TolerancePct: 120, AllowDerisk: false}
	midday := Regime{Name: "midday", TolerancePct: 120, AllowDerisk: true}
	late := Regime{Name: "late", TolerancePct: 120, AllowDerisk: true, LateSession: true}

	testCases := []struct {
		desc     string
		regime   Regime
		snapshot schema.ExposureSnapshot
		expected schema.PolicyMode
	}{
		{
			"hard cap breach wins regardless of regime",
			open,
			schema.ExposureSnapshot{GrossPct: 131, PotentialPct: 131},
			schema.PolicyHardDerisk,
		},
		{
			"potential breach only throttles",
			midday,
			schema.ExposureSnapshot{GrossPct: 100, PotentialPct: 135},
			schema.PolicyThrottleNewOrders,
		},
		{
			"pre-close window forces derisk over ceiling",
			midday,
			schema.ExposureSnapshot{GrossPct: 105, PotentialPct: 105, MinutesToClose: 10},
			schema.PolicyHardDerisk,
		},
		{
			"outside the window the same exposure passes",
			midday,
			schema.ExposureSnapshot{GrossPct: 105, PotentialPct: 105, MinutesToClose: 60},
			schema.PolicyNormal,
		},
		{
			"late session soft ceiling",
			late,
			schema.ExposureSnapshot{GrossPct: 112, PotentialPct: 112, MinutesToClose: 60},
			schema.PolicySoftDerisk,
		},
		{
			"tolerance breach with derisk allowed",
			midday,
			schema.ExposureSnapshot{GrossPct: 125, PotentialPct: 125},
			schema.PolicySoftDerisk,
		},
		{
			"tolerance breach in open regime never force-sells",
			open,
			schema.ExposureSnapshot{GrossPct: 125, PotentialPct: 125},
			schema.PolicyThrottleNewOrders,
		},
		{
			"bucket cap breach",
			midday,
			schema.ExposureSnapshot{
				GrossPct: 60, PotentialPct: 60,
				BucketPct: map[schema.Bucket]float64{"alpha": 45},
			},
			schema.PolicyThrottleNewOrders,
		},
		{
			"bucket potential breach",
			midday,
			schema.ExposureSnapshot{
				GrossPct: 60, PotentialPct: 70,
				BucketPct:          map[schema.Bucket]float64{"alpha": 30},
				BucketPotentialPct: map[schema.Bucket]float64{"alpha": 42},
			},
			schema.PolicyThrottleNewOrders,
		},
		{
			"all clear",
			midday,
			schema.ExposureSnapshot{GrossPct: 60, PotentialPct: 70},
			schema.PolicyNormal,
		},
	}

	table := testTable()
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			mode, reason := table.Decide(tc.regime, tc.snapshot)
			if mode != tc.expected {
				t.Fatalf("expected %s but got %s (reason %q)", tc.expected, mode, reason)
			}
			if mode != schema.PolicyNormal && reason == "" {
				t.Fatal("non-normal decision must carry a reason")
			}
			if mode == schema.PolicyNormal && reason != "" {
				t.Fatalf("normal decision must not carry a reason, got %q", reason)
			}
		})
	}
}

func TestDecideReasonCarriesNumbers(t *testing.T) {
	table := testTable()
	_, reason := table.Decide(Regime{Name: "open", TolerancePct: 120}, schema.ExposureSnapshot{GrossPct: 131, PotentialPct: 131})
	for _, fragment := range []string{"131.0%", "130.0%"} {
		if !strings.Contains(reason, fragment) {
			t.Fatalf("reason %q must contain %s", reason, fragment)
		}
	}
}
