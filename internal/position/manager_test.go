package position

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	out, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return out
}

func TestWeightedAverageAndRealized(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("AAPL", "alpha", d("100"), d("10"))
	require.NoError(t, err)
	res, err := m.ApplyFill("AAPL", "alpha", d("50"), d("11"))
	require.NoError(t, err)

	// avg = (100*10 + 50*11) / 150
	expectedAvg := d("1550").Div(d("150"))
	assert.True(t, res.AvgPrice.Equal(expectedAvg), "avg %s != %s", res.AvgPrice, expectedAvg)
	assert.True(t, res.Qty.Equal(d("150")))

	// Reducing fill: avg unchanged, realized on the closed 50.
	res, err = m.ApplyFill("AAPL", "alpha", d("-50"), d("12"))
	require.NoError(t, err)
	assert.True(t, res.AvgPrice.Equal(expectedAvg), "reducing fill must not move avg")
	assert.True(t, res.Qty.Equal(d("100")))

	expectedRealized := d("50").Mul(d("12").Sub(expectedAvg))
	assert.True(t, res.Realized.Equal(expectedRealized), "realized %s != %s", res.Realized, expectedRealized)
}

func TestShortPositionRealized(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("TSLA", "alpha", d("-100"), d("200"))
	require.NoError(t, err)

	// Covering 40 at a lower price is a gain for the short.
	res, err := m.ApplyFill("TSLA", "alpha", d("40"), d("190"))
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("-60")))
	assert.True(t, res.AvgPrice.Equal(d("200")))
	assert.True(t, res.Realized.Equal(d("400")), "realized %s", res.Realized)
}

func TestReversingFillOpensFresh(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("MSFT", "beta", d("100"), d("50"))
	require.NoError(t, err)

	// Sell 150: closes 100, opens short 50 at the fill price.
	res, err := m.ApplyFill("MSFT", "beta", d("-150"), d("55"))
	require.NoError(t, err)
	assert.True(t, res.Qty.Equal(d("-50")))
	assert.True(t, res.AvgPrice.Equal(d("55")), "residual must open at fill price")
	assert.True(t, res.Realized.Equal(d("500")), "realized %s", res.Realized)
}

func TestZeroPositionPersists(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("AAPL", "alpha", d("100"), d("10"))
	require.NoError(t, err)
	_, err = m.ApplyFill("AAPL", "alpha", d("-100"), d("12"))
	require.NoError(t, err)

	pos, ok := m.Bucket("AAPL", "alpha")
	require.True(t, ok, "flat position must not be deleted")
	assert.True(t, pos.Qty.IsZero())
	assert.True(t, m.Realized("AAPL", "alpha").Equal(d("200")), "realized history must survive at zero")

	m.Reset("AAPL")
	_, ok = m.Bucket("AAPL", "alpha")
	assert.False(t, ok, "explicit reset destroys the position")
}

func TestMergedView(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("AAPL", "alpha", d("100"), d("10"))
	require.NoError(t, err)
	_, err = m.ApplyFill("AAPL", "beta", d("50"), d("16"))
	require.NoError(t, err)

	merged, ok := m.Merged("AAPL")
	require.True(t, ok)
	assert.True(t, merged.Qty.Equal(d("150")))
	// (100*10 + 50*16) / 150 = 12
	assert.True(t, merged.AvgPrice.Equal(d("1800").Div(d("150"))))

	// Buckets stay independent.
	alpha, _ := m.Bucket("AAPL", "alpha")
	beta, _ := m.Bucket("AAPL", "beta")
	assert.True(t, alpha.AvgPrice.Equal(d("10")))
	assert.True(t, beta.AvgPrice.Equal(d("16")))
}

func TestMergedViewNetZero(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("AAPL", "alpha", d("100"), d("10"))
	require.NoError(t, err)
	_, err = m.ApplyFill("AAPL", "beta", d("-100"), d("12"))
	require.NoError(t, err)

	merged, ok := m.Merged("AAPL")
	require.True(t, ok)
	assert.True(t, merged.Qty.IsZero())
	assert.True(t, merged.AvgPrice.IsZero(), "avg is undefined at net zero and reported as zero")
}

func TestExposureSnapshot(t *testing.T) {
	m := NewManager()

	_, err := m.ApplyFill("AAPL", "alpha", d("100"), d("100"))
	require.NoError(t, err)
	_, err = m.ApplyFill("TSLA", "beta", d("-20"), d("250"))
	require.NoError(t, err)

	equity := d("20000")
	snapshot := m.Exposure(equity, nil, []Inflight{
		{Symbol: "MSFT", Bucket: "alpha", Qty: d("10"), Price: d("400")},
	})

	// 10000/20000 = 50%, 5000/20000 = 25% (shorts count absolute).
	assert.InDelta(t, 75.0, snapshot.GrossPct, 1e-9)
	assert.InDelta(t, 50.0, snapshot.BucketPct["alpha"], 1e-9)
	assert.InDelta(t, 25.0, snapshot.BucketPct["beta"], 1e-9)

	// Potential adds the in-flight 4000/20000 = 20%.
	assert.InDelta(t, 95.0, snapshot.PotentialPct, 1e-9)
	assert.InDelta(t, 70.0, snapshot.BucketPotentialPct["alpha"], 1e-9)
}

func TestApplyFillRejectsBadInput(t *testing.T) {
	m := NewManager()
	if _, err := m.ApplyFill("", "alpha", d("1"), d("1")); err == nil {
		t.Fatal("empty symbol must be rejected")
	}
	if _, err := m.ApplyFill("AAPL", "alpha", decimal.Zero, d("1")); err == nil {
		t.Fatal("zero qty must be rejected")
	}
}
