package cooldown

import (
	"testing"
	"time"
)

func TestCooldownPerSymbol(t *testing.T) {
	m := NewManager(30 * time.Second)
	current := time.Unix(1_700_000_000, 0)
	m.now = func() time.Time { return current }

	if !m.Allow("AAPL") {
		t.Fatal("first decision must be permitted")
	}
	m.Record("AAPL")

	if m.Allow("AAPL") {
		t.Fatal("second decision inside the interval must be blocked")
	}
	if !m.Allow("MSFT") {
		t.Fatal("another symbol must be unaffected")
	}

	current = current.Add(29 * time.Second)
	if m.Allow("AAPL") {
		t.Fatal("still inside the interval")
	}

	current = current.Add(time.Second)
	if !m.Allow("AAPL") {
		t.Fatal("exactly at the interval boundary must be permitted")
	}
}

func TestCooldownReset(t *testing.T) {
	m := NewManager(time.Hour)
	m.Record("AAPL")
	if m.Allow("AAPL") {
		t.Fatal("inside the interval must be blocked")
	}
	m.Reset("AAPL")
	if !m.Allow("AAPL") {
		t.Fatal("reset must permit the next decision")
	}
}
