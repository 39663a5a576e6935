package schema

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	testCases := []struct {
		desc    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to submitted", OrderStatusPending, OrderStatusSubmitted, true},
		{"submitted to part filled", OrderStatusSubmitted, OrderStatusPartFilled, true},
		{"part filled back to submitted", OrderStatusPartFilled, OrderStatusSubmitted, true},
		{"part filled to filled", OrderStatusPartFilled, OrderStatusFilled, true},
		{"submitted to cancelled", OrderStatusSubmitted, OrderStatusCancelled, true},
		{"submitted to rejected", OrderStatusSubmitted, OrderStatusRejected, true},
		{"pending to orphaned", OrderStatusPending, OrderStatusOrphaned, true},
		{"part filled to orphaned", OrderStatusPartFilled, OrderStatusOrphaned, true},
		{"orphaned to cancelled", OrderStatusOrphaned, OrderStatusCancelled, true},
		{"orphaned fills on legacy venue", OrderStatusOrphaned, OrderStatusFilled, true},
		{"filled is terminal", OrderStatusFilled, OrderStatusCancelled, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusSubmitted, false},
		{"rejected is terminal", OrderStatusRejected, OrderStatusOrphaned, false},
		{"pending cannot fill directly", OrderStatusPending, OrderStatusFilled, false},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.allowed {
				t.Fatalf("%s -> %s: expected %v but got %v", tc.from, tc.to, tc.allowed, got)
			}
		})
	}
}

func TestOrderStatusLiveness(t *testing.T) {
	live := []OrderStatus{OrderStatusPending, OrderStatusSubmitted, OrderStatusPartFilled, OrderStatusOrphaned}
	for _, s := range live {
		if !s.IsLive() {
			t.Fatalf("%s should be live", s)
		}
		if s.IsTerminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}

	terminal := []OrderStatus{OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected}
	for _, s := range terminal {
		if s.IsLive() {
			t.Fatalf("%s should not be live", s)
		}
		if !s.IsTerminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}
