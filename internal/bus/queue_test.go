package bus

import (
	"context"
	"testing"
	"time"

	"main/internal/schema"
)

func statusMsg(orderID string) schema.Message {
	return schema.NewStatusMessage("ACC-1", schema.OrderStatusUpdate{
		OrderID: orderID,
		Symbol:  "AAPL",
		Status:  schema.OrderStatusSubmitted,
	})
}

func TestTryPublishFullQueueDrops(t *testing.T) {
	q := NewQueue(1)
	if err := q.TryPublish(statusMsg("1")); err != nil {
		t.Fatalf("first publish should succeed but got %+v", err)
	}
	if err := q.TryPublish(statusMsg("2")); err != ErrQueueFull {
		t.Fatalf("second publish should be %+v but got %+v", ErrQueueFull, err)
	}
}

func TestClosedQueueRejectsButDrains(t *testing.T) {
	q := NewQueue(4)
	if err := q.TryPublish(statusMsg("1")); err != nil {
		t.Fatalf("publish should succeed but got %+v", err)
	}
	q.Close()
	if err := q.TryPublish(statusMsg("2")); err != ErrQueueClosed {
		t.Fatalf("publish after close should be %+v but got %+v", ErrQueueClosed, err)
	}

	got := make([]string, 0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Run(ctx, func(msg schema.Message) {
		got = append(got, msg.Status.OrderID)
	})
	if len(got) != 1 || got[0] != "1" {
		t.Fatalf("buffered message should drain but got %v", got)
	}
}

func TestRunStopsOnContextDone(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(schema.Message) {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run should return when the context is done")
	}
}
