package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type pingEvent struct {
	BaseEvent
}

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncRunsHandlersInOrder(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var order []int
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error {
		order = append(order, 1)
		return nil
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error {
		order = append(order, 2)
		return errors.New("boom")
	}))

	err := bus.PublishSync(context.Background(), pingEvent{BaseEvent: NewBaseEvent()})
	if err == nil || err.Error() != "boom" {
		t.Fatalf("want joined handler error, got %v", err)
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("unexpected handler order %v", order)
	}
}

func TestPublishSurvivesCancelAndPanics(t *testing.T) {
	bus := NewInMemoryBus(nil)

	var handled atomic.Int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error {
		if ctx.Err() != nil {
			t.Errorf("handler context should not be cancelled: %v", ctx.Err())
		}
		handled.Add(1)
		return nil
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, event Event) error {
		panic("handler bug")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	bus.Publish(ctx, pingEvent{BaseEvent: NewBaseEvent()})
	cancel()

	waitCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	if err := bus.Wait(waitCtx); err != nil {
		t.Fatalf("handlers did not finish: %v", err)
	}
	if handled.Load() != 1 {
		t.Fatalf("want 1 handled event, got %d", handled.Load())
	}
}
