package client

import (
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Status Dispatch Tests
// =============================================================================

func TestStatusDispatchCollapsesWithinWindow(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var events []Status
	bus.OnStatus(func(s Status) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})

	current := Status{IsNavigating: true}
	d := newStatusDispatcher(bus, func() Status { return current })

	for i := 0; i < 20; i++ {
		d.schedule()
	}
	time.Sleep(3 * statusDebounce)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Errorf("events = %d, want 1 for a burst within the window", len(events))
	}
}

func TestStatusDispatchSuppressesDuplicates(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var events []Status
	bus.OnStatus(func(s Status) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})

	current := Status{IsSubmitting: true}
	d := newStatusDispatcher(bus, func() Status { return current })

	d.schedule()
	time.Sleep(3 * statusDebounce)
	d.schedule()
	time.Sleep(3 * statusDebounce)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Errorf("events = %d, want 1 for an unchanged status", len(events))
	}
}

func TestStatusDispatchEmitsOnChange(t *testing.T) {
	bus := NewEventBus()
	var mu sync.Mutex
	var events []Status
	bus.OnStatus(func(s Status) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	})

	var stMu sync.Mutex
	current := Status{IsNavigating: true}
	d := newStatusDispatcher(bus, func() Status {
		stMu.Lock()
		defer stMu.Unlock()
		return current
	})

	d.schedule()
	time.Sleep(3 * statusDebounce)
	stMu.Lock()
	current = Status{}
	stMu.Unlock()
	d.schedule()
	time.Sleep(3 * statusDebounce)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if !events[0].IsNavigating || events[1].IsNavigating {
		t.Errorf("events = %+v, want navigating then idle", events)
	}
}

func TestGetStatusIdleOnFreshRuntime(t *testing.T) {
	env := newTestEnv(t, payloadHandler("Home"))
	if s := env.rt.GetStatus(); s.IsNavigating || s.IsSubmitting || s.IsRevalidating {
		t.Errorf("idle status = %+v", s)
	}
}
