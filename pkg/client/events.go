package client

import "sync"

// =============================================================================
// Event Bus
// =============================================================================

// Status is the derived busy state exposed to UI code.
type Status struct {
	IsNavigating   bool
	IsSubmitting   bool
	IsRevalidating bool
}

// RouteChangeEvent fires after a commit. ScrollState is the hint computed
// from the navigation type; nil means leave the viewport alone.
type RouteChangeEvent struct {
	ScrollState *ScrollState
}

// BuildIDEvent fires when a response carries a build id different from the
// client's current one.
type BuildIDEvent struct {
	OldID string
	NewID string
}

// EventBus is the typed publish/subscribe surface between the navigation
// core and external UI code. Emission is synchronous on the caller's
// goroutine; subscribers receive value copies.
type EventBus struct {
	mu       sync.Mutex
	nextID   int
	status   map[int]func(Status)
	route    map[int]func(RouteChangeEvent)
	location map[int]func()
	buildID  map[int]func(BuildIDEvent)
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{
		status:   make(map[int]func(Status)),
		route:    make(map[int]func(RouteChangeEvent)),
		location: make(map[int]func()),
		buildID:  make(map[int]func(BuildIDEvent)),
	}
}

// OnStatus subscribes to debounced status updates.
func (b *EventBus) OnStatus(fn func(Status)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.status[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.status, id)
	}
}

// OnRouteChange subscribes to post-commit route changes.
func (b *EventBus) OnRouteChange(fn func(RouteChangeEvent)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.route[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.route, id)
	}
}

// OnLocation subscribes to history-key changes. Subscribers re-read the
// current location themselves.
func (b *EventBus) OnLocation(fn func()) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.location[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.location, id)
	}
}

// OnBuildID subscribes to build identity changes.
func (b *EventBus) OnBuildID(fn func(BuildIDEvent)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.buildID[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.buildID, id)
	}
}

func (b *EventBus) emitStatus(s Status) {
	for _, fn := range b.snapshotStatus() {
		fn(s)
	}
}

func (b *EventBus) emitRouteChange(ev RouteChangeEvent) {
	b.mu.Lock()
	fns := make([]func(RouteChangeEvent), 0, len(b.route))
	for _, fn := range b.route {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (b *EventBus) emitLocation() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.location))
	for _, fn := range b.location {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *EventBus) emitBuildID(ev BuildIDEvent) {
	b.mu.Lock()
	fns := make([]func(BuildIDEvent), 0, len(b.buildID))
	for _, fn := range b.buildID {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (b *EventBus) snapshotStatus() []func(Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fns := make([]func(Status), 0, len(b.status))
	for _, fn := range b.status {
		fns = append(fns, fn)
	}
	return fns
}
