package cart

import "slices"

// EventType names a cart change.
type EventType string

const (
	EventLoaded        EventType = "loaded"
	EventItemAdded     EventType = "item_added"
	EventItemRemoved   EventType = "item_removed"
	EventCouponApplied EventType = "coupon_applied"
	EventCheckedOut    EventType = "checked_out"
)

// Event is delivered to subscribers after each change.
type Event struct {
	Type    EventType
	Summary Summary

	// ProductID is set for item_added and item_removed.
	ProductID int

	// Receipt is set for checked_out.
	Receipt *Receipt
}

// Subscribe registers fn for every subsequent change and returns a function
// that removes it. Listeners run on the caller's goroutine after the engine
// has released its lock, so they may call back into the engine.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	id := e.subscribe(fn)
	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

func (e *Engine) subscribe(fn func(Event)) int {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	return id
}

func (e *Engine) notify(ev Event) {
	e.listenersMu.Lock()
	ids := make([]int, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(Event), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, e.listeners[id])
	}
	e.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
