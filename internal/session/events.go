package session

import "sync"

// Listener is notified when session or profile state changes.
type Listener func()

// notifier is an observer registry owned by the session store. Listeners are
// invoked synchronously on the emitting goroutine so observers re-derive
// their displayed identity without a network round trip.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

// subscribe registers a listener and returns its cancel function. Cancelling
// twice is harmless.
func (n *notifier) subscribe(fn Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.listeners == nil {
		n.listeners = make(map[int]Listener)
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.listeners, id)
	}
}

func (n *notifier) emit() {
	n.mu.Lock()
	snapshot := make([]Listener, 0, len(n.listeners))
	for _, fn := range n.listeners {
		snapshot = append(snapshot, fn)
	}
	n.mu.Unlock()

	for _, fn := range snapshot {
		fn()
	}
}
