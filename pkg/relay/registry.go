package relay

import (
	"fmt"
	"sync/atomic"

	"github.com/robotalks/mcubridge/pkg/wire"
)

// EventKind identifies an asynchronous network event.
type EventKind int

// Event kinds.
const (
	EventConnected EventKind = iota
	EventDisconnected
	EventPublished
	EventData
)

// String implements fmt.Stringer.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventPublished:
		return "published"
	case EventData:
		return "data"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Callbacks holds the handles registered for each event kind.
// A zero handle means the event is not relayed.
type Callbacks struct {
	Connected    wire.Handle
	Disconnected wire.Handle
	Published    wire.Handle
	Data         wire.Handle
}

// Handle returns the handle for kind.
func (c *Callbacks) Handle(kind EventKind) wire.Handle {
	switch kind {
	case EventConnected:
		return c.Connected
	case EventDisconnected:
		return c.Disconnected
	case EventPublished:
		return c.Published
	case EventData:
		return c.Data
	}
	return 0
}

// Registry keeps the callbacks of one session.
// Register replaces the whole record at once, so a concurrent Lookup
// sees either the old or the new record, never a mix.
type Registry struct {
	cbs atomic.Value
}

// Register replaces any previous registration.
func (r *Registry) Register(cbs Callbacks) {
	r.cbs.Store(&cbs)
}

// Clear drops the registration.
func (r *Registry) Clear() {
	r.cbs.Store((*Callbacks)(nil))
}

// Registered tells whether callbacks are currently registered.
func (r *Registry) Registered() bool {
	return r.current() != nil
}

// Lookup returns the handle for kind, false if absent.
func (r *Registry) Lookup(kind EventKind) (wire.Handle, bool) {
	cbs := r.current()
	if cbs == nil {
		return 0, false
	}
	h := cbs.Handle(kind)
	return h, h != 0
}

func (r *Registry) current() *Callbacks {
	cbs, _ := r.cbs.Load().(*Callbacks)
	return cbs
}
