// Package observe defines the diagnostic hook injected into the pricing,
// sensitivity and evaluation components.
//
// The components never depend on an observer for correctness: every
// operation produces the same result with Nop as with a logging observer.
package observe

// Fields carries structured key/value data attached to an Event.
type Fields map[string]any

// Event is a single diagnostic record emitted by a component.
type Event struct {
	Component string // e.g. "pricing"
	Op        string // e.g. "call_price"
	Fields    Fields
}

// Observer receives diagnostic events.
type Observer interface {
	Observe(Event)
}

// Func adapts an ordinary function to the Observer interface.
type Func func(Event)

// Observe calls f(e).
func (f Func) Observe(e Event) { f(e) }

type nop struct{}

func (nop) Observe(Event) {}

// Nop discards every event.
var Nop Observer = nop{}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop
	}
	return o
}
