package events

import "sync"

// Recorder keeps every event it receives, in order.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Recorder) LevelChanges() []LevelStateChanged {
	var out []LevelStateChanged
	for _, e := range r.Events() {
		if lc, ok := e.(LevelStateChanged); ok {
			out = append(out, lc)
		}
	}
	return out
}

func (r *Recorder) Trades() []TradeExecuted {
	var out []TradeExecuted
	for _, e := range r.Events() {
		if te, ok := e.(TradeExecuted); ok {
			out = append(out, te)
		}
	}
	return out
}
