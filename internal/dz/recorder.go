package dz

import "sync"

// Event is a single protocol event.
type Event struct {
	Key   string
	Value string
}

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event.
func (r *Recorder) Emit(key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Key: key, Value: value})
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Lines returns the recorded events in wire format.
func (r *Recorder) Lines() []string {
	events := r.Events()
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = FormatLine(e.Key, e.Value)
	}
	return lines
}

// Last returns the most recent value recorded for key.
func (r *Recorder) Last(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Key == key {
			return r.events[i].Value, true
		}
	}
	return "", false
}

// Values returns every value recorded for key in order.
func (r *Recorder) Values(key string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Key == key {
			out = append(out, e.Value)
		}
	}
	return out
}
