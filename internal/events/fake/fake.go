// Package fake provides an in-memory events.Recorder for tests.
package fake

import (
	"sync"

	"github.com/magicorntech/epictetus/internal/events"
)

// Recorder records every published Event for later assertion.
type Recorder struct {
	mu     sync.RWMutex
	calls  map[string]int
	events []events.Event
}

var _ events.Recorder = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{calls: map[string]int{}}
}

func (r *Recorder) Publish(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	r.calls[evt.Reason]++
}

// Calls returns how many events were published with the given reason.
func (r *Recorder) Calls(reason string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.calls[reason]
}

// Reset clears all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.calls = map[string]int{}
}

// DetectedEvent reports whether any published event carries the exact message.
func (r *Recorder) DetectedEvent(msg string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		if e.Message == msg {
			return true
		}
	}
	return false
}

// ForEachEvent iterates every recorded event in publish order.
func (r *Recorder) ForEachEvent(f func(evt events.Event)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.events {
		f(e)
	}
}
