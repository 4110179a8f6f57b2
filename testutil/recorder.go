package testutil

import (
	"fmt"
	"sync"
)

// Update is one recorded onUpdate call.
type Update struct {
	T, P float64
}

// Recorder logs track callbacks in call order as "name:phase" strings.
type Recorder struct {
	mu      sync.Mutex
	events  []string
	updates map[string][]Update
}

func NewRecorder() *Recorder {
	return &Recorder{updates: make(map[string][]Update)}
}

// Hook returns a lifecycle callback that records name:phase.
func (r *Recorder) Hook(name, phase string) func() error {
	return func() error {
		r.add(name + ":" + phase)
		return nil
	}
}

// Failing returns a lifecycle callback that records name:phase and fails.
func (r *Recorder) Failing(name, phase string, err error) func() error {
	return func() error {
		r.add(name + ":" + phase)
		return err
	}
}

// Func returns a plain callback that records name.
func (r *Recorder) Func(name string) func() {
	return func() { r.add(name) }
}

// Update returns an update callback that records name:update and its
// arguments.
func (r *Recorder) Update(name string) func(t, p float64) error {
	return func(t, p float64) error {
		r.mu.Lock()
		r.events = append(r.events, name+":update")
		r.updates[name] = append(r.updates[name], Update{T: t, P: p})
		r.mu.Unlock()
		return nil
	}
}

func (r *Recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many times event was recorded.
func (r *Recorder) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// Updates returns the recorded onUpdate arguments for name.
func (r *Recorder) Updates(name string) []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates[name]...)
}

// LastUpdate returns the most recent onUpdate for name.
func (r *Recorder) LastUpdate(name string) (Update, error) {
	u := r.Updates(name)
	if len(u) == 0 {
		return Update{}, fmt.Errorf("no updates recorded for %q", name)
	}
	return u[len(u)-1], nil
}

// Reset forgets everything.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.updates = make(map[string][]Update)
	r.mu.Unlock()
}
