package timelinex

import (
	"context"
	"time"
)

// EventType names a timeline lifecycle transition.
type EventType string

const (
	EventPlayed   EventType = "played"
	EventPaused   EventType = "paused"
	EventResumed  EventType = "resumed"
	EventStopped  EventType = "stopped"
	EventLooped   EventType = "looped"
	EventEnded    EventType = "ended"
	EventHalted   EventType = "halted"
	EventPaired   EventType = "paired"
	EventDisposed EventType = "disposed"
)

// Event is published on every lifecycle transition.
type Event struct {
	Type        EventType `json:"type" yaml:"type"`
	Timeline    string    `json:"timeline" yaml:"timeline"`
	CurrentTime float64   `json:"currentTime" yaml:"currentTime"`
	Err         error     `json:"-" yaml:"-"`
	Timestamp   time.Time `json:"timestamp" yaml:"timestamp"`
}

// EventPublisher receives lifecycle events. Publish is called on the
// timeline's goroutine and must not block.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Hooks are timeline-level callbacks fired when a looping timeline wraps
// around: OnEnd, then OnInit on the first wrap only, then OnStart.
type Hooks struct {
	OnInit  func()
	OnStart func()
	OnEnd   func()
}

func (tl *Timeline) publish(t EventType, err error) {
	if tl.publisher == nil {
		return
	}
	e := Event{
		Type:        t,
		Timeline:    tl.name,
		CurrentTime: tl.currentTime,
		Err:         err,
		Timestamp:   time.Now(),
	}
	if perr := tl.publisher.Publish(context.Background(), e); perr != nil {
		tl.log.Debug("publish event failed", "event", t, "error", perr)
	}
}
