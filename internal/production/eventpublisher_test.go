// Tests for the event publishers and their wiring into a Timeline.
package production

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/comalice/timelinex"
	"github.com/comalice/timelinex/internal/logging"
	"github.com/comalice/timelinex/testutil"
)

func TestChannelPublisher_Delivery(t *testing.T) {
	ch := make(chan timelinex.Event, 10)
	p := NewChannelPublisher(ch)

	event := timelinex.Event{Type: timelinex.EventPlayed, Timeline: "main", Timestamp: time.Now()}
	if err := p.Publish(context.Background(), event); err != nil {
		t.Errorf("Publish failed: %v", err)
	}

	select {
	case got := <-ch:
		if got.Type != event.Type {
			t.Errorf("Event type mismatch: got %q, want %q", got.Type, event.Type)
		}
		if got.Timeline != event.Timeline {
			t.Errorf("Timeline mismatch: got %q, want %q", got.Timeline, event.Timeline)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No event delivered")
	}
}

func TestChannelPublisher_BackpressureDrop(t *testing.T) {
	ch := make(chan timelinex.Event, 1)
	p := NewChannelPublisher(ch)
	ch <- timelinex.Event{} // Fill buffer

	if err := p.Publish(context.Background(), timelinex.Event{Type: timelinex.EventPaused}); err != nil {
		t.Errorf("Publish on full channel failed: %v", err)
	}
	if p.Dropped() != 1 {
		t.Errorf("expected 1 dropped event, got %d", p.Dropped())
	}
}

func TestChannelPublisher_Close(t *testing.T) {
	ch := make(chan timelinex.Event, 1)
	p := NewChannelPublisher(ch)

	if err := p.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed")
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(slog.New(slog.NewTextHandler(&buf, nil)))

	_ = p.Publish(context.Background(), timelinex.Event{Type: timelinex.EventHalted, Timeline: "t", Err: errors.New("boom")})
	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "timeline halted") {
		t.Errorf("unexpected log output: %s", out)
	}
}

type failingPublisher struct{ calls int }

func (f *failingPublisher) Publish(context.Context, timelinex.Event) error {
	f.calls++
	return errors.New("nope")
}
func (f *failingPublisher) Close() error { return nil }

func TestMultiPublisher(t *testing.T) {
	ch := make(chan timelinex.Event, 1)
	bad := &failingPublisher{}
	m := MultiPublisher{bad, NewChannelPublisher(ch)}

	err := m.Publish(context.Background(), timelinex.Event{Type: timelinex.EventStopped})
	if err == nil {
		t.Error("expected the first error to surface")
	}
	if len(ch) != 1 || bad.calls != 1 {
		t.Error("every publisher must be called")
	}
}

func TestChannelPublisher_Integration_TimelineEvents(t *testing.T) {
	d := testutil.NewManualDriver()
	ch := make(chan timelinex.Event, 16)

	cfg := timelinex.DefaultConfig()
	cfg.Duration = 200
	tl, err := timelinex.New(cfg,
		timelinex.WithName("pub"),
		timelinex.WithClock(d.Clock()),
		timelinex.WithScheduler(d.Sched),
		timelinex.WithLogger(logging.Discard()),
		timelinex.WithPublisher(NewChannelPublisher(ch)),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := tl.Play(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		d.Advance(100)
	}

	var got []timelinex.EventType
	for len(ch) > 0 {
		got = append(got, (<-ch).Type)
	}
	want := []timelinex.EventType{timelinex.EventPlayed, timelinex.EventEnded}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
