package production

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/comalice/timelinex"
)

// ChannelPublisher forwards timeline events to a Go channel.
// Non-blocking publish with drop on backpressure, since Publish runs on the
// timeline's scheduler goroutine.
type ChannelPublisher struct {
	ch      chan<- timelinex.Event
	dropped atomic.Uint64
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- timelinex.Event) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event timelinex.Event) error {
	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped.Add(1)
		return nil
	}
}

// Dropped returns how many events were discarded on a full channel.
func (p *ChannelPublisher) Dropped() uint64 { return p.dropped.Load() }

func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}

// LogPublisher writes every event to a logger.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event timelinex.Event) error {
	level := slog.LevelInfo
	attrs := []any{"timeline", event.Timeline, "current_time", event.CurrentTime}
	if event.Err != nil {
		level = slog.LevelError
		attrs = append(attrs, "error", event.Err)
	}
	p.log.Log(ctx, level, "timeline "+string(event.Type), attrs...)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// MultiPublisher fans events out to several publishers. The first error is
// returned after every publisher has been called.
type MultiPublisher []timelinex.EventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event timelinex.Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiPublisher) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
