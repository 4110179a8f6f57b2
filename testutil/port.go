package testutil

import (
	"errors"
	"sync"

	"github.com/comalice/timelinex/protocol"
	"github.com/comalice/timelinex/realtime"
)

var errPortClosed = errors.New("testutil: port closed")

// Port is one end of an in-memory channel pair. Posted messages queue on
// the peer until Flush, so tests decide exactly when delivery happens.
type Port struct {
	peer *Port

	mu      sync.Mutex
	inbox   []protocol.Message
	subs    map[int]func(protocol.Message)
	nextSub int
	sent    []protocol.Message
	closed  bool
}

// NewPortPair returns two connected ports.
func NewPortPair() (*Port, *Port) {
	a := &Port{subs: make(map[int]func(protocol.Message))}
	b := &Port{subs: make(map[int]func(protocol.Message))}
	a.peer, b.peer = b, a
	return a, b
}

// Post queues m on the peer.
func (p *Port) Post(m protocol.Message) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errPortClosed
	}
	p.sent = append(p.sent, m)
	p.mu.Unlock()

	p.peer.mu.Lock()
	p.peer.inbox = append(p.peer.inbox, m)
	p.peer.mu.Unlock()
	return nil
}

// Subscribe registers fn for messages arriving at this port.
func (p *Port) Subscribe(fn func(protocol.Message)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Flush delivers every queued inbound message and returns how many there
// were.
func (p *Port) Flush() int {
	p.mu.Lock()
	msgs := p.inbox
	p.inbox = nil
	subs := make([]func(protocol.Message), 0, len(p.subs))
	for i := 0; i < p.nextSub; i++ {
		if fn, ok := p.subs[i]; ok {
			subs = append(subs, fn)
		}
	}
	p.mu.Unlock()

	for _, m := range msgs {
		for _, fn := range subs {
			fn(m)
		}
	}
	return len(msgs)
}

// Pending returns the number of undelivered inbound messages.
func (p *Port) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inbox)
}

// Sent returns every message posted from this port.
func (p *Port) Sent() []protocol.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]protocol.Message(nil), p.sent...)
}

// SentOfType filters Sent by message type.
func (p *Port) SentOfType(t protocol.Type) []protocol.Message {
	var out []protocol.Message
	for _, m := range p.Sent() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Subscribers returns the number of live subscriptions.
func (p *Port) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Close makes further Posts fail.
func (p *Port) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

// Settle flushes ports and drains sched until no messages or tasks remain.
func Settle(sched *realtime.Manual, ports ...*Port) {
	for {
		moved := sched.Drain()
		for _, p := range ports {
			moved += p.Flush()
		}
		moved += sched.Drain()
		if moved == 0 {
			return
		}
	}
}
