package transport

import (
	"sync"

	"github.com/comalice/timelinex/protocol"
)

// pipeBuffer is the number of messages a Pipe end holds before Post blocks.
const pipeBuffer = 64

// Pipe is one end of an in-process channel. Messages posted on one end are
// delivered to the other end's subscribers on a dedicated goroutine, so
// delivery is always asynchronous and in order.
type Pipe struct {
	peer  *Pipe
	inbox chan protocol.Message
	subs  subscribers

	closeOnce sync.Once
	done      chan struct{}
}

// NewPipe returns the two connected ends.
func NewPipe() (*Pipe, *Pipe) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer, b.peer = b, a
	a.start()
	b.start()
	return a, b
}

func newPipeEnd() *Pipe {
	return &Pipe{
		inbox: make(chan protocol.Message, pipeBuffer),
		done:  make(chan struct{}),
	}
}

func (p *Pipe) start() {
	go func() {
		for {
			select {
			case m := <-p.inbox:
				p.subs.deliver(m)
			case <-p.done:
				return
			}
		}
	}()
}

// Post queues m for the peer's subscribers.
func (p *Pipe) Post(m protocol.Message) error {
	if err := protocol.Validate(m); err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.inbox <- m:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peer.done:
		return ErrClosed
	}
}

// Subscribe registers fn for messages arriving on this end.
func (p *Pipe) Subscribe(fn func(protocol.Message)) (cancel func()) {
	return p.subs.add(fn)
}

// Subscribers reports the number of live subscriptions.
func (p *Pipe) Subscribers() int { return p.subs.len() }

// Close stops delivery on both ends. It is safe to call more than once.
func (p *Pipe) Close() error {
	p.shutdown()
	p.peer.shutdown()
	return nil
}

func (p *Pipe) shutdown() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
