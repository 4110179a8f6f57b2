// Package transport provides timelinex.Channel implementations: an
// in-process Pipe and a WebSocket connection.
package transport

import (
	"errors"
	"slices"
	"sync"

	"github.com/comalice/timelinex/protocol"
)

var (
	// ErrClosed is returned by Post after Close.
	ErrClosed = errors.New("transport: channel closed")
	// ErrBufferFull is returned by Post when the peer is not keeping up.
	ErrBufferFull = errors.New("transport: send buffer full")
)

// subscribers is the fan-out list shared by both channel kinds.
type subscribers struct {
	mu   sync.RWMutex
	next int
	fns  map[int]func(protocol.Message)
}

func (s *subscribers) add(fn func(protocol.Message)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(protocol.Message))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers) deliver(m protocol.Message) {
	s.mu.RLock()
	ids := make([]int, 0, len(s.fns))
	for id := range s.fns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.Sort(ids)
	for _, id := range ids {
		s.mu.RLock()
		fn, ok := s.fns[id]
		s.mu.RUnlock()
		if ok {
			fn(m)
		}
	}
}

func (s *subscribers) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fns)
}
