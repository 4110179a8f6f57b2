package timelinex

import (
	"github.com/google/uuid"

	"github.com/comalice/timelinex/protocol"
)

// maxWaitQueue bounds the TICKs held back for a remote shadow that has not
// acknowledged the one in flight. When full the oldest is dropped.
const maxWaitQueue = 2

// Channel is an asynchronous, bidirectional message pipe to another
// execution context. Subscribe callbacks may run on any goroutine.
type Channel interface {
	Post(m protocol.Message) error
	Subscribe(fn func(protocol.Message)) (cancel func())
}

type syncState struct {
	mode Mode

	// shadow side
	origin       *Timeline
	originCh     Channel
	originCancel func()
	shadowID     string
	paired       bool

	// origin side
	locals    []*Timeline
	listeners []*listener
	remotes   []*remoteShadow
	dropped   uint64
}

type listener struct {
	ch     Channel
	cancel func()
	closed bool
}

type remoteShadow struct {
	id      string
	ch      Channel
	waiting bool
	queue   []protocol.Message
}

// Mode reports whether the timeline is bound to an origin.
func (tl *Timeline) Mode() Mode { return tl.sync.mode }

// Origin returns the local origin, or nil.
func (tl *Timeline) Origin() *Timeline { return tl.sync.origin }

// ShadowID is the id this timeline uses on a remote origin channel.
func (tl *Timeline) ShadowID() string { return tl.sync.shadowID }

// Paired reports whether the origin has accepted this shadow.
func (tl *Timeline) Paired() bool { return tl.sync.paired }

// DroppedTicks counts TICKs discarded for slow remote shadows.
func (tl *Timeline) DroppedTicks() uint64 { return tl.sync.dropped }

// LocalShadows returns the in-process shadows.
func (tl *Timeline) LocalShadows() []*Timeline {
	out := make([]*Timeline, len(tl.sync.locals))
	copy(out, tl.sync.locals)
	return out
}

// RemoteShadows returns the ids of the paired remote shadows.
func (tl *Timeline) RemoteShadows() []string {
	out := make([]string, 0, len(tl.sync.remotes))
	for _, r := range tl.sync.remotes {
		out = append(out, r.id)
	}
	return out
}

// Listen accepts pairing requests arriving on ch. Listening twice on the
// same channel is a no-op.
func (tl *Timeline) Listen(ch Channel) error {
	if tl.disposed {
		return ErrDisposed
	}
	for _, l := range tl.sync.listeners {
		if l.ch == ch {
			return nil
		}
	}
	l := &listener{ch: ch}
	l.cancel = ch.Subscribe(func(m protocol.Message) {
		tl.sched.Post(func() { tl.handleOriginMessage(l, m) })
	})
	tl.sync.listeners = append(tl.sync.listeners, l)
	return nil
}

// StopListen stops accepting pairings on ch and drops the shadows paired
// through it.
func (tl *Timeline) StopListen(ch Channel) {
	kept := make([]*listener, 0, len(tl.sync.listeners))
	for _, l := range tl.sync.listeners {
		if l.ch == ch {
			l.close()
			continue
		}
		kept = append(kept, l)
	}
	tl.sync.listeners = kept
	tl.dropRemotes(func(r *remoteShadow) bool { return r.ch == ch })
}

func (l *listener) close() {
	l.closed = true
	if l.cancel != nil {
		l.cancel()
	}
}

// SetOrigin binds the timeline to a timeline in the same process. Both must
// share a scheduler goroutine. The origin copies its time in and ticks this
// timeline inline with its own ticks.
func (tl *Timeline) SetOrigin(origin *Timeline) error {
	if tl.disposed || origin.disposed {
		return ErrDisposed
	}
	if origin == tl || tl.sync.mode == ModeShadow {
		return ErrDuplicateOrigin
	}
	for o := origin.sync.origin; o != nil; o = o.sync.origin {
		if o == tl {
			return ErrDuplicateOrigin
		}
	}

	tl.stop()
	tl.sync.mode = ModeShadow
	tl.sync.origin = origin
	tl.sync.paired = true
	tl.cfg.Duration = origin.cfg.Duration
	tl.adoptLoop(origin.cfg.Loop)
	origin.sync.locals = append(origin.sync.locals, tl)
	tl.publish(EventPaired, nil)
	return nil
}

// SetRemoteOrigin binds the timeline to an origin on the other side of ch.
// It sends a pairing request; the timeline is paired once INIT arrives.
func (tl *Timeline) SetRemoteOrigin(ch Channel) error {
	if tl.disposed {
		return ErrDisposed
	}
	if tl.sync.mode == ModeShadow {
		return ErrDuplicateOrigin
	}

	tl.stop()
	tl.sync.mode = ModeShadow
	tl.sync.originCh = ch
	tl.sync.shadowID = uuid.NewString()
	tl.sync.originCancel = ch.Subscribe(func(m protocol.Message) {
		tl.sched.Post(func() { tl.handleShadowMessage(ch, m) })
	})

	if err := ch.Post(protocol.NewPairingRequest(tl.sync.shadowID)); err != nil {
		tl.detachOrigin()
		return err
	}
	return nil
}

// ClearOrigin unbinds a shadow and returns it to standalone mode.
func (tl *Timeline) ClearOrigin() {
	tl.detachOrigin()
}

func (tl *Timeline) detachOrigin() {
	s := &tl.sync
	if s.origin != nil {
		s.origin.removeLocal(tl)
		s.origin = nil
	}
	if s.originCancel != nil {
		s.originCancel()
		s.originCancel = nil
	}
	s.originCh = nil
	s.shadowID = ""
	s.paired = false
	s.mode = ModeStandalone
}

func (tl *Timeline) removeLocal(shadow *Timeline) {
	kept := make([]*Timeline, 0, len(tl.sync.locals))
	for _, s := range tl.sync.locals {
		if s != shadow {
			kept = append(kept, s)
		}
	}
	tl.sync.locals = kept
}

func (tl *Timeline) disposeSync() {
	for _, l := range tl.sync.listeners {
		l.close()
	}
	tl.sync.listeners = nil
	tl.sync.remotes = nil
	for _, s := range tl.sync.locals {
		s.sync.origin = nil
		s.sync.paired = false
		s.sync.mode = ModeStandalone
	}
	tl.sync.locals = nil
	tl.detachOrigin()
}

// handleOriginMessage runs on the scheduler goroutine.
func (tl *Timeline) handleOriginMessage(l *listener, m protocol.Message) {
	if l.closed || tl.disposed {
		return
	}
	switch m.Type {
	case protocol.TypePairingRequest:
		if m.ShadowID == "" {
			return
		}
		if r := tl.remote(m.ShadowID); r != nil {
			// Lost INIT; answer again.
			tl.sendInit(r)
			return
		}
		r := &remoteShadow{id: m.ShadowID, ch: l.ch}
		if tl.sendInit(r) {
			tl.sync.remotes = append(tl.sync.remotes, r)
			tl.log.Debug("remote shadow paired", "shadow", r.id)
		}
	case protocol.TypeDone:
		r := tl.remote(m.ShadowID)
		if r == nil {
			return
		}
		r.waiting = false
		if len(r.queue) > 0 {
			next := r.queue[0]
			r.queue = r.queue[1:]
			tl.sendTick(r, next)
		}
	}
}

// handleShadowMessage runs on the scheduler goroutine.
func (tl *Timeline) handleShadowMessage(ch Channel, m protocol.Message) {
	s := &tl.sync
	if tl.disposed || s.originCh != ch || m.ShadowID != s.shadowID {
		return
	}
	switch m.Type {
	case protocol.TypeInit:
		cs, err := m.DecodeInit()
		if err != nil {
			tl.log.Debug("bad INIT from origin", "error", err)
			return
		}
		cfg := ConfigFromSnapshot(cs)
		tl.cfg.Duration = cfg.Duration
		tl.adoptLoop(cfg.Loop)
		tl.cfg.MaxStep = cfg.MaxStep
		tl.cfg.RecordFPSDecay = cfg.RecordFPSDecay
		if !s.paired {
			s.paired = true
			tl.publish(EventPaired, nil)
		}
	case protocol.TypeTick:
		if !s.paired {
			return
		}
		p, err := m.DecodeTick()
		if err != nil {
			tl.log.Debug("bad TICK from origin", "error", err)
			return
		}
		id := s.shadowID
		tl.mirror(float64(p.CurrentTime), float64(p.Duration), float64(p.ReferenceTime))
		if err := ch.Post(protocol.NewDone(id)); err != nil {
			tl.log.Warn("ack TICK", "error", err)
		}
	}
}

// adoptLoop takes the origin's loop flag, with the same autoRelease rule
// New applies: tracks of a looping timeline must survive to run again.
func (tl *Timeline) adoptLoop(loop bool) {
	tl.cfg.Loop = loop
	if loop {
		tl.cfg.AutoRelease = false
	}
}

// mirror adopts the origin's time and ticks. On a looping timeline a time
// lower than the last one is a wrap, so finished tracks are revived first.
// Remote shadows may miss the wrap tick itself, hence the comparison.
func (tl *Timeline) mirror(current, duration, reference float64) {
	if tl.cfg.Loop && current < tl.currentTime {
		for _, t := range tl.tracks {
			t.revive()
		}
	}
	tl.currentTime = current
	tl.cfg.Duration = duration
	tl.referenceTime = reference
	tl.runTick()
}

func (tl *Timeline) remote(id string) *remoteShadow {
	for _, r := range tl.sync.remotes {
		if r.id == id {
			return r
		}
	}
	return nil
}

func (tl *Timeline) sendInit(r *remoteShadow) bool {
	msg, err := protocol.NewInit(r.id, tl.cfg.Snapshot())
	if err == nil {
		err = r.ch.Post(msg)
	}
	if err != nil {
		tl.log.Warn("send INIT", "shadow", r.id, "error", err)
		return false
	}
	return true
}

// sendTick puts msg in flight. A failed send drops the shadow.
func (tl *Timeline) sendTick(r *remoteShadow, msg protocol.Message) {
	r.waiting = true
	if err := r.ch.Post(msg); err != nil {
		tl.log.Warn("send TICK, dropping shadow", "shadow", r.id, "error", err)
		tl.dropRemotes(func(x *remoteShadow) bool { return x == r })
	}
}

func (tl *Timeline) dropRemotes(match func(*remoteShadow) bool) {
	kept := make([]*remoteShadow, 0, len(tl.sync.remotes))
	for _, r := range tl.sync.remotes {
		if !match(r) {
			kept = append(kept, r)
		}
	}
	tl.sync.remotes = kept
}

// syncShadows mirrors the current time onto every shadow.
func (tl *Timeline) syncShadows() {
	for _, s := range tl.sync.locals {
		s.mirror(tl.currentTime, tl.cfg.Duration, tl.referenceTime)
	}

	if len(tl.sync.remotes) == 0 {
		return
	}
	payload := protocol.TickPayload{
		CurrentTime:   protocol.Float(tl.currentTime),
		Duration:      protocol.Float(tl.cfg.Duration),
		ReferenceTime: protocol.Float(tl.referenceTime),
	}
	dropped := 0
	for _, r := range tl.sync.remotes {
		msg, err := protocol.NewTick(r.id, payload)
		if err != nil {
			tl.log.Warn("encode TICK", "error", err)
			return
		}
		if !r.waiting {
			tl.sendTick(r, msg)
			continue
		}
		if len(r.queue) >= maxWaitQueue {
			r.queue = append(r.queue[:0:0], r.queue[1:]...)
			dropped++
		}
		r.queue = append(r.queue, msg)
	}
	if dropped > 0 {
		tl.sync.dropped += uint64(dropped)
		if d, ok := tl.stats.(interface{ AddDropped(int) }); ok {
			d.AddDropped(dropped)
		}
	}
}

