package realtime

import "sync"

// Manual is a Scheduler that only runs work when told to.
type Manual struct {
	mu       sync.Mutex
	frames   []pendingFrame
	tasks    []func()
	nextID   FrameID
	frameNum uint64
}

// NewManual creates an idle manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// RequestFrame schedules fn for the next Step.
func (m *Manual) RequestFrame(fn func()) FrameID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.frames = append(m.frames, pendingFrame{id: m.nextID, fn: fn})
	return m.nextID
}

// CancelFrame drops a pending frame.
func (m *Manual) CancelFrame(id FrameID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = removeFrame(m.frames, id)
}

// Post queues fn for the next Drain.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, fn)
}

// Step runs the frames requested before the call and returns how many ran.
// Frames requested while stepping wait for the next Step.
func (m *Manual) Step() int {
	m.mu.Lock()
	frames := m.frames
	m.frames = nil
	m.frameNum++
	m.mu.Unlock()

	for _, f := range frames {
		f.fn()
	}
	return len(frames)
}

// Drain runs posted tasks until the queue is empty and returns how many ran.
func (m *Manual) Drain() int {
	n := 0
	for {
		m.mu.Lock()
		tasks := m.tasks
		m.tasks = nil
		m.mu.Unlock()

		if len(tasks) == 0 {
			return n
		}
		for _, fn := range tasks {
			fn()
		}
		n += len(tasks)
	}
}

// PendingFrames returns the number of frames waiting for Step.
func (m *Manual) PendingFrames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// PendingTasks returns the number of tasks waiting for Drain.
func (m *Manual) PendingTasks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// FrameNumber returns how many times Step was called.
func (m *Manual) FrameNumber() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameNum
}
