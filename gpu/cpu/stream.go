package cpu

import (
	"context"
	"sync"
)

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in order.
type Stream struct {
	mu     sync.RWMutex // guards closed and sends on tasks
	closed bool
	tasks  chan func()
	done   chan struct{}

	pendingMu sync.Mutex
	pending   int
	idle      chan struct{} // closed when pending drops to zero
}

// NewStream starts a stream whose queue holds up to depth pending tasks.
func NewStream(depth int) *Stream {
	s := &Stream{
		tasks: make(chan func(), depth),
		done:  make(chan struct{}),
	}
	go s.worker()
	return s
}

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.finish()
	}
	close(s.done)
}

func (s *Stream) begin() {
	s.pendingMu.Lock()
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
	s.pendingMu.Unlock()
}

func (s *Stream) finish() {
	s.pendingMu.Lock()
	s.pending--
	if s.pending == 0 {
		close(s.idle)
	}
	s.pendingMu.Unlock()
}

// Submit adds a task to the stream. It blocks while the queue is full and
// reports false once the stream is closed.
func (s *Stream) Submit(task func()) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	s.begin()
	s.tasks <- task
	return true
}

// Synchronize waits until every task submitted before the call has
// completed, or for ctx to be done.
func (s *Stream) Synchronize(ctx context.Context) error {
	s.pendingMu.Lock()
	if s.pending == 0 {
		s.pendingMu.Unlock()
		return nil
	}
	idle := s.idle
	s.pendingMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work and waits for queued tasks to drain.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.tasks)
	s.mu.Unlock()
	<-s.done
}
