package cccl

import (
	"sync"
)

// Stream represents an ordered sequence of operations that execute
// asynchronously. Operations within a stream execute in issue order, but
// operations in different streams may execute concurrently; callers needing
// cross-stream ordering must synchronize externally.
//
// A launch is a non-blocking enqueue: runtime faults inside a kernel are not
// reported by Launch, they are recorded on the stream and surface at the next
// Synchronize. Once enqueued, a kernel runs to completion; there is no
// cancellation.
type Stream struct {
	id    int
	tasks chan func()
	done  chan struct{}
	wg    sync.WaitGroup

	mu  sync.Mutex
	err error // first unreported kernel error
}

func newStream(id int) *Stream {
	s := &Stream{
		id:    id,
		tasks: make(chan func(), 1000),
		done:  make(chan struct{}),
	}
	go s.worker()
	return s
}

// worker processes tasks for a stream
func (s *Stream) worker() {
	for task := range s.tasks {
		task()
		s.wg.Done()
	}
	close(s.done)
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func()) {
	s.wg.Add(1)
	s.tasks <- task
}

// Synchronize blocks until all previously submitted tasks have completed and
// returns the first kernel error recorded since the last synchronization, or
// nil. The error is consumed: a second Synchronize with no new faults
// returns nil.
func (s *Stream) Synchronize() error {
	s.wg.Wait()

	s.mu.Lock()
	err := s.err
	s.err = nil
	s.mu.Unlock()
	return err
}

// recordError stores a deferred kernel error for the next Synchronize.
// Only the first fault since the last synchronization is kept.
func (s *Stream) recordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

// close shuts the stream's worker down after draining pending tasks
func (s *Stream) close() {
	close(s.tasks)
	<-s.done
}
