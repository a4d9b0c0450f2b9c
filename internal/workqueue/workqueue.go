// Package workqueue implements the bounded, multi-worker task executor the
// replication engine dispatches onto: a closures queue drained by a fixed
// worker count, with captured errors surfaced at Join.
package workqueue

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Task is one unit of work submitted to a Queue.
type Task func(ctx context.Context) error

// Queue is a bounded closures queue drained by a fixed number of workers.
// Worker errors are captured rather than propagated, so one failing task
// never stops the others; callers inspect HasExceptions/Exceptions after
// Join.
type Queue struct {
	name   string
	tasks  chan Task
	log    *logrus.Entry
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	exceptions []error
}

// New creates a queue named name (used only for diagnostic logging) with
// the given capacity and worker count, and starts its workers immediately.
func New(ctx context.Context, name string, capacity, workers int, log *logrus.Entry) *Queue {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	qCtx, cancel := context.WithCancel(ctx)

	q := &Queue{
		name:   name,
		tasks:  make(chan Task, capacity),
		log:    log.WithField("queue", name),
		ctx:    qCtx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.runWorker(i)
	}

	return q
}

func (q *Queue) runWorker(id int) {
	defer q.wg.Done()

	for task := range q.tasks {
		if err := q.runTask(task); err != nil {
			q.log.WithError(err).WithField("worker", id).Error("task failed")
			q.mu.Lock()
			q.exceptions = append(q.exceptions, err)
			q.mu.Unlock()
		}
	}
}

func (q *Queue) runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workqueue: task panicked: %v", r)
		}
	}()
	return task(q.ctx)
}

// Submit enqueues task, blocking if the queue is at capacity. It panics if
// called after Join; callers must not submit to a queue they have already
// drained.
func (q *Queue) Submit(task Task) {
	q.tasks <- task
}

// HasExceptions reports whether any worker has captured an error so far.
// Safe to call concurrently with Submit.
func (q *Queue) HasExceptions() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.exceptions) > 0
}

// Exceptions returns every error captured so far, in the order workers
// observed them. The slice is a snapshot; call after Join for a complete
// view.
func (q *Queue) Exceptions() []error {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]error, len(q.exceptions))
	copy(out, q.exceptions)
	return out
}

// Join closes the queue to further submissions, waits for every in-flight
// and queued task to finish, and returns the first captured exception (if
// any). Callers needing every exception should read Exceptions() after
// Join returns.
func (q *Queue) Join() error {
	close(q.tasks)
	q.wg.Wait()
	q.cancel()

	if q.HasExceptions() {
		return q.Exceptions()[0]
	}
	return nil
}
