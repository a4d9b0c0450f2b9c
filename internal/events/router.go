// Package events routes change notifications from the source monitoring
// engine onto each live replicator's work queue, per §4.6.
package events

import (
	"context"

	"github.com/sirupsen/logrus"

	"icingadb.dev/redisbridge/internal/objects"
	"icingadb.dev/redisbridge/internal/replication"
	"icingadb.dev/redisbridge/internal/source"
	"icingadb.dev/redisbridge/internal/workqueue"
)

// Router subscribes to a source.EventStream and dispatches work onto one
// replicator's queue. Multiple routers may run concurrently, each against
// its own stream. Routers given the same stream value receive from the same
// channels, so each event reaches only one of them.
type Router struct {
	stream source.EventStream
	engine *replication.Engine
	queue  *workqueue.Queue
	log    *logrus.Entry
	done   chan struct{}
}

// New creates a router bound to one replicator instance and starts
// consuming stream immediately. Call Close to unsubscribe.
func New(ctx context.Context, stream source.EventStream, engine *replication.Engine, queue *workqueue.Queue, log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &Router{
		stream: stream,
		engine: engine,
		queue:  queue,
		log:    log.WithField("component", "events"),
		done:   make(chan struct{}),
	}
	go r.run(ctx)
	return r
}

func (r *Router) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case evt, ok := <-r.stream.StateChanges():
			if !ok {
				return
			}
			r.enqueueStateStream(evt.Checkable)
		case evt, ok := <-r.stream.AcknowledgementsCleared():
			if !ok {
				return
			}
			r.enqueueStateStream(evt.Checkable)
		case evt, ok := <-r.stream.ActiveOrVersionChanges():
			if !ok {
				return
			}
			r.handleActiveOrVersionChange(evt)
		case evt, ok := <-r.stream.Downtimes():
			if !ok {
				return
			}
			r.enqueueStateStream(evt.Checkable)
		}
	}
}

func (r *Router) enqueueStateStream(checkable objects.Checkable) {
	r.queue.Submit(func(ctx context.Context) error {
		return r.engine.StateStreamUpdate(ctx, checkable)
	})
}

func (r *Router) handleActiveOrVersionChange(evt source.ChangeEvent) {
	if evt.Active {
		r.queue.Submit(func(ctx context.Context) error {
			return r.engine.RuntimeUpdate(ctx, evt.Object)
		})
		return
	}

	deleted, ok := evt.Object.(source.ConfigObjectDeleted)
	if !ok || !deleted.ConfigObjectDeleted() {
		return
	}
	r.queue.Submit(func(ctx context.Context) error {
		return r.engine.RuntimeDelete(ctx, evt.Object)
	})
}

// Close stops this router from dispatching further events and unsubscribes
// from the underlying stream.
func (r *Router) Close() {
	close(r.done)
	r.stream.Close()
}
