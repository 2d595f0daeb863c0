package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/battsim/core/logger"
	"github.com/kilianp07/battsim/core/model"
	"github.com/kilianp07/battsim/core/session"
)

// DefaultQueueSize is the event buffer used when none is configured.
const DefaultQueueSize = 64

// AsyncRecorder persists session snapshots off the simulation loop. Events
// are queued without blocking and dropped when the queue is full.
type AsyncRecorder struct {
	store   session.Store
	log     logger.Logger
	queue   chan model.SessionEvent
	timeout time.Duration

	dropped atomic.Int64
	saved   atomic.Int64
	once    sync.Once
	done    chan struct{}
}

// NewAsyncRecorder creates a recorder writing to st. A non-positive size
// selects DefaultQueueSize.
func NewAsyncRecorder(st session.Store, size int, log logger.Logger) *AsyncRecorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &AsyncRecorder{
		store:   st,
		log:     logger.OrNop(log),
		queue:   make(chan model.SessionEvent, size),
		timeout: 5 * time.Second,
		done:    make(chan struct{}),
	}
}

// RecordSessionEvent queues ev for persistence.
func (r *AsyncRecorder) RecordSessionEvent(ev model.SessionEvent) {
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		r.log.Warnf("session queue full, dropping %s event for %s", ev.Kind, ev.Session.ID)
	}
}

// Run saves queued events until ctx is cancelled, then drains what is left.
func (r *AsyncRecorder) Run(ctx context.Context) {
	defer r.once.Do(func() { close(r.done) })
	for {
		select {
		case ev := <-r.queue:
			r.save(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-r.queue:
					r.save(ev)
				default:
					return
				}
			}
		}
	}
}

// Done is closed when Run returns.
func (r *AsyncRecorder) Done() <-chan struct{} { return r.done }

// Dropped returns the number of events lost to a full queue.
func (r *AsyncRecorder) Dropped() int64 { return r.dropped.Load() }

// Saved returns the number of snapshots written.
func (r *AsyncRecorder) Saved() int64 { return r.saved.Load() }

func (r *AsyncRecorder) save(ev model.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Save(ctx, ev.Session); err != nil {
		r.log.Errorf("save session %s: %v", ev.Session.ID, err)
		return
	}
	r.saved.Add(1)
}

// SyncRecorder writes every event to the store on the caller's goroutine.
// It suits headless runs where ticks are not paced by a wall clock.
type SyncRecorder struct {
	store session.Store
	log   logger.Logger
	saved int64
}

// NewSyncRecorder creates a recorder writing to st.
func NewSyncRecorder(st session.Store, log logger.Logger) *SyncRecorder {
	return &SyncRecorder{store: st, log: logger.OrNop(log)}
}

// RecordSessionEvent saves ev.Session. Errors are logged.
func (r *SyncRecorder) RecordSessionEvent(ev model.SessionEvent) {
	if err := r.store.Save(context.Background(), ev.Session); err != nil {
		r.log.Errorf("save session %s: %v", ev.Session.ID, err)
		return
	}
	r.saved++
}

// Saved returns the number of snapshots written.
func (r *SyncRecorder) Saved() int64 { return r.saved }
