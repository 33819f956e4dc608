package accesslog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/sentinel-core/internal/infrastructure/logging"
)

// DefaultQueueSize is the capacity of the Recorder's pending-entry channel.
const DefaultQueueSize = 256

// writeTimeout bounds a single store write from the drain goroutine.
const writeTimeout = 5 * time.Second

// Sink receives every entry after it has been persisted.
// Publish must not block for long; slow sinks delay the drain loop.
type Sink interface {
	PublishAccess(ctx context.Context, e Entry)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e Entry)

// PublishAccess calls f(ctx, e).
func (f SinkFunc) PublishAccess(ctx context.Context, e Entry) { f(ctx, e) }

// Recorder persists entries asynchronously and fans them out to sinks.
//
// Thread Safety:
//   - Record is safe for concurrent use and never blocks.
//   - Start must be called once; Close is idempotent.
type Recorder struct {
	repo    Repository
	logger  *logging.Logger
	sinks   []Sink
	queue   chan Entry
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder creates a Recorder with a queue of the given size.
// A non-positive size uses DefaultQueueSize. Nil sinks are skipped.
func NewRecorder(repo Repository, logger *logging.Logger, size int, sinks ...Sink) *Recorder {
	if size <= 0 {
		size = DefaultQueueSize
	}
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Recorder{
		repo:   repo,
		logger: logger.With("component", "accesslog"),
		sinks:  active,
		queue:  make(chan Entry, size),
		done:   make(chan struct{}),
	}
}

// Start launches the drain goroutine. Sinks receive ctx, so cancelling it
// aborts in-flight publishes; queued entries are still written until Close.
func (r *Recorder) Start(ctx context.Context) {
	go r.drain(ctx)
}

// Record enqueues an entry. It returns false when the entry was dropped
// because the queue is full or the Recorder is closed.
func (r *Recorder) Record(e Entry) bool {
	if e.AccessTime.IsZero() {
		e.AccessTime = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}

	select {
	case r.queue <- e:
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warn("access log queue full, entry dropped",
			"area", e.Area,
			"status", string(e.Status),
		)
		return false
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting entries and waits for the queue to drain.
// Close must not be called before Start.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
}

func (r *Recorder) drain(ctx context.Context) {
	defer close(r.done)

	for e := range r.queue {
		r.write(ctx, e)
	}
}

func (r *Recorder) write(ctx context.Context, e Entry) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.repo.Create(writeCtx, &e); err != nil {
		r.logger.Error("writing access log",
			"area", e.Area,
			"status", string(e.Status),
			"error", err,
		)
		return
	}

	for _, s := range r.sinks {
		s.PublishAccess(ctx, e)
	}
}
