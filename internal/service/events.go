package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guttosm/trip-planner/internal/domain/model"
	"github.com/guttosm/trip-planner/internal/logger"
	"github.com/guttosm/trip-planner/internal/metrics"
	"github.com/guttosm/trip-planner/internal/repository"
)

// EventSink delivers a batch of allocation events somewhere durable.
type EventSink interface {
	Name() string
	Publish(ctx context.Context, events []model.AllocationEvent) error
}

// EventEmitter accepts events of committed allocation changes. Emit never
// blocks; it reports false when the events were dropped.
type EventEmitter interface {
	Emit(events ...model.AllocationEvent) bool
}

type noopEmitter struct{}

func (noopEmitter) Emit(...model.AllocationEvent) bool { return true }

// EventRecorderConfig holds configuration for the event recorder.
type EventRecorderConfig struct {
	// BufferSize is the number of batches that may wait for a worker.
	BufferSize int
	// NumWorkers is the number of goroutines delivering batches.
	NumWorkers int
	// WriteTimeout bounds one delivery to one sink.
	WriteTimeout time.Duration
}

// DefaultEventRecorderConfig returns sensible defaults for the event recorder.
func DefaultEventRecorderConfig() EventRecorderConfig {
	return EventRecorderConfig{
		BufferSize:   1000,
		NumWorkers:   2,
		WriteTimeout: 5 * time.Second,
	}
}

// EventStats counts batches handled by an EventRecorder.
type EventStats struct {
	Enqueued int64
	Dropped  int64
	Written  int64
	Errors   int64
}

// EventRecorder fans allocation events out to sinks through a bounded worker
// pool. When the buffer is full, events are dropped and counted rather than
// slowing down the allocation path.
type EventRecorder struct {
	sinks        []EventSink
	batchCh      chan []model.AllocationEvent
	wg           sync.WaitGroup
	stopCh       chan struct{}
	stopOnce     sync.Once
	stopped      atomic.Bool
	writeTimeout time.Duration
	now          func() time.Time

	enqueued int64
	dropped  int64
	written  int64
	errors   int64
}

// NewEventRecorder creates a recorder and starts its workers.
func NewEventRecorder(cfg EventRecorderConfig, sinks ...EventSink) *EventRecorder {
	def := DefaultEventRecorderConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}

	r := &EventRecorder{
		sinks:        sinks,
		batchCh:      make(chan []model.AllocationEvent, cfg.BufferSize),
		stopCh:       make(chan struct{}),
		writeTimeout: cfg.WriteTimeout,
		now:          time.Now,
	}

	for i := 0; i < cfg.NumWorkers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

func (r *EventRecorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case batch := <-r.batchCh:
			r.deliver(batch)
		case <-r.stopCh:
			// Drain what is left before stopping.
			for {
				select {
				case batch := <-r.batchCh:
					r.deliver(batch)
				default:
					return
				}
			}
		}
	}
}

func (r *EventRecorder) deliver(batch []model.AllocationEvent) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		err := sink.Publish(ctx, batch)
		cancel()

		if err != nil {
			atomic.AddInt64(&r.errors, 1)
			metrics.RecordEvent(sink.Name(), "error", len(batch))
			log := logger.Component("events")
			log.Warn().Err(err).
				Str("sink", sink.Name()).
				Int("events", len(batch)).
				Msg("Failed to deliver allocation events")
			continue
		}
		atomic.AddInt64(&r.written, 1)
		metrics.RecordEvent(sink.Name(), "written", len(batch))
	}
}

// Emit stamps missing ids and timestamps and enqueues the events as one
// batch. It returns false if the buffer is full or the recorder stopped.
func (r *EventRecorder) Emit(events ...model.AllocationEvent) bool {
	if len(events) == 0 {
		return true
	}
	if r.stopped.Load() {
		atomic.AddInt64(&r.dropped, 1)
		metrics.RecordEvent("recorder", "dropped", len(events))
		return false
	}

	batch := make([]model.AllocationEvent, len(events))
	copy(batch, events)
	now := r.now().UTC()
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.NewString()
		}
		if batch[i].OccurredAt.IsZero() {
			batch[i].OccurredAt = now
		}
	}

	select {
	case r.batchCh <- batch:
		atomic.AddInt64(&r.enqueued, 1)
		return true
	default:
		atomic.AddInt64(&r.dropped, 1)
		metrics.RecordEvent("recorder", "dropped", len(batch))
		return false
	}
}

// Stop waits for queued batches to be delivered. Later calls to Emit drop.
func (r *EventRecorder) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		close(r.stopCh)
		r.wg.Wait()
	})
}

// Stats returns current recorder statistics.
func (r *EventRecorder) Stats() EventStats {
	return EventStats{
		Enqueued: atomic.LoadInt64(&r.enqueued),
		Dropped:  atomic.LoadInt64(&r.dropped),
		Written:  atomic.LoadInt64(&r.written),
		Errors:   atomic.LoadInt64(&r.errors),
	}
}

// RepositoryEventSink stores events in the allocation_events collection.
type RepositoryEventSink struct {
	repo repository.EventRepository
}

// NewRepositoryEventSink creates a sink over the event repository.
func NewRepositoryEventSink(repo repository.EventRepository) *RepositoryEventSink {
	return &RepositoryEventSink{repo: repo}
}

func (s *RepositoryEventSink) Name() string { return "mongo" }

func (s *RepositoryEventSink) Publish(ctx context.Context, events []model.AllocationEvent) error {
	return s.repo.CreateMany(ctx, events)
}
