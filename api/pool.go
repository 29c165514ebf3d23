package api

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

const (
	maxEventBatch        = 16
	minEventWorkers      = 4
	eventWorkersPerCPU   = 4
	maxEventWorkers      = 64
	eventBufferPerWorker = 64
)

// EventSenderConfig tunes the asynchronous event sender.
type EventSenderConfig struct {
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
	SendTimeout    time.Duration
	RetryInitial   time.Duration
	RetryMax       time.Duration
	MaxAttempts    int
}

// eventWorkerDefaults scales the worker count with the CPU count and sizes
// the buffer from it.
func eventWorkerDefaults(cpu int) (workers, buffer int) {
	workers = cpu * eventWorkersPerCPU
	if workers < minEventWorkers {
		workers = minEventWorkers
	}
	if workers > maxEventWorkers {
		workers = maxEventWorkers
	}
	return workers, workers * eventBufferPerWorker
}

func (c *EventSenderConfig) setDefaults() {
	workers, buffer := eventWorkerDefaults(runtime.NumCPU())
	if c.Workers <= 0 {
		c.Workers = workers
	}
	if c.Buffer <= 0 {
		c.Buffer = buffer
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = 250 * time.Millisecond
	}
	if c.RetryMax < c.RetryInitial {
		c.RetryMax = c.RetryInitial
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
}

// EventSender publishes todo events from a bounded worker pool so request
// handlers never wait on the queue. Events that cannot be handed off or
// delivered are dropped with an error log.
type EventSender struct {
	store  EventStore
	cfg    EventSenderConfig
	logger *log.Logger

	jobs      chan domain.TodoEvent
	workerWG  sync.WaitGroup
	closeOnce sync.Once
	sleep     func(time.Duration)
}

// NewEventSender starts the workers. Call Close to drain and stop them.
func NewEventSender(store EventStore, cfg EventSenderConfig, logger *log.Logger) *EventSender {
	if logger == nil {
		panic("Logger is not initialized")
	}
	cfg.setDefaults()
	s := &EventSender{
		store:  store,
		cfg:    cfg,
		logger: logger,
		jobs:   make(chan domain.TodoEvent, cfg.Buffer),
		sleep:  time.Sleep,
	}
	for i := 0; i < cfg.Workers; i++ {
		s.workerWG.Add(1)
		go s.worker(i)
	}
	logger.Infof("event sender started, workers: %d, buffer: %d, handoff: %v, attempts: %d", cfg.Workers, cfg.Buffer, cfg.HandoffTimeout, cfg.MaxAttempts)
	return s
}

// Publish hands the event to a worker, waiting at most the handoff timeout.
func (s *EventSender) Publish(ev domain.TodoEvent) {
	if !s.tryEnqueue(ev) {
		s.logger.WithFields(log.Fields{"event": ev.ID, "type": ev.Type, "todo": ev.TodoID}).Error("event buffer saturated; dropping event")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (s *EventSender) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
		s.workerWG.Wait()
	})
}

func (s *EventSender) worker(id int) {
	defer s.workerWG.Done()
	for ev := range s.jobs {
		batch := []domain.TodoEvent{ev}
	drain:
		for len(batch) < maxEventBatch {
			select {
			case next, ok := <-s.jobs:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		s.deliver(id, batch)
	}
}

// deliver retries a batch with capped exponential backoff and jitter.
func (s *EventSender) deliver(worker int, batch []domain.TodoEvent) {
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SendTimeout)
		err := s.store.PublishEvents(ctx, batch)
		cancel()
		if err == nil {
			return
		}
		if attempt >= s.cfg.MaxAttempts {
			s.logger.WithError(err).WithFields(log.Fields{
				"worker":   worker,
				"count":    len(batch),
				"attempts": attempt,
			}).Error("event publish failed; dropping events")
			return
		}
		s.logger.WithError(err).WithField("attempt", attempt).Warn("event publish failed; retrying")
		s.sleep(backoff(attempt, s.cfg.RetryInitial, s.cfg.RetryMax))
	}
}

// backoff returns the wait before retry n (1-based): initial doubled per
// attempt and capped at limit, with 20% jitter either way.
func backoff(attempt int, initial, limit time.Duration) time.Duration {
	if attempt <= 0 {
		return initial
	}
	d := float64(initial) * math.Pow(2, float64(attempt-1))
	if d > float64(limit) {
		d = float64(limit)
	}
	jitter := 0.2 * d
	return time.Duration(d + (rand.Float64()-0.5)*2*jitter)
}

func (s *EventSender) tryEnqueue(ev domain.TodoEvent) bool {
	if ok, closed := trySendNonBlocking(s.jobs, ev); closed {
		return false
	} else if ok {
		return true
	}

	if s.cfg.HandoffTimeout <= 0 {
		return false
	}

	timer := time.NewTimer(s.cfg.HandoffTimeout)
	defer timer.Stop()

	ok, closed := sendWithTimer(s.jobs, ev, timer.C)
	if closed {
		return false
	}
	return ok
}

func trySendNonBlocking(ch chan domain.TodoEvent, ev domain.TodoEvent) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	default:
		return false, false
	}
}

func sendWithTimer(ch chan domain.TodoEvent, ev domain.TodoEvent, timer <-chan time.Time) (ok bool, closed bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			closed = true
		}
	}()

	select {
	case ch <- ev:
		return true, false
	case <-timer:
		return false, false
	}
}
