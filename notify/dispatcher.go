package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// ErrDispatcherClosed is returned by Publish after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Sink consumes task events.
type Sink interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// Config sizes the dispatcher worker pool.
type Config struct {
	Workers        int
	Buffer         int
	HandoffTimeout time.Duration
	HandleTimeout  time.Duration
}

// DefaultConfig mirrors the EVENT_* environment defaults.
var DefaultConfig = Config{
	Workers:        4,
	Buffer:         256,
	HandoffTimeout: 15 * time.Millisecond,
	HandleTimeout:  30 * time.Second,
}

// Dispatcher fans events out to sinks on a pool of workers. When the buffer
// stays full past the handoff timeout the event is delivered inline on the
// caller's goroutine.
type Dispatcher struct {
	cfg   Config
	sinks []Sink
	log   *log.Logger

	jobs      chan domain.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, logger *log.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		panic("Logger is not initialized")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig.Workers
	}
	if cfg.Buffer < 0 {
		cfg.Buffer = 0
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = DefaultConfig.HandleTimeout
	}
	d := &Dispatcher{cfg: cfg, sinks: sinks, log: logger, jobs: make(chan domain.Event, cfg.Buffer)}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	logger.Infof("event dispatcher started, workers: %d, buffer: %d, handoff: %v", cfg.Workers, cfg.Buffer, cfg.HandoffTimeout)
	return d
}

// Publish hands ev to the pool. It implements store.Publisher.
func (d *Dispatcher) Publish(ctx context.Context, ev domain.Event) error {
	if ok, closed := trySendNonBlocking(d.jobs, ev); closed {
		return ErrDispatcherClosed
	} else if ok {
		return nil
	}

	if d.cfg.HandoffTimeout > 0 {
		timer := time.NewTimer(d.cfg.HandoffTimeout)
		defer timer.Stop()
		ok, closed := sendWithTimer(d.jobs, ev, timer.C)
		if closed {
			return ErrDispatcherClosed
		}
		if ok {
			return nil
		}
	}

	d.log.Warn("event buffer saturated; delivering inline")
	d.deliver(ctx, ev, -1)
	return nil
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for ev := range d.jobs {
		d.deliver(context.Background(), ev, id)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev domain.Event, worker int) {
	for _, s := range d.sinks {
		hctx, cancel := context.WithTimeout(ctx, d.cfg.HandleTimeout)
		err := s.Handle(hctx, ev)
		cancel()
		if err != nil {
			d.log.WithFields(log.Fields{
				"event":  ev.ID,
				"type":   ev.Type,
				"task":   ev.EntityID,
				"worker": worker,
			}).WithError(err).Error("event delivery failed")
		}
	}
}

func trySendNonBlocking(ch chan domain.Event, ev domain.Event) (ok bool, closed bool) {
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

func sendWithTimer(ch chan domain.Event, ev domain.Event, timer <-chan time.Time) (ok bool, closed bool) {
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
