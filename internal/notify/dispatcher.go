package notify

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"storefront/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DispatcherConfig controls the worker pool and the retry policy.
type DispatcherConfig struct {
	Workers        int
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

func (c *DispatcherConfig) applyDefaults() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
}

// Dispatcher fans events out to every registered sink through a Queue and delivers them
// on a pool of workers.
type Dispatcher struct {
	queue  Queue
	cfg    DispatcherConfig
	logger zerolog.Logger

	mu     sync.RWMutex
	sinks  map[string]Sink
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Sinks are added with Register before Start.
func NewDispatcher(queue Queue, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		queue:  queue,
		cfg:    cfg,
		logger: logger.With().Str("component", "notify-dispatcher").Logger(),
		sinks:  make(map[string]Sink),
	}
}

// Register adds sink under name. Retries are tracked per sink.
func (d *Dispatcher) Register(name string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks[name] = sink
}

// Sinks returns the registered sink names in order.
func (d *Dispatcher) Sinks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.sinks))
	for name := range d.sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches the workers. They run until Stop is called or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	d.logger.Info().
		Int("workers", d.cfg.Workers).
		Int("max_attempts", d.cfg.MaxAttempts).
		Strs("sinks", d.Sinks()).
		Msg("notification dispatcher started")

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(ctx, i)
	}
}

// Stop signals the workers and waits for in-flight deliveries to finish or ctx to expire.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info().Msg("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch schedules event for every sink. It never fails the caller: enqueue errors are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, order *model.Order) {
	// The request may finish before the enqueue does.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	now := time.Now()
	for _, name := range d.Sinks() {
		task := Task{
			ID:        uuid.NewString(),
			Sink:      name,
			Event:     event,
			Order:     *order,
			NotBefore: now,
		}
		if err := d.queue.Push(ctx, task); err != nil {
			d.logger.Error().
				Err(err).
				Str("sink", name).
				Str("event", string(event)).
				Str("order_id", order.ID.String()).
				Msg("failed to enqueue notification")
		}
	}
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	defer d.wg.Done()

	logger := d.logger.With().Int("worker", id).Logger()
	for {
		task, err := d.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			logger.Error().Err(err).Msg("failed to dequeue notification")
			continue
		}

		d.process(ctx, task, logger)
	}
}

func (d *Dispatcher) process(ctx context.Context, task Task, logger zerolog.Logger) {
	d.mu.RLock()
	sink, ok := d.sinks[task.Sink]
	d.mu.RUnlock()
	if !ok {
		logger.Warn().Str("sink", task.Sink).Str("task_id", task.ID).Msg("dropping notification for unknown sink")
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	err := Deliver(attemptCtx, sink, task.Event, &task.Order)
	cancel()

	task.Attempt++
	if err == nil {
		logger.Debug().
			Str("sink", task.Sink).
			Str("event", string(task.Event)).
			Str("order_number", task.Order.OrderNumber).
			Int("attempt", task.Attempt).
			Msg("notification delivered")
		return
	}

	failure := logger.Warn().
		Err(err).
		Str("sink", task.Sink).
		Str("event", string(task.Event)).
		Str("order_number", task.Order.OrderNumber).
		Int("attempt", task.Attempt)

	if errors.Is(err, ErrUnknownEvent) || task.Attempt >= d.cfg.MaxAttempts {
		failure.Msg("notification dropped")
		return
	}

	delay := d.Backoff(task.Attempt)
	task.NotBefore = time.Now().Add(delay)
	failure.Dur("retry_in", delay).Msg("notification failed, retrying")

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := d.queue.Push(pushCtx, task); err != nil {
		logger.Error().Err(err).Str("task_id", task.ID).Msg("failed to reschedule notification")
	}
}

// Backoff returns the delay before retry number attempt: BaseBackoff doubled per
// previous attempt, capped at MaxBackoff.
func (d *Dispatcher) Backoff(attempt int) time.Duration {
	delay := d.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}
