package workpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/casualjim/perch/mpsc"
	"github.com/casualjim/perch/pkg/slogx"
	"github.com/fogfish/opts"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is returned by Submit once the pool is closed, and by a second
	// Close or Shutdown.
	ErrClosed = errors.New("workpool: pool closed")

	// ErrTaskPanic wraps the value recovered from a panicking task.
	ErrTaskPanic = errors.New("workpool: task panicked")

	errNoWorkers = errors.New("workpool: at least one worker is required")
)

// DefaultWorkers is the pool size when WithWorkers is not given.
const DefaultWorkers = 8

// Task is a unit of work. The context is cancelled when Shutdown gives up on
// waiting.
type Task func(context.Context) error

type config struct {
	workers  int
	strategy mpsc.Strategy
	logger   *slog.Logger
}

// Option configures a Pool.
type Option = opts.Option[config]

var (
	// WithStrategy sets the order pending tasks are picked up in. The default
	// is FIFO.
	WithStrategy = opts.ForName[config, mpsc.Strategy]("strategy")

	// WithLogger sets the logger for worker lifecycle and task failures.
	WithLogger = opts.ForName[config, *slog.Logger]("logger")
)

// WithWorkers sets the number of workers.
func WithWorkers(n int) Option {
	return opts.Type[config](func(c *config) error {
		if n < 1 {
			return errNoWorkers
		}
		c.workers = n
		return nil
	})
}

type job struct {
	task   Task
	future *Future
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Workers   int
	Pending   int   // submitted but not picked up
	Active    int32 // running right now
	Submitted int64
	Completed int64 // finished without error
	Failed    int64 // returned an error, panicked or were cancelled
	Closed    bool
}

// Pool is a fixed-size set of workers sharing one task queue.
type Pool struct {
	queue    *mpsc.Channel[job]
	producer mpsc.Producer[job]
	group    errgroup.Group
	workers  int

	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	active    atomic.Int32
}

// New starts a pool. It panics on invalid options.
func New(options ...Option) *Pool {
	cfg := config{workers: DefaultWorkers}
	if err := opts.Apply(&cfg, options); err != nil {
		panic(err)
	}

	logger := slogx.Named(cfg.logger, "workpool")
	queue := mpsc.New[job](mpsc.WithStrategy(cfg.strategy), mpsc.WithLogger(logger))
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		queue:    queue,
		producer: queue.Producer(),
		workers:  cfg.workers,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	for i := range cfg.workers {
		p.group.Go(func() error {
			p.work(i)
			return nil
		})
	}
	logger.Debug("pool started", slog.Int("workers", cfg.workers), slogx.Strategy(cfg.strategy))
	return p
}

// Submit queues task for execution.
func (p *Pool) Submit(task Task) (*Future, error) {
	if task == nil {
		return nil, errors.New("workpool: task must not be nil")
	}
	f := newFuture()
	if err := p.producer.Send(job{task: task, future: f}); err != nil {
		if errors.Is(err, mpsc.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	p.submitted.Add(1)
	return f, nil
}

// Go is Submit for callers that only look at the future. A closed pool yields
// a future that already failed with ErrClosed.
func (p *Pool) Go(task Task) *Future {
	f, err := p.Submit(task)
	if err != nil {
		return failedFuture(err)
	}
	return f
}

func (p *Pool) work(index int) {
	logger := p.logger.With(slogx.Worker(index))
	logger.Debug("worker started")
	for j := range p.queue.All(context.Background()) {
		p.run(logger, j)
	}
	logger.Debug("worker stopped")
}

func (p *Pool) run(logger *slog.Logger, j job) {
	p.active.Add(1)
	defer p.active.Add(-1)

	err := p.invoke(j.task)
	if err != nil {
		p.failed.Add(1)
		logger.Debug("task failed", slogx.Error(err))
	} else {
		p.completed.Add(1)
	}
	j.future.complete(err)
}

func (p *Pool) invoke(task Task) (err error) {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return task(p.ctx)
}

// Close stops accepting tasks and waits until the workers have run every
// task already submitted.
func (p *Pool) Close() error {
	if err := p.queue.Close(); err != nil {
		return ErrClosed
	}
	err := p.group.Wait()
	p.cancel()
	p.logger.Debug("pool closed", slog.Int64("completed", p.completed.Load()), slog.Int64("failed", p.failed.Load()))
	return err
}

// Shutdown is Close bounded by ctx. When ctx ends first, running tasks see
// their context cancelled, tasks still queued fail with context.Canceled, and
// Shutdown returns ctx's error once the workers have exited.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		return ErrClosed
	}
	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		p.cancel()
		return err
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "shutdown deadline reached, cancelling tasks", slog.Int("pending", p.queue.Len()))
		p.cancel()
		<-done
		return ctx.Err()
	}
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Pending:   p.queue.Len(),
		Active:    p.active.Load(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Closed:    p.queue.Closed(),
	}
}
