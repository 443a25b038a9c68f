package ulink

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
)

// ErrDispatcherShutdownTimeout reports that queued invocations did not
// drain within the Close timeout.
var ErrDispatcherShutdownTimeout = errors.New("ulink: dispatcher shutdown timed out")

type dispatchTask struct {
	listener Listener
	msg      Message
}

// Dispatcher is the shared execution context that runs listener
// invocations off the sender's goroutine. One process-wide dispatcher is
// shared by all transports by default, instead of a private pool per
// transport instance; transports accept a custom one where isolation
// matters.
//
// Dispatch never drops a task: when the queue is full it falls back to a
// dedicated goroutine, so Send returns after handoff and every snapshot
// listener is eventually invoked.
type Dispatcher struct {
	tasks   chan dispatchTask
	workers int
	logger  *xlog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	taskWg sync.WaitGroup

	closed    atomic.Bool
	processed atomic.Uint64
	overflow  atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatch pool.
// workers: number of invocation goroutines (defaults to GOMAXPROCS).
// queueSize: capacity of the task queue (defaults to 1024).
func NewDispatcher(workers, queueSize int, logger *xlog.Logger) *Dispatcher {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if queueSize < 1 {
		queueSize = 1024
	}
	if logger == nil {
		logger = xlog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		tasks:   make(chan dispatchTask, queueSize),
		workers: workers,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch hands a listener invocation to the pool. It fails with
// CodeUnavailable once the dispatcher is closed.
func (d *Dispatcher) Dispatch(l Listener, msg Message) error {
	if l == nil {
		return Errorf(CodeInvalidArgument, "listener must not be nil")
	}
	if d.closed.Load() {
		return Errorf(CodeUnavailable, "dispatcher is closed")
	}

	t := dispatchTask{listener: l, msg: msg}
	d.taskWg.Add(1)

	select {
	case d.tasks <- t:
		return nil
	default:
	}

	// Queue full: a dedicated goroutine guarantees delivery without
	// blocking the sender.
	d.overflow.Add(1)
	go func() {
		defer d.taskWg.Done()
		d.run(t)
	}()
	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			// Drain remaining tasks before exiting.
			for {
				select {
				case t := <-d.tasks:
					d.run(t)
					d.taskWg.Done()
				default:
					return
				}
			}
		case t := <-d.tasks:
			d.run(t)
			d.taskWg.Done()
		}
	}
}

// run invokes a single listener, containing panics so one failing
// listener cannot affect the pool or other deliveries.
func (d *Dispatcher) run(t dispatchTask) {
	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			d.logger.Warn().
				Err(Errorf(CodeListenerFailure, "listener panic (recovered): %v", r)).
				Msg("ulink: listener invocation failed")
		}
	}()
	t.listener.OnReceive(t.msg)
	d.processed.Add(1)
}

// Close stops accepting work and waits up to timeout for queued
// invocations to drain.
func (d *Dispatcher) Close(timeout time.Duration) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.cancel()

	done := make(chan struct{})
	go func() {
		d.taskWg.Wait()
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrDispatcherShutdownTimeout
	}
}

// DispatcherStats is dispatch pool telemetry.
type DispatcherStats struct {
	Processed  uint64 // invocations completed without panic
	Failed     uint64 // invocations that panicked (contained)
	Overflow   uint64 // tasks run on fallback goroutines
	QueueDepth int
	QueueCap   int
	Workers    int
}

// Stats returns current pool statistics.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Processed:  d.processed.Load(),
		Failed:     d.failed.Load(),
		Overflow:   d.overflow.Load(),
		QueueDepth: len(d.tasks),
		QueueCap:   cap(d.tasks),
		Workers:    d.workers,
	}
}

var (
	defaultDispatcher     *Dispatcher
	defaultDispatcherOnce sync.Once
)

// DefaultDispatcher returns the process-wide shared dispatcher,
// initializing it on first use. It is never closed; transports that own
// a private pool close theirs instead.
func DefaultDispatcher() *Dispatcher {
	defaultDispatcherOnce.Do(func() {
		defaultDispatcher = NewDispatcher(0, 0, xlog.Default())
	})
	return defaultDispatcher
}
