package domain

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Kind distinguishes dedicated background lanes from the UI lane.
type Kind int

const (
	// Background domains run their loop on a goroutine of their own.
	Background Kind = iota + 1
	// UI is the single designated lane driven by the application's main
	// loop through Run.
	UI
)

func (k Kind) String() string {
	switch k {
	case Background:
		return "background"
	case UI:
		return "ui"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Task is a unit of work executed on a domain. The ctx it receives marks
// the domain as held, so nested Do calls back into it run inline.
type Task func(ctx context.Context) error

// Domain is a serial execution lane: a FIFO task queue with exactly one
// consumer. Everything submitted to a domain runs in submission order and
// never concurrently with anything else on that domain.
type Domain struct {
	name    string
	kind    Kind
	queue   *taskQueue
	running atomic.Bool
	done    chan struct{}
	ran     atomic.Uint64
	logger  *slog.Logger
}

// New creates a domain. Nothing runs until Start or Run is called.
func New(name string, kind Kind) *Domain {
	return &Domain{
		name:   name,
		kind:   kind,
		queue:  newTaskQueue(),
		done:   make(chan struct{}),
		logger: slog.Default().With("component", "domain", "domain", name),
	}
}

// NewStarted creates a background domain and starts its loop.
func NewStarted(name string) *Domain {
	d := New(name, Background)
	_ = d.Start()
	return d
}

// Name returns the domain name.
func (d *Domain) Name() string { return d.name }

// Kind returns the domain kind.
func (d *Domain) Kind() Kind { return d.kind }

// Start runs the loop on a new goroutine.
func (d *Domain) Start() error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	go d.loop(context.Background())
	return nil
}

// Run drives the loop on the calling goroutine until the domain is closed
// and drained. If ctx is cancelled the domain is closed; queued tasks still
// run before Run returns ctx.Err().
func (d *Domain) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	return d.loop(ctx)
}

func (d *Domain) loop(ctx context.Context) error {
	defer close(d.done)
	d.logger.Debug("domain loop started", "kind", d.kind)

	stop := ctx.Done()
	var cause error
	for {
		if j, ok := d.queue.TryDequeue(); ok {
			d.execute(j)
			continue
		}

		select {
		case <-stop:
			cause = ctx.Err()
			stop = nil
			d.queue.Close()
		case <-d.queue.Wait():
			if d.queue.Drained() {
				d.logger.Debug("domain loop stopped", "tasks", d.ran.Load())
				return cause
			}
		}
	}
}

func (d *Domain) execute(j job) {
	err := d.invoke(j.ctx, j.task)
	d.ran.Add(1)
	if j.done != nil {
		j.done <- err
		return
	}
	if err != nil {
		d.logger.Warn("submitted task failed", "error", err)
	}
}

// invoke runs task and converts a panic into ErrTaskPanicked.
func (d *Domain) invoke(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("task panicked", "panic", r)
			err = fmt.Errorf("%w on %s: %v", ErrTaskPanicked, d.name, r)
		}
	}()
	return task(ctx)
}

// Submit enqueues task without waiting for it. The task runs even if ctx
// is cancelled before it is dequeued.
func (d *Domain) Submit(ctx context.Context, task Task) error {
	if !d.queue.Enqueue(job{ctx: detached(ctx, d), task: task}) {
		return ErrClosed
	}
	return nil
}

// Do runs task on the domain and blocks until it returns, reporting its
// error. When ctx already holds the domain the task runs inline on the
// calling goroutine.
//
// Do does not give up when ctx is cancelled: scheduled work always runs
// to completion, and the caller always observes the result.
func (d *Domain) Do(ctx context.Context, task Task) error {
	if Holds(ctx, d) {
		return d.invoke(ctx, task)
	}
	done := make(chan error, 1)
	if !d.queue.Enqueue(job{ctx: withHeld(ctx, d), task: task, done: done}) {
		return ErrClosed
	}
	return <-done
}

// Close stops accepting new work. Tasks already queued still run.
func (d *Domain) Close() {
	d.queue.Close()
}

// Done is closed once the loop has drained and exited.
func (d *Domain) Done() <-chan struct{} {
	return d.done
}

// Pending returns the number of queued tasks.
func (d *Domain) Pending() int {
	return d.queue.Len()
}

// Executed returns how many tasks the loop has run.
func (d *Domain) Executed() uint64 {
	return d.ran.Load()
}
