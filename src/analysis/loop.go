package analysis

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"dental-intake-ocr/src/worker"
)

const (
	DefaultInitialDelay = 10 * time.Second
	DefaultInterval     = 60 * time.Second

	busyRetry = time.Second
)

// ErrLoopClosed is returned by commands issued after Run has returned.
var ErrLoopClosed = errors.New("analysis loop is not running")

var (
	tracer = otel.Tracer("dental-intake-ocr/analysis")
	meter  = otel.Meter("dental-intake-ocr/analysis")
)

// Options configures a Loop. Task is required.
type Options struct {
	Task                 worker.Task
	Pool                 *worker.Pool
	InitialDelay         time.Duration
	Interval             time.Duration
	ResetFirstRunOnStart bool
	// CycleDeadline bounds a single cycle; zero means no local deadline.
	CycleDeadline time.Duration

	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

type commandKind int

const (
	cmdToggle commandKind = iota
	cmdStart
	cmdStop
	cmdSnapshot
)

type command struct {
	kind  commandKind
	reply chan Snapshot
}

type result struct {
	activationID string
	text         string
	err          error
}

// Loop is the single-goroutine coordinator for the capture/analysis cycle.
type Loop struct {
	opts     Options
	pool     *worker.Pool
	ownsPool bool

	commands chan command
	results  chan result
	done     chan struct{}
	started  atomic.Bool

	mu        sync.Mutex
	observers []func(Snapshot)
	last      atomic.Pointer[Snapshot]

	// Owned by the Run goroutine.
	state       State
	due         <-chan time.Time
	inFlight    bool
	cycleCancel context.CancelFunc

	cycles   metric.Int64Counter
	failures metric.Int64Counter
}

// New creates a loop with FirstRun=true. Call Run to start processing commands.
func New(opts Options) *Loop {
	if opts.InitialDelay < 0 {
		opts.InitialDelay = 0
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = time.After
	}

	l := &Loop{
		opts:     opts,
		pool:     opts.Pool,
		commands: make(chan command),
		results:  make(chan result, 1),
		done:     make(chan struct{}),
		state:    State{FirstRun: true},
	}
	if l.pool == nil {
		l.pool = worker.New(1)
		l.ownsPool = true
	}

	var err error
	if l.cycles, err = meter.Int64Counter("analysis.cycles", metric.WithDescription("Completed capture cycles")); err != nil {
		log.Printf("analysis: cycles counter: %v", err)
	}
	if l.failures, err = meter.Int64Counter("analysis.failures", metric.WithDescription("Capture cycles that stopped the loop")); err != nil {
		log.Printf("analysis: failures counter: %v", err)
	}

	l.publish()
	return l
}

// OnChange registers fn to be called after every state change. fn runs on the
// loop goroutine and must not issue commands back into the loop synchronously.
func (l *Loop) OnChange(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.observers = append(l.observers, fn)
	l.mu.Unlock()
}

// Run processes commands, timers and cycle results until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("analysis loop already running")
	}
	defer func() {
		l.cancelCycle()
		close(l.done)
		if l.ownsPool {
			l.pool.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-l.commands:
			l.handleCommand(ctx, cmd)
		case <-l.due:
			l.due = nil
			l.startCycle(ctx)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

// Toggle flips Running exactly once and returns the resulting snapshot.
func (l *Loop) Toggle(ctx context.Context) (Snapshot, error) { return l.send(ctx, cmdToggle) }

// Start activates the loop; it is a no-op when already running.
func (l *Loop) Start(ctx context.Context) (Snapshot, error) { return l.send(ctx, cmdStart) }

// Stop deactivates the loop, cancelling any pending capture.
func (l *Loop) Stop(ctx context.Context) (Snapshot, error) { return l.send(ctx, cmdStop) }

// Snapshot returns the current state. After Run returns it reports the final state.
func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	snap, err := l.send(ctx, cmdSnapshot)
	if errors.Is(err, ErrLoopClosed) {
		return *l.last.Load(), nil
	}
	return snap, err
}

func (l *Loop) send(ctx context.Context, kind commandKind) (Snapshot, error) {
	cmd := command{kind: kind, reply: make(chan Snapshot, 1)}
	select {
	case l.commands <- cmd:
	case <-l.done:
		return Snapshot{}, ErrLoopClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	select {
	case snap := <-cmd.reply:
		return snap, nil
	case <-l.done:
		return Snapshot{}, ErrLoopClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (l *Loop) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdToggle:
		if l.state.Running {
			l.stop()
		} else {
			l.start()
		}
	case cmdStart:
		if !l.state.Running {
			l.start()
		}
	case cmdStop:
		if l.state.Running {
			l.stop()
		}
	}
	cmd.reply <- l.state.snapshot()
}

func (l *Loop) start() {
	delay := time.Duration(0)
	if l.state.FirstRun || l.opts.ResetFirstRunOnStart {
		delay = l.opts.InitialDelay
	}

	l.state.Running = true
	l.state.ActivationID = uuid.NewString()
	l.state.Status = StatusStarted
	l.state.LastError = ""
	log.Printf("analysis: started activation %s, first capture in %s", l.state.ActivationID, delay)

	l.schedule(delay)
	l.publish()
}

func (l *Loop) stop() {
	l.state.Running = false
	l.state.Status = StatusStopped
	l.state.NextCaptureAt = time.Time{}
	l.due = nil
	l.cancelCycle()
	log.Printf("analysis: stopped activation %s", l.state.ActivationID)
	l.publish()
}

func (l *Loop) fault(err error) {
	l.state.Running = false
	l.state.LastError = err.Error()
	l.state.Status = statusFault + err.Error()
	l.state.NextCaptureAt = time.Time{}
	l.due = nil
	l.cancelCycle()
	log.Printf("analysis: cycle failed, stopping: %v", err)
	if l.failures != nil {
		l.failures.Add(context.Background(), 1)
	}
	l.publish()
}

func (l *Loop) schedule(d time.Duration) {
	l.state.NextCaptureAt = l.opts.Now().Add(d)
	l.due = l.opts.After(d)
}

func (l *Loop) cancelCycle() {
	if l.cycleCancel != nil {
		l.cycleCancel()
		l.cycleCancel = nil
	}
	l.inFlight = false
}

func (l *Loop) startCycle(ctx context.Context) {
	if !l.state.Running || l.inFlight {
		return
	}

	var cycleCtx context.Context
	var cancel context.CancelFunc
	if l.opts.CycleDeadline > 0 {
		cycleCtx, cancel = context.WithTimeout(ctx, l.opts.CycleDeadline)
	} else {
		cycleCtx, cancel = context.WithCancel(ctx)
	}

	activation := l.state.ActivationID
	task := l.tracedTask(activation)
	submitted := l.pool.Submit(cycleCtx, task, func(text string, err error) {
		select {
		case l.results <- result{activationID: activation, text: text, err: err}:
		case <-l.done:
		}
	})
	if !submitted {
		cancel()
		log.Printf("analysis: worker busy, retrying in %s", busyRetry)
		l.schedule(busyRetry)
		l.publish()
		return
	}

	l.cycleCancel = cancel
	l.inFlight = true
	l.state.FirstRun = false
	l.state.LastCaptureAt = l.opts.Now()
	l.state.NextCaptureAt = time.Time{}
	l.publish()
}

func (l *Loop) tracedTask(activation string) worker.Task {
	run := l.opts.Task
	return func(ctx context.Context) (string, error) {
		ctx, span := tracer.Start(ctx, "analysis.cycle",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attribute.String("analysis.activation_id", activation)))
		defer span.End()
		if run == nil {
			err := errors.New("no capture task configured")
			span.SetStatus(codes.Error, err.Error())
			return "", err
		}
		text, err := run(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return text, err
	}
}

func (l *Loop) handleResult(res result) {
	if !l.state.Running || res.activationID != l.state.ActivationID {
		log.Printf("analysis: discarding result from stale activation %s", res.activationID)
		return
	}
	if l.cycleCancel != nil {
		l.cycleCancel()
		l.cycleCancel = nil
	}
	l.inFlight = false

	if res.err != nil {
		l.fault(res.err)
		return
	}

	l.state.Results = res.text
	l.state.Cycles++
	if l.cycles != nil {
		l.cycles.Add(context.Background(), 1)
	}
	log.Printf("analysis: cycle %d complete, %d bytes of results", l.state.Cycles, len(res.text))
	l.schedule(l.opts.Interval)
	l.publish()
}

func (l *Loop) publish() {
	snap := l.state.snapshot()
	l.last.Store(&snap)

	l.mu.Lock()
	observers := append([]func(Snapshot){}, l.observers...)
	l.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
