package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apply-app/apply-api/internal/logging"
)

// Handler executes one attempt of a run. The returned value is stored as the
// run's output on success.
type Handler func(ctx context.Context, rc *RunContext) (any, error)

// Options configures a Runtime.
type Options struct {
	Concurrency int           // workers started by Start
	MaxAttempts int           // default attempts per run
	MaxDuration time.Duration // limit of one attempt
	BackoffBase time.Duration // delay before the first retry
	BackoffMax  time.Duration // cap on the retry delay
	DequeueWait time.Duration // how long a worker blocks on an empty queue
	CancelPoll  time.Duration // how often an executing run checks for cancellation
	CrashGrace  time.Duration // added to MaxDuration before a run counts as crashed
}

// DefaultOptions returns the runtime defaults.
func DefaultOptions() Options {
	return Options{
		Concurrency: 4,
		MaxAttempts: 3,
		MaxDuration: 300 * time.Second,
		BackoffBase: time.Second,
		BackoffMax:  30 * time.Second,
		DequeueWait: 5 * time.Second,
		CancelPoll:  2 * time.Second,
		CrashGrace:  time.Minute,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = d.MaxAttempts
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = d.MaxDuration
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = d.BackoffBase
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = d.BackoffMax
	}
	if o.DequeueWait <= 0 {
		o.DequeueWait = d.DequeueWait
	}
	if o.CancelPoll <= 0 {
		o.CancelPoll = d.CancelPoll
	}
	if o.CrashGrace <= 0 {
		o.CrashGrace = d.CrashGrace
	}
	return o
}

// TriggerOptions are per-run settings.
type TriggerOptions struct {
	Tags        []string
	MaxAttempts int // zero uses the runtime default
}

// Runtime triggers, executes and tracks runs.
type Runtime struct {
	store    Store
	queue    Queue
	opts     Options
	log      *logging.Logger
	handlers map[string]Handler
	now      func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRuntime creates a Runtime. Register handlers before calling Start.
func NewRuntime(store Store, queue Queue, opts Options, log *logging.Logger) *Runtime {
	if log == nil {
		log = logging.Nop()
	}
	return &Runtime{
		store:    store,
		queue:    queue,
		opts:     opts.withDefaults(),
		log:      log,
		handlers: make(map[string]Handler),
		now:      func() time.Time { return time.Now().UTC() },
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Register binds a handler to a task name.
func (r *Runtime) Register(task string, h Handler) {
	r.handlers[task] = h
}

// Options returns the effective options.
func (r *Runtime) Options() Options {
	return r.opts
}

// Trigger stores a QUEUED run for task and enqueues it.
func (r *Runtime) Trigger(ctx context.Context, task string, payload any, opts TriggerOptions) (*Run, error) {
	if _, ok := r.handlers[task]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.opts.MaxAttempts
	}
	now := r.now()
	run := &Run{
		ID:          NewRunID(),
		Task:        task,
		Status:      StatusQueued,
		Payload:     data,
		MaxAttempts: maxAttempts,
		Tags:        append([]string(nil), opts.Tags...),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.store.Create(ctx, run); err != nil {
		return nil, err
	}
	if err := r.queue.Enqueue(ctx, run.ID); err != nil {
		r.fail(ctx, run.ID, fmt.Errorf("enqueue: %w", err))
		return nil, err
	}
	r.log.Info("run triggered", "run_id", run.ID, "task", task, "tags", run.Tags)
	return run, nil
}

// Retrieve returns the run or ErrNotFound.
func (r *Runtime) Retrieve(ctx context.Context, id string) (*Run, error) {
	return r.store.Get(ctx, id)
}

// Cancel marks a non-terminal run CANCELED and stops its attempt if it runs
// in this process. Other processes notice on their next cancellation poll.
func (r *Runtime) Cancel(ctx context.Context, id string) (*Run, error) {
	run, err := r.store.Update(ctx, id, func(run *Run) error {
		if run.Status.Terminal() {
			return ErrTerminal
		}
		now := r.now()
		run.Status = StatusCanceled
		run.FinishedAt = &now
		run.NextAttemptAt = nil
		return nil
	})
	if err != nil {
		return run, err
	}

	r.mu.Lock()
	cancel, ok := r.cancels[id]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	r.log.Info("run canceled", "run_id", id)
	return run, nil
}

// Start runs the worker pool until ctx is done.
func (r *Runtime) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.opts.Concurrency; i++ {
		worker := i
		g.Go(func() error {
			r.work(ctx, worker)
			return nil
		})
	}
	r.log.Info("workers started", "concurrency", r.opts.Concurrency)
	return g.Wait()
}

func (r *Runtime) work(ctx context.Context, worker int) {
	log := r.log.With("worker", worker)
	for ctx.Err() == nil {
		id, err := r.queue.Dequeue(ctx, r.opts.DequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if id == "" {
			continue
		}
		if err := r.Execute(ctx, id); err != nil && ctx.Err() == nil {
			log.Error("run execution failed", "run_id", id, "error", err)
		}
	}
}

// Execute performs one attempt of run id and records the outcome: COMPLETED,
// FAILED, or PENDING with a delayed retry. Runs that are already terminal
// are skipped. The returned error is about bookkeeping, not the attempt.
func (r *Runtime) Execute(ctx context.Context, id string) error {
	var handler Handler
	run, err := r.store.Update(ctx, id, func(run *Run) error {
		if run.Status.Terminal() || run.Status == StatusExecuting {
			return errSkip
		}
		h, ok := r.handlers[run.Task]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTask, run.Task)
		}
		handler = h
		now := r.now()
		run.Status = StatusExecuting
		run.Attempt++
		run.StartedAt = &now
		run.NextAttemptAt = nil
		return nil
	})
	if errors.Is(err, errSkip) {
		return nil
	}
	if errors.Is(err, ErrUnknownTask) {
		r.fail(ctx, id, err)
		return err
	}
	if err != nil {
		return err
	}

	log := r.log.With("run_id", id, "task", run.Task, "attempt", run.Attempt)
	log.Info("run attempt started")

	attemptCtx, cancel := context.WithTimeout(ctx, r.opts.MaxDuration)
	defer cancel()
	r.track(id, cancel)
	defer r.untrack(id)
	go r.watchCancel(attemptCtx, id, cancel)

	rc := &RunContext{run: run, store: r.store}
	output, runErr := r.invoke(attemptCtx, handler, rc)

	if runErr == nil {
		// Shutdown may have started after the handler returned; the output still counts.
		doneCtx, cancelDone := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancelDone()
		return r.complete(doneCtx, id, output, log)
	}
	if ctx.Err() != nil {
		r.requeue(id, log)
		return ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("run exceeded max duration of %s", r.opts.MaxDuration)
	}
	return r.retryOrFail(ctx, id, runErr, log)
}

var errSkip = errors.New("skip")

func (r *Runtime) invoke(ctx context.Context, h Handler, rc *RunContext) (output any, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("run panicked", "run_id", rc.run.ID, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return h(ctx, rc)
}

func (r *Runtime) complete(ctx context.Context, id string, output any, log *logging.Logger) error {
	data, err := json.Marshal(output)
	if err != nil {
		return r.retryOrFail(ctx, id, fmt.Errorf("encode output: %w", err), log)
	}
	_, err = r.store.Update(ctx, id, func(run *Run) error {
		if run.Status != StatusExecuting {
			return errSkip
		}
		now := r.now()
		run.Status = StatusCompleted
		run.Output = data
		run.Error = ""
		run.FinishedAt = &now
		return nil
	})
	if errors.Is(err, errSkip) {
		log.Info("run finished after cancellation, output dropped")
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("run completed")
	return nil
}

func (r *Runtime) retryOrFail(ctx context.Context, id string, runErr error, log *logging.Logger) error {
	var retryAt time.Time
	run, err := r.store.Update(ctx, id, func(run *Run) error {
		if run.Status != StatusExecuting {
			return errSkip
		}
		run.Error = runErr.Error()
		if run.Attempt >= run.MaxAttempts {
			now := r.now()
			run.Status = StatusFailed
			run.FinishedAt = &now
			return nil
		}
		retryAt = r.now().Add(r.backoff(run.Attempt))
		run.Status = StatusPending
		run.NextAttemptAt = &retryAt
		return nil
	})
	if errors.Is(err, errSkip) {
		return nil
	}
	if err != nil {
		return err
	}

	if run.Status == StatusFailed {
		log.Warn("run failed", "error", runErr)
		return nil
	}
	log.Warn("run attempt failed, retrying", "error", runErr, "retry_at", retryAt)
	return r.queue.EnqueueAt(ctx, id, retryAt)
}

// requeue hands back an attempt interrupted by shutdown without counting it.
func (r *Runtime) requeue(id string, log *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := r.store.Update(ctx, id, func(run *Run) error {
		if run.Status != StatusExecuting {
			return errSkip
		}
		run.Status = StatusPending
		run.Attempt--
		run.StartedAt = nil
		return nil
	})
	if errors.Is(err, errSkip) {
		return
	}
	if err == nil {
		err = r.queue.Enqueue(ctx, id)
	}
	if err != nil {
		log.Error("failed to requeue interrupted run", "error", err)
		return
	}
	log.Info("interrupted run requeued")
}

// fail records a terminal failure without retrying.
func (r *Runtime) fail(ctx context.Context, id string, cause error) {
	_, err := r.store.Update(ctx, id, func(run *Run) error {
		if run.Status.Terminal() {
			return errSkip
		}
		now := r.now()
		run.Status = StatusFailed
		run.Error = cause.Error()
		run.FinishedAt = &now
		return nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		r.log.Error("failed to record run failure", "run_id", id, "error", err)
	}
}

// backoff returns BackoffBase * 2^(attempt-1), capped at BackoffMax.
func (r *Runtime) backoff(attempt int) time.Duration {
	d := r.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= r.opts.BackoffMax {
			return r.opts.BackoffMax
		}
	}
	if d > r.opts.BackoffMax {
		return r.opts.BackoffMax
	}
	return d
}

// watchCancel cancels the attempt when the stored run leaves EXECUTING,
// which is how a cancel issued by another process reaches this one.
func (r *Runtime) watchCancel(ctx context.Context, id string, cancel context.CancelFunc) {
	ticker := time.NewTicker(r.opts.CancelPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run, err := r.store.Get(ctx, id)
			if err != nil {
				continue
			}
			if run.Status != StatusExecuting {
				cancel()
				return
			}
		}
	}
}

func (r *Runtime) track(id string, cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancels[id] = cancel
	r.mu.Unlock()
}

func (r *Runtime) untrack(id string) {
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
}

// PromoteDue moves due retries to the ready queue.
func (r *Runtime) PromoteDue(ctx context.Context) (int, error) {
	return r.queue.PromoteDue(ctx, r.now())
}

// ReapCrashed marks runs stuck in EXECUTING longer than MaxDuration plus
// CrashGrace as CRASHED.
func (r *Runtime) ReapCrashed(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-(r.opts.MaxDuration + r.opts.CrashGrace))
	ids, err := r.store.ExecutingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, id := range ids {
		_, err := r.store.Update(ctx, id, func(run *Run) error {
			if run.Status != StatusExecuting || run.StartedAt == nil || run.StartedAt.After(cutoff) {
				return errSkip
			}
			now := r.now()
			run.Status = StatusCrashed
			run.Error = "run stopped reporting before finishing"
			run.FinishedAt = &now
			return nil
		})
		if errors.Is(err, errSkip) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return reaped, err
		}
		r.log.Warn("run marked as crashed", "run_id", id)
		reaped++
	}
	return reaped, nil
}

// RunContext gives a handler access to its run.
type RunContext struct {
	run   *Run
	store Store
}

// ID returns the run id.
func (rc *RunContext) ID() string { return rc.run.ID }

// Attempt returns the 1-based attempt number.
func (rc *RunContext) Attempt() int { return rc.run.Attempt }

// Tags returns the run's tags.
func (rc *RunContext) Tags() []string { return rc.run.Tags }

// DecodePayload unmarshals the run payload into v.
func (rc *RunContext) DecodePayload(v any) error {
	if err := json.Unmarshal(rc.run.Payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// SetMetadata replaces the run's metadata while it is executing.
func (rc *RunContext) SetMetadata(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = rc.store.Update(ctx, rc.run.ID, func(run *Run) error {
		if run.Status != StatusExecuting {
			return errSkip
		}
		run.Metadata = data
		return nil
	})
	if errors.Is(err, errSkip) {
		return nil
	}
	return err
}

// SaveCheckpoint stores v for later attempts of this run.
func (rc *RunContext) SaveCheckpoint(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return rc.store.SaveCheckpoint(ctx, rc.run.ID, data)
}

// LoadCheckpoint decodes the run's checkpoint into v and reports whether one existed.
func (rc *RunContext) LoadCheckpoint(ctx context.Context, v any) (bool, error) {
	data, err := rc.store.LoadCheckpoint(ctx, rc.run.ID)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return true, nil
}
