package task

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/owlplug/owlplug-engine/internal/metrics"
	"github.com/owlplug/owlplug-engine/internal/store"
)

// DefaultRetainFinished is how many finished units of work a runner keeps
// for Get and List. Older ones are only available from the recorder.
const DefaultRetainFinished = 256

// Recorder persists task runs. *store.Store satisfies it.
type Recorder interface {
	CreateTaskRun(run *store.TaskRun) error
	UpdateTaskRun(run *store.TaskRun) error
}

// Handle is a submitted unit of work.
type Handle struct {
	id      string
	task    Task
	tracker *Tracker
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// ID returns the unit of work's identifier.
func (h *Handle) ID() string { return h.id }

// Tracker returns the tracker observers can Snapshot and Wait on.
func (h *Handle) Tracker() *Tracker { return h.tracker }

// Status returns a snapshot of the unit of work.
func (h *Handle) Status() Status { return h.tracker.Snapshot() }

// Cancel requests cooperative cancellation. A queued unit of work never starts.
func (h *Handle) Cancel() { h.cancel() }

// Done is closed when the unit of work has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the *Error the unit of work failed with, or nil. It is only
// meaningful after Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Runner executes units of work using a worker pool pattern.
type Runner struct {
	workers  int
	recorder Recorder
	logger   *slog.Logger

	queue chan *Handle
	wg    sync.WaitGroup

	mu       sync.Mutex
	handles  map[string]*Handle
	finished []string
	retain   int
	closed   bool
}

// NewRunner creates a runner with the specified number of worker goroutines
// and starts them. recorder may be nil.
func NewRunner(workers int, recorder Recorder, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runner{
		workers:  workers,
		recorder: recorder,
		logger:   logger,
		queue:    make(chan *Handle, workers*16),
		handles:  make(map[string]*Handle),
		retain:   DefaultRetainFinished,
	}

	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Submit queues t for execution on the worker pool.
func (r *Runner) Submit(t Task) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	h := r.newHandle(context.Background(), t)
	select {
	case r.queue <- h:
	default:
		h.cancel()
		return nil, ErrQueueFull
	}
	r.handles[h.id] = h

	r.logger.Debug("task queued", "id", h.id, "task", t.Name(), "kind", t.Kind())
	return h, nil
}

// Run executes t synchronously in the calling goroutine. The unit of work is
// observable through List and Get while it runs. observe, when non-nil,
// receives the handle before execution starts.
func (r *Runner) Run(ctx context.Context, t Task, observe func(*Handle)) error {
	h := r.newHandle(ctx, t)

	r.mu.Lock()
	r.handles[h.id] = h
	r.mu.Unlock()

	if observe != nil {
		observe(h)
	}
	r.execute(h)
	r.release(h)
	return h.err
}

// Get returns the handle with the given ID.
func (r *Runner) Get(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[id]
	return h, ok
}

// List returns a snapshot of every known unit of work, newest first.
func (r *Runner) List() []Status {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	statuses := make([]Status, 0, len(handles))
	for _, h := range handles {
		statuses = append(statuses, h.Status())
	}
	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].StartTime.After(statuses[j].StartTime)
	})
	return statuses
}

// Close stops accepting work, cancels queued and running units of work and
// waits for the workers to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	for _, h := range r.handles {
		h.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Runner) newHandle(parent context.Context, t Task) *Handle {
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &Handle{
		id:      id,
		task:    t,
		tracker: NewTracker(id, t.Name(), t.Kind()),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// worker processes handles from the queue until it is closed.
func (r *Runner) worker() {
	defer r.wg.Done()
	for h := range r.queue {
		r.execute(h)
		r.release(h)
	}
}

// release marks h finished and evicts the oldest finished handles beyond
// the retention limit.
func (r *Runner) release(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, h.id)
	for len(r.finished) > r.retain {
		delete(r.handles, r.finished[0])
		r.finished = r.finished[1:]
	}
}

// execute runs one unit of work, wraps its failure into *Error, and records
// the outcome in logs, metrics and the recorder.
func (r *Runner) execute(h *Handle) {
	defer close(h.done)
	defer h.cancel()

	name, kind := h.task.Name(), h.task.Kind()

	if h.ctx.Err() != nil {
		h.err = &Error{TaskID: h.id, Task: name, Err: ErrCancelled}
		h.tracker.finish(PhaseCancelled, ErrCancelled.Error())
		metrics.RecordTask(kind, string(PhaseCancelled), 0)
		r.logger.Info("task cancelled before start", "id", h.id, "task", name)
		return
	}

	h.tracker.start()
	start := time.Now()
	run := &store.TaskRun{
		TaskID:    h.id,
		Kind:      kind,
		Name:      name,
		Status:    string(PhaseRunning),
		StartTime: start,
	}
	r.record(run, true)
	r.logger.Info("task started", "id", h.id, "task", name, "kind", kind)

	err := h.task.Run(h.ctx, NewProgress(h.ctx, h.tracker))

	phase := PhaseCompleted
	var errMsg string
	if err != nil {
		phase = PhaseFailed
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			phase = PhaseCancelled
		}
		snap := h.tracker.Snapshot()
		h.err = &Error{TaskID: h.id, Task: name, Message: snap.Message, Err: err}
		errMsg = err.Error()
	}
	h.tracker.finish(phase, errMsg)

	duration := time.Since(start)
	metrics.RecordTask(kind, string(phase), duration)

	run.Status = string(phase)
	run.Message = h.tracker.Snapshot().Message
	run.Error = errMsg
	run.EndTime = time.Now()
	r.record(run, false)

	switch phase {
	case PhaseCompleted:
		r.logger.Info("task completed", "id", h.id, "task", name, "duration", duration.Truncate(time.Millisecond))
	case PhaseCancelled:
		r.logger.Info("task cancelled", "id", h.id, "task", name, "message", run.Message)
	default:
		r.logger.Error("task failed", "id", h.id, "task", name, "message", run.Message, "error", err)
	}
}

func (r *Runner) record(run *store.TaskRun, create bool) {
	if r.recorder == nil {
		return
	}
	var err error
	if create {
		err = r.recorder.CreateTaskRun(run)
	} else {
		err = r.recorder.UpdateTaskRun(run)
	}
	if err != nil {
		r.logger.Warn("failed to record task run", "id", run.TaskID, "error", err)
	}
}
