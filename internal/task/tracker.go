package task

import (
	"sync"
	"time"
)

// Phase represents the lifecycle phase of a unit of work.
type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseRunning   Phase = "running"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Done reports whether the phase is terminal.
func (p Phase) Done() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// Status is a snapshot of a unit of work, safe for JSON serialization.
type Status struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Phase     Phase     `json:"phase"`
	Current   int64     `json:"current"`
	Total     int64     `json:"total"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Elapsed   string    `json:"elapsed"`
}

// Tracker accumulates progress of one unit of work in a thread-safe manner.
// Observers use Wait() to block until new updates are available.
type Tracker struct {
	mu sync.Mutex

	id        string
	name      string
	kind      string
	phase     Phase
	current   int64
	total     int64
	message   string
	err       string
	startTime time.Time
	endTime   time.Time

	// Close-and-replace: any update closes the current channel and
	// installs a fresh one.
	notify chan struct{}
}

// NewTracker creates a tracker in the queued phase.
func NewTracker(id, name, kind string) *Tracker {
	return &Tracker{
		id:     id,
		name:   name,
		kind:   kind,
		phase:  PhaseQueued,
		notify: make(chan struct{}),
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pct float64
	if t.total > 0 {
		pct = float64(t.current) / float64(t.total) * 100
	}

	var elapsed time.Duration
	switch {
	case t.startTime.IsZero():
	case t.endTime.IsZero():
		elapsed = time.Since(t.startTime)
	default:
		elapsed = t.endTime.Sub(t.startTime)
	}

	return Status{
		ID:        t.id,
		Name:      t.name,
		Kind:      t.kind,
		Phase:     t.phase,
		Current:   t.current,
		Total:     t.total,
		Percent:   pct,
		Message:   t.message,
		Error:     t.err,
		StartTime: t.startTime,
		EndTime:   t.endTime,
		Elapsed:   elapsed.Truncate(time.Millisecond).String(),
	}
}

// Wait returns a channel that will be closed when the next update occurs.
// Callers should select on this channel alongside a timeout for heartbeats.
func (t *Tracker) Wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notify
}

// signal closes the current notify channel and replaces it with a new one.
// Must be called with t.mu held.
func (t *Tracker) signal() {
	close(t.notify)
	t.notify = make(chan struct{})
}

func (t *Tracker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseRunning
	t.startTime = time.Now()
	t.signal()
}

func (t *Tracker) finish(phase Phase, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startTime.IsZero() {
		t.startTime = time.Now()
	}
	t.phase = phase
	t.err = errMsg
	t.endTime = time.Now()
	t.signal()
}

func (t *Tracker) setProgress(current, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = current
	t.total = total
	t.signal()
}

func (t *Tracker) setMessage(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = msg
	t.signal()
}

func (t *Tracker) setStep(current, total int64, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = current
	t.total = total
	t.message = msg
	t.signal()
}
