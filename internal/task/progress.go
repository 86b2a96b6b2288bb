package task

import (
	"context"
)

// Progress is handed to a running unit of work to report progress and to
// observe cancellation between stages.
type Progress struct {
	ctx     context.Context
	tracker *Tracker
}

// NewProgress creates a Progress reporting into tracker. A nil tracker gets
// a private one, which is convenient when a unit of work runs outside a Runner.
func NewProgress(ctx context.Context, tracker *Tracker) *Progress {
	if tracker == nil {
		tracker = NewTracker("", "", "")
	}
	return &Progress{ctx: ctx, tracker: tracker}
}

// Update sets the current/total pair.
func (p *Progress) Update(current, total int64) {
	p.tracker.setProgress(current, total)
}

// Message sets the human-readable status message.
func (p *Progress) Message(text string) {
	p.tracker.setMessage(text)
}

// Step sets the current/total pair and the message in one update.
func (p *Progress) Step(current, total int64, text string) {
	p.tracker.setStep(current, total, text)
}

// Checkpoint returns ErrCancelled once the unit of work has been cancelled.
// Units of work call it between stages only.
func (p *Progress) Checkpoint() error {
	if p.ctx.Err() != nil {
		return ErrCancelled
	}
	return nil
}

// Tracker returns the tracker this Progress reports into.
func (p *Progress) Tracker() *Tracker {
	return p.tracker
}
