package procurement

import (
	"fmt"
	"time"
)

// Status is a request's position in the review workflow.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusClosed     Status = "Closed"
)

// Statuses lists the workflow states in display order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusClosed}

// ParseStatus maps a label to a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// TransitionTable maps a state to the states it may move to.
type TransitionTable map[Status][]Status

// DefaultTransitions lets any status move to any other; closed requests may be reopened
// so administrators can correct mistaken changes.
var DefaultTransitions = TransitionTable{
	StatusOpen:       {StatusInProgress, StatusClosed},
	StatusInProgress: {StatusOpen, StatusClosed},
	StatusClosed:     {StatusOpen, StatusInProgress},
}

// Allows reports whether from -> to is an edge of the table.
func (t TransitionTable) Allows(from, to Status) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Workflow applies transitions according to a table.
type Workflow struct {
	table   TransitionTable
	nowFunc func() time.Time
}

// NewWorkflow returns a Workflow over table; a nil table means DefaultTransitions.
func NewWorkflow(table TransitionTable) *Workflow {
	if table == nil {
		table = DefaultTransitions
	}
	return &Workflow{table: table, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the time source.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.nowFunc = now
	return w
}

// Open turns a validated draft into a new request in the Open state.
func (w *Workflow) Open(d Draft) ProcurementRequest {
	now := w.nowFunc()
	return ProcurementRequest{
		Draft:     d.Clone(),
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
		History: []StatusChange{{
			To:        StatusOpen,
			Notes:     "Request created",
			ChangedAt: now,
		}},
	}
}

// Transition returns a copy of req moved to the target status. req itself is never
// modified, so a rejected transition leaves the caller's request as it was.
func (w *Workflow) Transition(req ProcurementRequest, to Status, notes string) (ProcurementRequest, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return req, err
	}
	if req.Status == to {
		return req, &TransitionError{From: req.Status, To: to, Err: ErrNoOpTransition}
	}
	if !w.table.Allows(req.Status, to) {
		return req, &TransitionError{From: req.Status, To: to, Err: ErrIllegalTransition}
	}
	if notes == "" {
		notes = "Status changed to " + string(to)
	}

	now := w.nowFunc()
	next := req.Clone()
	next.History = append(next.History, StatusChange{
		From:      req.Status,
		To:        to,
		Notes:     notes,
		ChangedAt: now,
	})
	next.Status = to
	next.UpdatedAt = now
	return next, nil
}
