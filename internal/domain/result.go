package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// GroupStatus is the terminal state of one group within a cycle.
type GroupStatus string

const (
	StatusSubmitted GroupStatus = "submitted"
	StatusCooldown  GroupStatus = "cooldown"
	StatusSkipped   GroupStatus = "skipped"
	StatusFailed    GroupStatus = "failed"
	StatusDeferred  GroupStatus = "deferred"
	StatusDryRun    GroupStatus = "dry-run"
)

// GroupOutcome is what happened to a single candidate group.
type GroupOutcome struct {
	Kind       SubmissionKind
	EventSlug  string
	Target     string
	IndexSet   string
	Amount     decimal.Decimal
	Status     GroupStatus
	Err        error
	Submission *Submission
}

// CycleResult aggregates one detector cycle so callers can assert on failure
// classes without reading logs.
type CycleResult struct {
	ID         string
	StartedAt  time.Time
	Duration   time.Duration
	Positions  int
	Candidates int
	Groups     []GroupOutcome
	Err        error
}

// Failed reports whether the cycle itself failed (as opposed to single groups).
func (r CycleResult) Failed() bool {
	return r.Err != nil
}

// Count returns the number of groups with the given status.
func (r CycleResult) Count(status GroupStatus) int {
	n := 0
	for _, g := range r.Groups {
		if g.Status == status {
			n++
		}
	}
	return n
}

// Failures counts groups and cycle errors matching target.
func (r CycleResult) Failures(target error) int {
	n := 0
	if r.Err != nil && errors.Is(r.Err, target) {
		n++
	}
	for _, g := range r.Groups {
		if g.Err != nil && errors.Is(g.Err, target) {
			n++
		}
	}
	return n
}
