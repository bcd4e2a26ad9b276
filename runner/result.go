package runner

import (
	"errors"
	"time"

	"github.com/ridoystarlord/mongoprov/schema"
)

type AdminOutcome string

const (
	AdminInserted AdminOutcome = "inserted"
	AdminKept     AdminOutcome = "kept-existing"
	AdminReset    AdminOutcome = "reset"
)

type AdminResult struct {
	Collection string
	Name       string
	Policy     schema.AdminPolicy
	Outcome    AdminOutcome
	// Existing is the record count found under insert-if-absent.
	Existing int64
	// Removed is the record count deleted under reset-to-single.
	Removed int64
}

type IndexRef struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
	Spec       string `json:"spec"`
}

type IndexFailure struct {
	Collection string
	Index      string
	Conflict   bool
	Err        error
}

// Result describes what a run did. It is filled in progressively, so a failed
// run still shows the steps completed before the failure.
type Result struct {
	Database    string
	State       State
	FailedAt    State
	Transitions []State

	CollectionsCreated  []string
	CollectionsExisting []string

	IndexesCreated []IndexRef
	IndexesPresent int
	IndexFailures  []IndexFailure

	Admin AdminResult

	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Succeeded reports whether the run reached Done without index failures.
// With allowConflicts, skipped index conflicts do not count as failures.
func (r *Result) Succeeded(allowConflicts bool) bool {
	if r.State != Done {
		return false
	}
	for _, f := range r.IndexFailures {
		if !(allowConflicts && f.Conflict) {
			return false
		}
	}
	return true
}

// IndexErr joins the skipped index failures, nil when there are none.
func (r *Result) IndexErr() error {
	errs := make([]error, 0, len(r.IndexFailures))
	for _, f := range r.IndexFailures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}
