package action

import (
	"errors"
	"fmt"
	"strings"
)

// Tag is a taxonomy label from spec.md §7. It classifies an Error for
// the executor's rollback-vs-bubble-up decision and for the remediation
// hint shown to the user.
type Tag string

const (
	// TagPlanConflict marks a host precondition that violates a
	// planner's assumptions. Surfaced pre-execute; non-recoverable
	// without operator action.
	TagPlanConflict Tag = "plan_conflict"
	// TagActionFailed marks an execute failure from a subprocess or
	// syscall. Triggers rollback of prior completed actions.
	TagActionFailed Tag = "action_failed"
	// TagRevertFailed is collected during rollback; it never aborts
	// further rollback.
	TagRevertFailed Tag = "revert_failed"
	// TagCureConflict marks a cure classification the engine cannot
	// reconcile. Pre-execute; no mutation performed.
	TagCureConflict Tag = "cure_conflict"
	// TagReceiptIncompatible marks a receipt schema version that is
	// unrecognized or corrupt.
	TagReceiptIncompatible Tag = "receipt_incompatible"
	// TagCancelled marks a user-interrupt-triggered abort; rollback runs.
	TagCancelled Tag = "cancelled"
	// TagHardAbort marks a second interrupt; no rollback, no receipt.
	TagHardAbort Tag = "hard_abort"
	// TagAlreadyDone is the recoverable idempotency signal from
	// spec.md §4.A: an action's execute detects its own effect is
	// already present and treats it as success rather than failure.
	TagAlreadyDone Tag = "already_done"
)

// remediation maps a Tag to a one-line hint, per spec.md §7 "User
// visibility". Tags with no established remediation are omitted.
var remediation = map[Tag]string{
	TagCureConflict:         "re-run with --force to override cure classification",
	TagReceiptIncompatible:  "re-run uninstall with --force to proceed without receipt validation",
	TagPlanConflict:         "resolve the reported host precondition and re-run plan",
}

// Error is the structured error every action's execute/revert reports
// on failure. It carries the offending action's synopsis path
// (composite -> child chain), the underlying cause, and a taxonomy tag.
type Error struct {
	Tag          Tag
	SynopsisPath []string
	Cause        error
}

// NewError constructs an Error for a leaf action (a synopsis path of
// length one).
func NewError(tag Tag, synopsis string, cause error) *Error {
	return &Error{Tag: tag, SynopsisPath: []string{synopsis}, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	path := strings.Join(e.SynopsisPath, " > ")
	if e.Cause == nil {
		return fmt.Sprintf("[%s] %s", e.Tag, path)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Tag, path, e.Cause)
}

// Unwrap enables errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// Remediation returns the one-line hint for the error's tag, or "" if
// the tag has none.
func (e *Error) Remediation() string { return remediation[e.Tag] }

// Enrich prepends a composite's own synopsis to a child error's path,
// as composites do when propagating a child failure (spec.md §7
// "Composites enrich child errors with their synopsis").
func Enrich(err error, compositeSynopsis string) error {
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{
			Tag:          ae.Tag,
			SynopsisPath: append([]string{compositeSynopsis}, ae.SynopsisPath...),
			Cause:        ae.Cause,
		}
	}
	return &Error{Tag: TagActionFailed, SynopsisPath: []string{compositeSynopsis}, Cause: err}
}

// IsAlreadyDone reports whether err is the recoverable AlreadyDone
// signal, i.e. TryExecute may treat it as success.
func IsAlreadyDone(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Tag == TagAlreadyDone
}

// RevertFailures collects one or more revert errors gathered during a
// best-effort rollback (spec.md §4.D step 4: "the executor never stops
// reverting because of one revert failure").
type RevertFailures struct {
	Failures []error
}

func (r *RevertFailures) Error() string {
	if len(r.Failures) == 0 {
		return "revert failed with no recorded causes"
	}
	msgs := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d revert failure(s): %s", len(r.Failures), strings.Join(msgs, "; "))
}

// RollbackError is the two-part error surfaced by the executor after a
// failed execute triggers rollback (spec.md §4.D step 4): the original
// cause plus every revert failure encountered while unwinding.
type RollbackError struct {
	Cause           error
	RevertFailures  []error
}

func (r *RollbackError) Error() string {
	if len(r.RevertFailures) == 0 {
		return fmt.Sprintf("execution failed: %v (rollback completed cleanly)", r.Cause)
	}
	msgs := make([]string, len(r.RevertFailures))
	for i, f := range r.RevertFailures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("execution failed: %v (rollback had %d failure(s): %s)",
		r.Cause, len(r.RevertFailures), strings.Join(msgs, "; "))
}

func (r *RollbackError) Unwrap() error { return r.Cause }
