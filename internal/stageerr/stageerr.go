// Package stageerr declares the sentinel error kinds stage handlers wrap
// their failures in, so the Stage Dispatcher can classify a handler error
// via errors.Is without depending on any particular stage package.
package stageerr

import "errors"

var (
	// ErrPreconditionFailed marks a missing cached artifact or a job found
	// in a status a handler didn't expect. Never retried.
	ErrPreconditionFailed = errors.New("stage: precondition failed")

	// ErrTransient marks an external-dependency failure (LLM, provider,
	// network) that has already exhausted its in-stage retry budget.
	ErrTransient = errors.New("stage: transient failure, retries exhausted")

	// ErrMalformedOutput marks external output so malformed that nothing
	// usable survived partial recovery (e.g. zero triples parsed from an
	// LLM response). Stages should prefer dropping the bad unit and
	// continuing over returning this — it is for the case where dropping
	// leaves nothing to continue with.
	ErrMalformedOutput = errors.New("stage: malformed output, no survivors")
)
