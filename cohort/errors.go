package cohort

import "errors"

// ErrInvalidInput is the sentinel for malformed inputs the core rejects
// defensively. The engine facade returns it for an anchor with a grade
// outside the configured bounds and for a negative scheduling target; a
// verdict referencing a missing text id is not rejected with it, but dropped
// by verdict.EffectiveVerdicts. Callers branch with
// errors.Is(err, ErrInvalidInput); the facade wraps it with
// fmt.Errorf("%w: detail") to name the offender.
var ErrInvalidInput = errors.New("cohort: invalid input")

// ErrCancelled is the module-level "cancelled" sentinel. The components
// that accept a context.Context return their own sentinels instead:
// btfit.ErrCancelled from btfit.Fit and splithalf.ErrCancelled from
// splithalf.Estimate; neither wraps this one.
var ErrCancelled = errors.New("cohort: cancelled")
