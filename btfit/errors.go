// Package btfit implements C3: a regularised maximum-likelihood
// Bradley-Terry fit with a diagonal-Hessian Newton solver, Hessian-based
// standard errors, and Rasch-style infit residuals (spec.md §4.3).
//
// Matrix convention: both the win matrix w_ij and the count matrix n_ij are
// dense n*n, row-major, flat float64 slices (index i*n+j), the same
// "Dense fast-path over a flat buffer" convention matrix/impl_dense.go and
// matrix/impl_statistics.go use for their centering/covariance kernels.
package btfit

import "errors"

// ErrCancelled is returned when ctx is done between Newton iterations; no
// partial theta/SE/infit values are returned alongside it.
var ErrCancelled = errors.New("btfit: cancelled")
