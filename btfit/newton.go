package btfit

import (
	"context"
	"math"
	"sort"

	"github.com/cmpjudge/engine/cohort"
)

// epsilon floors the Hessian diagonal before division, per spec.md §4.3.
const epsilon = 1e-12

// sigma is the logistic function.
func sigma(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// preaggregated holds the dense n*n matrices the Newton solver operates on,
// plus the id<->index mapping needed to translate back to ScoreRow.TextID.
type preaggregated struct {
	n     int
	ids   []int64         // index -> text id, ascending by id for determinism
	index map[int64]int   // text id -> index
	nMat  []float64       // flat n*n, nMat[i*n+j] = verdict count on {i,j}
	wMat  []float64       // flat n*n, wMat[i*n+j] = wins of i over j
}

// preaggregate builds the dense matrices described in spec.md §4.3. Indices
// are assigned by ascending text id so repeated calls on the same cohort
// are reproducible regardless of slice ordering.
func preaggregate(texts []cohort.Text, verdicts []cohort.Verdict) preaggregated {
	ids := make([]int64, 0, len(texts))
	for _, t := range texts {
		ids = append(ids, t.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	n := len(ids)
	p := preaggregated{n: n, ids: ids, index: index, nMat: make([]float64, n*n), wMat: make([]float64, n*n)}
	for _, v := range verdicts {
		ia, okA := index[v.TextAID]
		ib, okB := index[v.TextBID]
		if !okA || !okB || ia == ib {
			continue
		}
		p.nMat[ia*n+ib]++
		p.nMat[ib*n+ia]++
		switch v.Outcome {
		case cohort.AWins:
			p.wMat[ia*n+ib] += 1
		case cohort.BWins:
			p.wMat[ib*n+ia] += 1
		case cohort.Tie:
			p.wMat[ia*n+ib] += 0.5
			p.wMat[ib*n+ia] += 0.5
		}
	}
	return p
}

// exposure returns sum_j n_ij for text index i.
func (p preaggregated) exposure(i int) float64 {
	var sum float64
	for j := 0; j < p.n; j++ {
		sum += p.nMat[i*p.n+j]
	}
	return sum
}

// newtonResult is the output of the regularised MLE solve: converged theta
// and the Hessian diagonal recomputed at that theta (used for SE).
type newtonResult struct {
	theta    []float64
	hessDiag []float64
}

// fitTheta runs the diagonal-Hessian Newton solver of spec.md §4.3.
// Initial theta = 0; after each iteration theta is recentred so sum(theta)
// == 0. Stops when the largest update is <= tol or after maxIter
// iterations. ctx is checked between iterations; a done context yields
// ErrCancelled with no result.
func fitTheta(ctx context.Context, p preaggregated, lambda float64, maxIter int, tol float64) (newtonResult, error) {
	n := p.n
	theta := make([]float64, n)
	hess := make([]float64, n)

	for iter := 0; iter < maxIter; iter++ {
		select {
		case <-ctx.Done():
			return newtonResult{}, ErrCancelled
		default:
		}

		maxUpdate := 0.0
		grad := make([]float64, n)
		for i := 0; i < n; i++ {
			var wSum, nPSum, nPQSum float64
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				nij := p.nMat[i*n+j]
				wij := p.wMat[i*n+j]
				wSum += wij
				if nij == 0 {
					continue
				}
				pij := sigma(theta[i] - theta[j])
				nPSum += nij * pij
				nPQSum += nij * pij * (1 - pij)
			}
			grad[i] = wSum - nPSum - lambda*theta[i]
			hess[i] = lambda + nPQSum
		}
		for i := 0; i < n; i++ {
			update := grad[i] / math.Max(hess[i], epsilon)
			theta[i] += update
			if abs := math.Abs(update); abs > maxUpdate {
				maxUpdate = abs
			}
		}

		recentre(theta)

		if maxUpdate <= tol {
			break
		}
	}

	// Recompute the Hessian diagonal at the converged theta, per spec.
	for i := 0; i < n; i++ {
		var nPQSum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			nij := p.nMat[i*n+j]
			if nij == 0 {
				continue
			}
			pij := sigma(theta[i] - theta[j])
			nPQSum += nij * pij * (1 - pij)
		}
		hess[i] = lambda + nPQSum
	}

	return newtonResult{theta: theta, hessDiag: hess}, nil
}

// recentre subtracts the mean from theta in place so sum(theta) == 0.
func recentre(theta []float64) {
	if len(theta) == 0 {
		return
	}
	var sum float64
	for _, t := range theta {
		sum += t
	}
	mean := sum / float64(len(theta))
	for i := range theta {
		theta[i] -= mean
	}
}
