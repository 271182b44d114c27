// Package grading implements C4: it turns a fitted Bradley-Terry theta per
// text, plus zero or more externally supplied anchor grades, into a
// calibrated grade per text. With zero anchors there is nothing to
// calibrate (spec.md §4.4): callers fall back to the raw grade C3 already
// computed.
//
// The one- and two-anchor least-squares cases follow the same
// validate-then-compute shape as matrix/impl_linear_algebra.go's kernels,
// just specialised to a 1-D regression instead of general matrix ops.
package grading

import (
	"math"

	"github.com/cmpjudge/engine/btfit"
	"github.com/cmpjudge/engine/cohort"
)

// epsilon guards against division by a near-zero denominator, matching the
// 1e-12 floor used throughout btfit.
const epsilon = 1e-12

// CalibratedRow is the calibrated grade for one text.
type CalibratedRow struct {
	TextID int64
	Theta  float64
	Grade  float64
}

// Calibrate implements C4. It returns (nil, false) when there are zero
// valid anchors (anchors referencing a text absent from rows are dropped
// first): callers should use each row's raw grade instead.
func Calibrate(rows []cohort.ScoreRow, anchors []cohort.Anchor, grading cohort.GradingConfig) ([]CalibratedRow, bool) {
	thetaByID := make(map[int64]float64, len(rows))
	for _, r := range rows {
		thetaByID[r.TextID] = r.Theta
	}

	valid := make([]cohort.Anchor, 0, len(anchors))
	for _, a := range anchors {
		if _, ok := thetaByID[a.TextID]; ok {
			valid = append(valid, a)
		}
	}
	if len(valid) == 0 {
		return nil, false
	}

	sigmaTheta := btfit.SigmaTheta(rows)

	var slope, intercept float64
	if len(valid) == 1 {
		slope = 0
		if sigmaTheta > epsilon {
			slope = grading.Scale / sigmaTheta
		}
		theta := thetaByID[valid[0].TextID]
		intercept = valid[0].Grade - slope*theta
	} else {
		slope, intercept = ordinaryLeastSquares(valid, thetaByID)
	}

	out := make([]CalibratedRow, len(rows))
	for i, r := range rows {
		grade := slope*r.Theta + intercept
		rounded := math.Round(grade*10) / 10
		if rounded < grading.Min {
			rounded = grading.Min
		}
		if rounded > grading.Max {
			rounded = grading.Max
		}
		out[i] = CalibratedRow{TextID: r.TextID, Theta: r.Theta, Grade: rounded}
	}
	return out, true
}

// ordinaryLeastSquares fits grade = a + b*theta across the valid anchors.
// b = Sum((theta-thetaMean)(grade-gradeMean)) / Sum((theta-thetaMean)^2);
// b = 0 (and a = gradeMean) when the denominator is <= epsilon (all anchors
// share one theta, or nearly so).
func ordinaryLeastSquares(anchors []cohort.Anchor, thetaByID map[int64]float64) (slope, intercept float64) {
	n := float64(len(anchors))
	var thetaSum, gradeSum float64
	for _, a := range anchors {
		thetaSum += thetaByID[a.TextID]
		gradeSum += a.Grade
	}
	thetaMean := thetaSum / n
	gradeMean := gradeSum / n

	var num, den float64
	for _, a := range anchors {
		dt := thetaByID[a.TextID] - thetaMean
		dg := a.Grade - gradeMean
		num += dt * dg
		den += dt * dt
	}
	if den <= epsilon {
		return 0, gradeMean
	}
	slope = num / den
	intercept = gradeMean - slope*thetaMean
	return slope, intercept
}
