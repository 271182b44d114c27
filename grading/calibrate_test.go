package grading_test

import (
	"testing"

	"github.com/cmpjudge/engine/cohort"
	"github.com/cmpjudge/engine/grading"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrate_NoAnchors(t *testing.T) {
	rows := []cohort.ScoreRow{{TextID: 1, Theta: 1}}
	_, ok := grading.Calibrate(rows, nil, cohort.DefaultGradingConfig())
	assert.False(t, ok)
}

func TestCalibrate_DropsAnchorsForMissingText(t *testing.T) {
	rows := []cohort.ScoreRow{{TextID: 1, Theta: 1}}
	_, ok := grading.Calibrate(rows, []cohort.Anchor{{TextID: 99, Grade: 8}}, cohort.DefaultGradingConfig())
	assert.False(t, ok)
}

func TestCalibrate_FiveAnchoredTexts(t *testing.T) {
	// Scenario 6 from spec.md §8: theta = 2,1,0,-1,-2; anchors t1->8, t5->4.
	rows := []cohort.ScoreRow{
		{TextID: 1, Theta: 2},
		{TextID: 2, Theta: 1},
		{TextID: 3, Theta: 0},
		{TextID: 4, Theta: -1},
		{TextID: 5, Theta: -2},
	}
	anchors := []cohort.Anchor{{TextID: 1, Grade: 8}, {TextID: 5, Grade: 4}}

	out, ok := grading.Calibrate(rows, anchors, cohort.DefaultGradingConfig())
	require.True(t, ok)

	want := map[int64]float64{1: 8, 2: 7, 3: 6, 4: 5, 5: 4}
	for _, row := range out {
		assert.InDelta(t, want[row.TextID], row.Grade, 0.1)
	}
}

func TestCalibrate_SingleAnchor(t *testing.T) {
	rows := []cohort.ScoreRow{
		{TextID: 1, Theta: 2},
		{TextID: 2, Theta: -2},
	}
	out, ok := grading.Calibrate(rows, []cohort.Anchor{{TextID: 1, Grade: 9}}, cohort.DefaultGradingConfig())
	require.True(t, ok)
	for _, row := range out {
		if row.TextID == 1 {
			assert.InDelta(t, 9.0, row.Grade, 0.05)
		}
	}
}

func TestCalibrate_GradeWithinBounds(t *testing.T) {
	rows := []cohort.ScoreRow{
		{TextID: 1, Theta: 100},
		{TextID: 2, Theta: -100},
	}
	out, ok := grading.Calibrate(rows, []cohort.Anchor{{TextID: 1, Grade: 8}, {TextID: 2, Grade: 6}}, cohort.DefaultGradingConfig())
	require.True(t, ok)
	cfg := cohort.DefaultGradingConfig()
	for _, row := range out {
		assert.GreaterOrEqual(t, row.Grade, cfg.Min)
		assert.LessOrEqual(t, row.Grade, cfg.Max)
	}
}
