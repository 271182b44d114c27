package btfit_test

import (
	"context"
	"math"
	"testing"

	"github.com/cmpjudge/engine/btfit"
	"github.com/cmpjudge/engine/cohort"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTexts(ids ...int64) []cohort.Text {
	out := make([]cohort.Text, 0, len(ids))
	for _, id := range ids {
		out = append(out, cohort.Text{ID: id})
	}
	return out
}

func repeatVerdict(a, b int64, outcome cohort.Outcome, count int, startID int64) []cohort.Verdict {
	out := make([]cohort.Verdict, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, cohort.Verdict{
			ID: startID + int64(i), TextAID: a, TextBID: b, Outcome: outcome, CreatedAt: int64(i + 1),
		})
	}
	return out
}

func rowByID(rows []cohort.ScoreRow, id int64) cohort.ScoreRow {
	for _, r := range rows {
		if r.TextID == id {
			return r
		}
	}
	panic("not found")
}

func TestFit_ZeroAndOneText(t *testing.T) {
	res, err := btfit.Fit(context.Background(), nil, nil, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, "insufficient", res.Cohort.Label)

	res, err = btfit.Fit(context.Background(), mkTexts(1), nil, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 0.0, res.Rows[0].Theta)
	assert.True(t, math.IsInf(res.Rows[0].SE, 1))
	assert.Equal(t, 1, res.Rows[0].Rank)
	// A single text with +Inf SE has no finite evidence at all, so the
	// cohort verdict must not default to "reliable".
	assert.Equal(t, "insufficient", res.Cohort.Label)
}

func TestFit_TwoTextsNoVerdicts_CohortInsufficient(t *testing.T) {
	res, err := btfit.Fit(context.Background(), mkTexts(1, 2), nil, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)
	for _, r := range res.Rows {
		assert.True(t, math.IsInf(r.SE, 1))
	}
	assert.Equal(t, "insufficient", res.Cohort.Label)
}

func TestFit_TwoTexts_AAlwaysWins(t *testing.T) {
	// Scenario 1 from spec.md §8.
	texts := mkTexts(1, 2)
	verdicts := repeatVerdict(1, 2, cohort.AWins, 5, 1)
	res, err := btfit.Fit(context.Background(), texts, verdicts, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	r1, r2 := rowByID(res.Rows, 1), rowByID(res.Rows, 2)
	assert.Greater(t, r1.Theta, r2.Theta)
	assert.Equal(t, 1, r1.Rank)
	assert.Equal(t, 2, r2.Rank)
	assert.False(t, math.IsInf(r1.SE, 1))
	assert.False(t, math.IsInf(r2.SE, 1))
}

func TestFit_AllTies(t *testing.T) {
	// Scenario 2 from spec.md §8.
	texts := mkTexts(1, 2)
	verdicts := repeatVerdict(1, 2, cohort.Tie, 10, 1)
	res, err := btfit.Fit(context.Background(), texts, verdicts, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	r1, r2 := rowByID(res.Rows, 1), rowByID(res.Rows, 2)
	assert.Less(t, math.Abs(r1.Theta), 0.05)
	assert.Less(t, math.Abs(r2.Theta), 0.05)
}

func TestFit_TransitiveTriple(t *testing.T) {
	// Scenario 3 from spec.md §8.
	texts := mkTexts(1, 2, 3)
	var verdicts []cohort.Verdict
	verdicts = append(verdicts, repeatVerdict(1, 2, cohort.AWins, 5, 1)...)
	verdicts = append(verdicts, repeatVerdict(2, 3, cohort.AWins, 5, 100)...)
	verdicts = append(verdicts, repeatVerdict(1, 3, cohort.AWins, 5, 200)...)

	res, err := btfit.Fit(context.Background(), texts, verdicts, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	r1, r2, r3 := rowByID(res.Rows, 1), rowByID(res.Rows, 2), rowByID(res.Rows, 3)
	assert.Equal(t, 1, r1.Rank)
	assert.Equal(t, 2, r2.Rank)
	assert.Equal(t, 3, r3.Rank)
	for _, r := range res.Rows {
		assert.False(t, math.IsInf(r.SE, 1))
		if r.HasInfit {
			assert.InDelta(t, 1.0, r.Infit, 1.0)
		}
	}
}

func TestFit_ThetaSumsToZero(t *testing.T) {
	texts := mkTexts(1, 2, 3, 4)
	var verdicts []cohort.Verdict
	verdicts = append(verdicts, repeatVerdict(1, 2, cohort.AWins, 3, 1)...)
	verdicts = append(verdicts, repeatVerdict(2, 3, cohort.AWins, 3, 100)...)
	verdicts = append(verdicts, repeatVerdict(3, 4, cohort.BWins, 3, 200)...)

	res, err := btfit.Fit(context.Background(), texts, verdicts, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	var sum float64
	for _, r := range res.Rows {
		sum += r.Theta
	}
	assert.Less(t, math.Abs(sum), 1e-2)
}

func TestFit_RanksArePermutation(t *testing.T) {
	texts := mkTexts(1, 2, 3, 4, 5)
	var verdicts []cohort.Verdict
	verdicts = append(verdicts, repeatVerdict(1, 2, cohort.AWins, 2, 1)...)
	verdicts = append(verdicts, repeatVerdict(2, 3, cohort.AWins, 2, 50)...)
	verdicts = append(verdicts, repeatVerdict(3, 4, cohort.AWins, 2, 100)...)
	verdicts = append(verdicts, repeatVerdict(4, 5, cohort.AWins, 2, 150)...)

	res, err := btfit.Fit(context.Background(), texts, verdicts, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, r := range res.Rows {
		assert.False(t, seen[r.Rank], "duplicate rank %d", r.Rank)
		seen[r.Rank] = true
		assert.GreaterOrEqual(t, r.GradeRaw, cohort.DefaultGradingConfig().Min)
		assert.LessOrEqual(t, r.GradeRaw, cohort.DefaultGradingConfig().Max)
	}
	assert.Len(t, seen, len(texts))
}

func TestFit_HigherLambdaShrinksSpread(t *testing.T) {
	texts := mkTexts(1, 2)
	verdicts := repeatVerdict(1, 2, cohort.AWins, 5, 1)

	loLambda := btfit.Options{Lambda: 0.01, TopPercentile: 0.1, MaxIterations: 100, Tolerance: 1e-6}
	hiLambda := btfit.Options{Lambda: 2.0, TopPercentile: 0.1, MaxIterations: 100, Tolerance: 1e-6}

	resLo, err := btfit.Fit(context.Background(), texts, verdicts, loLambda, cohort.DefaultGradingConfig())
	require.NoError(t, err)
	resHi, err := btfit.Fit(context.Background(), texts, verdicts, hiLambda, cohort.DefaultGradingConfig())
	require.NoError(t, err)

	spreadLo := math.Abs(rowByID(resLo.Rows, 1).Theta - rowByID(resLo.Rows, 2).Theta)
	spreadHi := math.Abs(rowByID(resHi.Rows, 1).Theta - rowByID(resHi.Rows, 2).Theta)
	assert.Less(t, spreadHi, spreadLo)
}

func TestFit_MoreVerdictsShrinkSE(t *testing.T) {
	texts := mkTexts(1, 2)
	few := repeatVerdict(1, 2, cohort.AWins, 2, 1)
	many := repeatVerdict(1, 2, cohort.AWins, 20, 1)

	resFew, err := btfit.Fit(context.Background(), texts, few, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)
	resMany, err := btfit.Fit(context.Background(), texts, many, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	assert.LessOrEqual(t, rowByID(resMany.Rows, 1).SE, rowByID(resFew.Rows, 1).SE)
}

func TestFit_ReversingOutcomesReversesRank(t *testing.T) {
	texts := mkTexts(1, 2, 3)
	forward := []cohort.Verdict{
		{ID: 1, TextAID: 1, TextBID: 2, Outcome: cohort.AWins, CreatedAt: 1},
		{ID: 2, TextAID: 2, TextBID: 3, Outcome: cohort.AWins, CreatedAt: 1},
	}
	reversed := []cohort.Verdict{
		{ID: 1, TextAID: 2, TextBID: 1, Outcome: cohort.AWins, CreatedAt: 1},
		{ID: 2, TextAID: 3, TextBID: 2, Outcome: cohort.AWins, CreatedAt: 1},
	}

	resF, err := btfit.Fit(context.Background(), texts, forward, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)
	resR, err := btfit.Fit(context.Background(), texts, reversed, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	require.NoError(t, err)

	assert.Equal(t, rowByID(resF.Rows, 1).Rank, rowByID(resR.Rows, 3).Rank)
	assert.Equal(t, rowByID(resF.Rows, 3).Rank, rowByID(resR.Rows, 1).Rank)
	assert.Equal(t, rowByID(resF.Rows, 2).Rank, rowByID(resR.Rows, 2).Rank)
}

func TestFit_Cancellation(t *testing.T) {
	texts := mkTexts(1, 2)
	verdicts := repeatVerdict(1, 2, cohort.AWins, 5, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := btfit.Fit(ctx, texts, verdicts, btfit.DefaultOptions(), cohort.DefaultGradingConfig())
	assert.ErrorIs(t, err, btfit.ErrCancelled)
}
