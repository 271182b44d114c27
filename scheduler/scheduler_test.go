package scheduler_test

import (
	"math/rand"
	"testing"

	"github.com/cmpjudge/engine/cohort"
	"github.com/cmpjudge/engine/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTexts(n int) []cohort.Text {
	texts := make([]cohort.Text, n)
	for i := 0; i < n; i++ {
		texts[i] = cohort.Text{ID: int64(i + 1)}
	}
	return texts
}

func TestNextPairs_NoTextsTwiceInBatch(t *testing.T) {
	texts := makeTexts(8)
	opts := scheduler.DefaultOptions()
	opts.Rand = rand.New(rand.NewSource(1))
	batch := scheduler.NextPairs(texts, nil, nil, nil, nil, opts)
	require.NotEmpty(t, batch)

	seen := make(map[int64]bool)
	for _, p := range batch {
		assert.False(t, seen[p.TextAID], "text %d appears twice in batch", p.TextAID)
		assert.False(t, seen[p.TextBID], "text %d appears twice in batch", p.TextBID)
		seen[p.TextAID] = true
		seen[p.TextBID] = true
	}
}

func TestNextPairs_BridgesDisconnectedComponents(t *testing.T) {
	texts := makeTexts(4)
	// Two isolated pairs: {1,2} judged, {3,4} judged, no edge across.
	verdicts := []cohort.Verdict{
		{ID: 1, TextAID: 1, TextBID: 2, Outcome: cohort.AWins},
		{ID: 2, TextAID: 3, TextBID: 4, Outcome: cohort.AWins},
	}
	opts := scheduler.DefaultOptions()
	opts.Rand = rand.New(rand.NewSource(2))
	batch := scheduler.NextPairs(texts, verdicts, nil, nil, nil, opts)
	require.NotEmpty(t, batch)

	crossesComponents := false
	for _, p := range batch {
		aInFirst := p.TextAID == 1 || p.TextAID == 2
		bInFirst := p.TextBID == 1 || p.TextBID == 2
		if aInFirst != bInFirst {
			crossesComponents = true
		}
	}
	assert.True(t, crossesComponents, "expected at least one cross-component pair")
}

func TestNextPairs_UnderExposedTextsPreferred(t *testing.T) {
	texts := makeTexts(3)
	// Text 1 has been compared many times already; 2 and 3 have none.
	var verdicts []cohort.Verdict
	for i := 0; i < 9; i++ {
		verdicts = append(verdicts, cohort.Verdict{ID: int64(i), TextAID: 1, TextBID: 2, Outcome: cohort.AWins})
	}
	opts := scheduler.DefaultOptions()
	opts.BatchSize = 1
	opts.Rand = rand.New(rand.NewSource(3))
	batch := scheduler.NextPairs(texts, verdicts, nil, nil, nil, opts)
	require.Len(t, batch, 1)
	assert.True(t, batch[0].TextAID == 3 || batch[0].TextBID == 3, "expected the unjudged text 3 to be scheduled")
}

func TestNextPairs_EmptyWhenFewerThanTwoTexts(t *testing.T) {
	assert.Nil(t, scheduler.NextPairs(makeTexts(1), nil, nil, nil, nil, scheduler.DefaultOptions()))
	assert.Nil(t, scheduler.NextPairs(nil, nil, nil, nil, nil, scheduler.DefaultOptions()))
}

func TestNextPairs_FallsBackToRepeatsWhenAllPairsJudged(t *testing.T) {
	texts := makeTexts(3)
	verdicts := []cohort.Verdict{
		{ID: 1, TextAID: 1, TextBID: 2, Outcome: cohort.AWins},
		{ID: 2, TextAID: 1, TextBID: 3, Outcome: cohort.AWins},
		{ID: 3, TextAID: 2, TextBID: 3, Outcome: cohort.AWins},
	}
	opts := scheduler.DefaultOptions()
	opts.TargetPerText = 100 // force every text under-cap so candidates exist
	opts.Rand = rand.New(rand.NewSource(4))
	batch := scheduler.NextPairs(texts, verdicts, nil, nil, nil, opts)
	assert.NotEmpty(t, batch, "fallback ladder should allow repeats once every pair is judged")
}
