// Package reliability implements C5: the cohort-level reliability verdict
// plus the stricter "robust assessment" the adaptive scheduler (C8) uses to
// decide whether it is safe to stop asking for more judgements
// (spec.md §4.5).
package reliability

import (
	"math"
	"sort"

	"github.com/cmpjudge/engine/cohort"
	"github.com/cmpjudge/engine/splithalf"
)

// DefaultSEThreshold is the core-subset SE cutoff used when callers do not
// override it (spec.md §4.5 point 1).
const DefaultSEThreshold = 0.35

// nearbyDelta bounds how close two texts' theta must be to count as
// "nearby neighbours" for ladder evidence (spec.md §4.5 point 2).
const nearbyDelta = 1.5

// ladderMinVerdicts is the minimum direct-verdict count required against
// nearby neighbours for an extreme text to be trusted.
const ladderMinVerdicts = 3

// PreviousFit captures the prior run's ranking and grades, used only by the
// convergence check (spec.md §4.5 point 3). Grades should be whichever
// grade (raw or calibrated) the caller wants stability measured on.
type PreviousFit struct {
	RankByTextID  map[int64]int
	GradeByTextID map[int64]float64
}

// Report is the output of Assess.
type Report struct {
	Cohort          cohort.CohortVerdict
	CoreSubsetPass  bool
	LadderPass      bool
	ConvergencePass bool
	Reliable        bool // cohort.Label == "reliable" && all three checks above
}

// Assess implements C5. previous may be nil (the convergence check then
// passes vacuously, per spec.md §4.5 point 3: "when a previous fit is
// supplied"). seThreshold <= 0 falls back to DefaultSEThreshold.
// repeatThreshold overrides the cohort-level "almost" SE cutoff (e.g. from
// AssignmentMeta.SERepeatThreshold); <= 0 falls back to cohort.SERepeat.
// splitHalf, when non-nil, has its coefficient merged into Report.Cohort
// (spec.md §3); pass nil when no C7 estimate was run for this cohort.
func Assess(rows []cohort.ScoreRow, texts []cohort.Text, verdicts []cohort.Verdict, previous *PreviousFit, seThreshold, repeatThreshold float64, splitHalf *splithalf.Result) Report {
	if seThreshold <= 0 {
		seThreshold = DefaultSEThreshold
	}

	cv := cohort.BasicCohortVerdictWithRepeatThreshold(rows, repeatThreshold)
	if splitHalf != nil {
		cv = cv.WithSplitHalf(splitHalf.Coefficient)
	}
	coreSubsetPass := assessCoreSubset(rows, seThreshold)
	ladderPass := assessLadder(rows, verdicts)
	convergencePass := assessConvergence(rows, previous)

	reliable := cv.Label == "reliable" && coreSubsetPass && ladderPass && convergencePass
	return Report{
		Cohort:          cv,
		CoreSubsetPass:  coreSubsetPass,
		LadderPass:      ladderPass,
		ConvergencePass: convergencePass,
		Reliable:        reliable,
	}
}

// assessCoreSubset checks that >=80% of the middle-80%-by-theta texts have
// SE <= seThreshold.
func assessCoreSubset(rows []cohort.ScoreRow, seThreshold float64) bool {
	n := len(rows)
	if n == 0 {
		return false
	}
	sorted := make([]cohort.ScoreRow, n)
	copy(sorted, rows)
	sortByThetaAscending(sorted)

	start := int(math.Round(0.10 * float64(n)))
	end := int(math.Round(0.90 * float64(n)))
	if end <= start {
		// Too few texts to define a meaningful core subset: nothing to
		// fail, so this check passes vacuously.
		return true
	}
	subset := sorted[start:end]

	ok := 0
	for _, r := range subset {
		if r.SE <= seThreshold {
			ok++
		}
	}
	return float64(ok)/float64(len(subset)) >= 0.80
}

// assessLadder checks direct-verdict evidence for the top/bottom 10% of
// texts by theta.
func assessLadder(rows []cohort.ScoreRow, verdicts []cohort.Verdict) bool {
	n := len(rows)
	if n <= 2 {
		return true
	}
	sorted := make([]cohort.ScoreRow, n)
	copy(sorted, rows)
	sortByThetaAscending(sorted)

	extremeCount := int(math.Round(0.10 * float64(n)))
	if extremeCount < 1 {
		extremeCount = 1
	}
	bottom := sorted[:extremeCount]
	top := sorted[n-extremeCount:]

	thetaByID := make(map[int64]float64, n)
	for _, r := range rows {
		thetaByID[r.TextID] = r.Theta
	}

	extremes := make([]cohort.ScoreRow, 0, 2*extremeCount)
	extremes = append(extremes, bottom...)
	extremes = append(extremes, top...)

	for _, ext := range extremes {
		count, decisive := directEvidence(ext.TextID, thetaByID, verdicts)
		if count < ladderMinVerdicts || !decisive {
			return false
		}
	}
	return true
}

// directEvidence counts direct verdicts involving textID against nearby
// (|delta theta| <= nearbyDelta) opponents, and whether at least one is
// decisive (not a tie).
func directEvidence(textID int64, thetaByID map[int64]float64, verdicts []cohort.Verdict) (count int, hasDecisive bool) {
	myTheta, ok := thetaByID[textID]
	if !ok {
		return 0, false
	}
	for _, v := range verdicts {
		var other int64
		switch {
		case v.TextAID == textID:
			other = v.TextBID
		case v.TextBID == textID:
			other = v.TextAID
		default:
			continue
		}
		otherTheta, ok := thetaByID[other]
		if !ok {
			continue
		}
		if math.Abs(myTheta-otherTheta) > nearbyDelta {
			continue
		}
		count++
		if v.Outcome != cohort.Tie {
			hasDecisive = true
		}
	}
	return count, hasDecisive
}

// assessConvergence compares the current ranking/grades against previous.
// Returns true vacuously when previous is nil or shares fewer than 2 texts
// with the current fit (no meaningful comparison is possible).
func assessConvergence(rows []cohort.ScoreRow, previous *PreviousFit) bool {
	if previous == nil {
		return true
	}
	curRank := make(map[int64]int, len(rows))
	curGrade := make(map[int64]float64, len(rows))
	for _, r := range rows {
		curRank[r.TextID] = r.Rank
		curGrade[r.TextID] = r.GradeRaw
	}

	common := make([]int64, 0, len(rows))
	for id := range curRank {
		if _, ok := previous.RankByTextID[id]; ok {
			common = append(common, id)
		}
	}
	if len(common) < 2 {
		return true
	}

	tau := kendallTau(previous.RankByTextID, curRank, common)
	if tau < 0.98 {
		return false
	}

	maxDelta := 0.0
	for _, id := range common {
		prevGrade, ok := previous.GradeByTextID[id]
		if !ok {
			continue
		}
		delta := math.Abs(curGrade[id] - prevGrade)
		if delta > maxDelta {
			maxDelta = delta
		}
	}
	return maxDelta <= 0.1
}

// kendallTau computes Kendall's tau-a over the ranks restricted to ids,
// using the O(n^2) concordant/discordant pair-counting definition.
func kendallTau(a, b map[int64]int, ids []int64) float64 {
	n := len(ids)
	if n < 2 {
		return 1
	}
	var concordant, discordant int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			da := a[ids[i]] - a[ids[j]]
			db := b[ids[i]] - b[ids[j]]
			switch {
			case da*db > 0:
				concordant++
			case da*db < 0:
				discordant++
			}
		}
	}
	totalPairs := n * (n - 1) / 2
	return float64(concordant-discordant) / float64(totalPairs)
}

func sortByThetaAscending(rows []cohort.ScoreRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Theta < rows[j].Theta })
}
