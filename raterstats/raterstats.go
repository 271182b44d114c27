// Package raterstats implements C6: per-rater diagnostics (agreement with
// the fitted model, tie rate, infit) and cross-rater disagreement detection
// on pairs judged by more than one rater (spec.md §4.6).
package raterstats

import (
	"math"
	"sort"

	"github.com/cmpjudge/engine/cohort"
)

// RaterStat summarises one rater's verdicts.
type RaterStat struct {
	RaterID        string
	Count          int
	TieRate        float64
	ModelAgreement float64
	HasInfit       bool
	Infit          float64
	InfitLabel     string // "consistent" | "inconsistent" | "careless"
}

// DisagreementVote is one rater's choice on a disputed pair: WinnerTextID
// is the text that rater judged better.
type DisagreementVote struct {
	RaterID      string
	WinnerTextID int64
}

// Disagreement is a pair with conflicting verdicts from >= 2 raters.
// TextAID/TextBID are the canonical (lower id, higher id) orientation so
// they are stable regardless of which verdict first mentioned the pair.
type Disagreement struct {
	PairKey           string
	TextAID           int64
	TextBID           int64
	Votes             []DisagreementVote
	DisagreementCount int // min(#votes for TextAID, #votes for TextBID)
}

// Report is the output of Analyze.
type Report struct {
	RaterStats    []RaterStat     // sorted by Count descending
	Disagreements []Disagreement  // sorted by DisagreementCount descending
	UniqueRaters  int
}

// infitMinCount is the minimum verdict count before a rater's infit is
// computed at all (spec.md §4.6).
const infitMinCount = 10

// Analyze implements C6. theta is the fitted ability per text id, used to
// decide the model's preferred winner for agreement/infit.
func Analyze(verdicts []cohort.Verdict, texts []cohort.Text, theta map[int64]float64) Report {
	byRater := make(map[string][]cohort.Verdict)
	raterOrder := make([]string, 0)
	for _, v := range verdicts {
		rid := v.EffectiveRaterID()
		if _, seen := byRater[rid]; !seen {
			raterOrder = append(raterOrder, rid)
		}
		byRater[rid] = append(byRater[rid], v)
	}

	stats := make([]RaterStat, 0, len(raterOrder))
	for _, rid := range raterOrder {
		stats = append(stats, statFor(rid, byRater[rid], theta))
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })

	disagreements := findDisagreements(verdicts)

	return Report{RaterStats: stats, Disagreements: disagreements, UniqueRaters: len(raterOrder)}
}

func statFor(raterID string, vs []cohort.Verdict, theta map[int64]float64) RaterStat {
	count := len(vs)
	ties := 0
	decisiveMatches := 0
	decisiveTotal := 0

	for _, v := range vs {
		if v.Outcome == cohort.Tie {
			ties++
			continue
		}
		thetaA, okA := theta[v.TextAID]
		thetaB, okB := theta[v.TextBID]
		if !okA || !okB || thetaA == thetaB {
			continue // ambiguous model winner: excluded from agreement
		}
		decisiveTotal++
		modelPrefersA := thetaA > thetaB
		raterPrefersA := v.Outcome == cohort.AWins
		if modelPrefersA == raterPrefersA {
			decisiveMatches++
		}
	}

	agreement := 1.0
	if decisiveTotal > 0 {
		agreement = float64(decisiveMatches) / float64(decisiveTotal)
	}

	stat := RaterStat{
		RaterID:        raterID,
		Count:          count,
		TieRate:        float64(ties) / float64(count),
		ModelAgreement: agreement,
	}

	if count >= infitMinCount {
		infit, ok := raterInfit(vs, theta)
		if ok {
			stat.HasInfit = true
			stat.Infit = infit
			stat.InfitLabel = infitLabel(infit)
		}
	}

	return stat
}

// raterInfit computes Sum((obs-pAB)^2) / Sum(pAB(1-pAB)) over this rater's
// verdicts, pAB = sigma(thetaA - thetaB), obs in {1, 0.5, 0}.
func raterInfit(vs []cohort.Verdict, theta map[int64]float64) (float64, bool) {
	var numerator, denominator float64
	for _, v := range vs {
		thetaA, okA := theta[v.TextAID]
		thetaB, okB := theta[v.TextBID]
		if !okA || !okB {
			continue
		}
		pAB := 1.0 / (1.0 + math.Exp(thetaB-thetaA))
		obs := 0.0
		switch v.Outcome {
		case cohort.AWins:
			obs = 1.0
		case cohort.Tie:
			obs = 0.5
		case cohort.BWins:
			obs = 0.0
		}
		numerator += (obs - pAB) * (obs - pAB)
		denominator += pAB * (1 - pAB)
	}
	if denominator <= 1e-12 {
		return 0, false
	}
	return numerator / denominator, true
}

func infitLabel(infit float64) string {
	switch {
	case infit <= 1.2:
		return "consistent"
	case infit <= 1.5:
		return "inconsistent"
	default:
		return "careless"
	}
}

// findDisagreements reports every pair with verdicts from >= 2 distinct
// raters containing both a vote for the lower-id text and a vote for the
// higher-id text. Votes are normalised to the canonical (min, max)
// orientation so it does not matter which verdict happened to list A/B in
// which order.
func findDisagreements(verdicts []cohort.Verdict) []Disagreement {
	type pairInfo struct {
		lo, hi         int64
		votes          []DisagreementVote
		loWins, hiWins int
	}
	byPair := make(map[string]*pairInfo)
	order := make([]string, 0)

	for _, v := range verdicts {
		if v.Outcome == cohort.Tie {
			continue
		}
		lo, hi := v.TextAID, v.TextBID
		if lo > hi {
			lo, hi = hi, lo
		}
		var winner int64
		if v.Outcome == cohort.AWins {
			winner = v.TextAID
		} else {
			winner = v.TextBID
		}

		key := v.EffectivePairKey()
		pi, ok := byPair[key]
		if !ok {
			pi = &pairInfo{lo: lo, hi: hi}
			byPair[key] = pi
			order = append(order, key)
		}
		pi.votes = append(pi.votes, DisagreementVote{RaterID: v.EffectiveRaterID(), WinnerTextID: winner})
		if winner == pi.lo {
			pi.loWins++
		} else {
			pi.hiWins++
		}
	}

	out := make([]Disagreement, 0)
	for _, key := range order {
		pi := byPair[key]
		if pi.loWins == 0 || pi.hiWins == 0 {
			continue
		}
		raters := make(map[string]struct{})
		for _, vote := range pi.votes {
			raters[vote.RaterID] = struct{}{}
		}
		if len(raters) < 2 {
			continue
		}
		disagreementCount := pi.loWins
		if pi.hiWins < disagreementCount {
			disagreementCount = pi.hiWins
		}
		out = append(out, Disagreement{
			PairKey:           key,
			TextAID:           pi.lo,
			TextBID:           pi.hi,
			Votes:             pi.votes,
			DisagreementCount: disagreementCount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DisagreementCount > out[j].DisagreementCount })
	return out
}
