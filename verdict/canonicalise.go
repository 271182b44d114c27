// Package verdict implements C1, the verdict canonicaliser: it reduces a raw
// sequence of (possibly conflicting, possibly superseded, possibly
// moderator-overridden) verdicts down to the "effective" subset that every
// downstream component treats as ground truth.
//
// Algorithm (spec.md §4.1):
//  1. Drop verdicts on a non-existent pair (textAId == textBId, or either id
//     absent from the cohort).
//  2. Group the remainder by canonical pair key.
//  3. Within a group, remove any verdict that another verdict's Supersedes
//     names as its target.
//  4. If any surviving verdict in the group is Final, keep exactly one: the
//     latest by timestamp, ties broken by the larger id.
//  5. Otherwise, bucket by rater (missing -> cohort.UnknownRater) and keep
//     the latest per bucket (timestamp, tie-break id).
//  6. Concatenate every kept verdict; no particular ordering is promised.
//
// EffectiveVerdicts never fails: an empty or fully-invalid input yields an
// empty result.
package verdict

import "github.com/cmpjudge/engine/cohort"

// EffectiveVerdicts reduces raw verdicts to the effective subset used by
// every downstream analytic component. texts supplies the set of valid text
// ids; verdicts referencing an id outside that set are dropped.
//
// Complexity: O(|verdicts|) to group and filter, plus one linear O(k) scan
// per group (or rater bucket) of size k to find the latest entry.
func EffectiveVerdicts(texts []cohort.Text, verdicts []cohort.Verdict) []cohort.Verdict {
	if len(verdicts) == 0 {
		return nil
	}

	validIDs := make(map[int64]struct{}, len(texts))
	for _, t := range texts {
		validIDs[t.ID] = struct{}{}
	}

	// Stage 1: drop self-pairs and verdicts touching an unknown text.
	candidates := make([]cohort.Verdict, 0, len(verdicts))
	for _, v := range verdicts {
		if v.TextAID == v.TextBID {
			continue
		}
		if _, ok := validIDs[v.TextAID]; !ok {
			continue
		}
		if _, ok := validIDs[v.TextBID]; !ok {
			continue
		}
		candidates = append(candidates, v)
	}
	if len(candidates) == 0 {
		return nil
	}

	// Stage 2: group by canonical pair key.
	groups := make(map[string][]cohort.Verdict, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, v := range candidates {
		key := v.EffectivePairKey()
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], v)
	}

	result := make([]cohort.Verdict, 0, len(candidates))
	for _, key := range order {
		result = append(result, effectiveForGroup(groups[key])...)
	}
	return result
}

// effectiveForGroup resolves a single pair's worth of candidate verdicts.
func effectiveForGroup(group []cohort.Verdict) []cohort.Verdict {
	// Stage 3: drop superseded verdicts.
	superseded := make(map[int64]struct{})
	for _, v := range group {
		if v.HasSupersedes {
			superseded[v.SupersedesID] = struct{}{}
		}
	}
	remaining := make([]cohort.Verdict, 0, len(group))
	for _, v := range group {
		if _, gone := superseded[v.ID]; gone {
			continue
		}
		remaining = append(remaining, v)
	}
	if len(remaining) == 0 {
		return nil
	}

	// Stage 4: a moderator Final verdict wins the whole pair outright.
	var finals []cohort.Verdict
	for _, v := range remaining {
		if v.Final {
			finals = append(finals, v)
		}
	}
	if len(finals) > 0 {
		return []cohort.Verdict{latestOf(finals)}
	}

	// Stage 5: otherwise, latest verdict per rater bucket.
	byRater := make(map[string][]cohort.Verdict)
	raterOrder := make([]string, 0, len(remaining))
	for _, v := range remaining {
		rid := v.EffectiveRaterID()
		if _, seen := byRater[rid]; !seen {
			raterOrder = append(raterOrder, rid)
		}
		byRater[rid] = append(byRater[rid], v)
	}

	kept := make([]cohort.Verdict, 0, len(raterOrder))
	for _, rid := range raterOrder {
		kept = append(kept, latestOf(byRater[rid]))
	}
	return kept
}

// latestOf returns the verdict with the greatest CreatedAt, ties broken by
// the larger id.
func latestOf(vs []cohort.Verdict) cohort.Verdict {
	best := vs[0]
	for _, v := range vs[1:] {
		if v.CreatedAt > best.CreatedAt ||
			(v.CreatedAt == best.CreatedAt && v.ID > best.ID) {
			best = v
		}
	}
	return best
}
