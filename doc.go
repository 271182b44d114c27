// Package judgement (cmpjudge) turns a set of pairwise "which text is
// better" verdicts into a stable rank order, interpretable grades, and
// calibrated reliability diagnostics.
//
// What is cmpjudge?
//
//	A synchronous, in-memory analytics engine for comparative judgement:
//
//	  - Verdict canonicalisation: moderator overrides and rater revisions
//	    collapse into one effective verdict per pair.
//	  - A regularised Bradley-Terry fit with Hessian-based standard errors
//	    and Rasch-style infit residuals.
//	  - Anchor-calibrated and raw grade mapping.
//	  - Cohort and rater reliability diagnostics, including a split-half
//	    coefficient and an adaptive next-batch pair scheduler.
//
// Why this shape?
//
//   - Pure            — every exported function is a pure transform over
//     borrowed inputs; no I/O, no global state.
//   - Deterministic   — identical inputs always produce identical outputs,
//     including the Monte-Carlo split-half estimate (seeded PRNG).
//   - Boundary-free    — storage, UI, document parsing and rendering are
//     someone else's problem; this module only does the math.
//
// Under the hood, everything is organized under small, single-purpose
// subpackages:
//
//	cohort/       — shared data model: texts, anchors, grading config
//	verdict/      — canonicalisation of raw verdicts into the effective set
//	connectivity/ — union-find connectivity over the comparison graph
//	btfit/        — the Bradley-Terry fit: theta, standard errors, infit
//	grading/      — raw and anchor-calibrated grade mapping
//	reliability/  — cohort verdict and robust ladder assessment
//	raterstats/   — per-rater diagnostics and disagreement detection
//	splithalf/    — Monte-Carlo split-half reliability
//	scheduler/    — adaptive next-batch pair scheduler
//	engine/       — facade wiring the above into the eight public operations
//
// See SPEC_FULL.md and DESIGN.md in the repository root for the full
// requirements and the grounding behind each package.
package judgement
