package splithalf

import "github.com/cmpjudge/engine/cohort"

// xorshift32 is the PRNG named by spec.md §4.7: identical (seed, splitIndex)
// pairs must always yield identical shuffles, independent of goroutine
// scheduling, so each split gets its own instance seeded deterministically
// rather than sharing one stream.
type xorshift32 struct {
	state uint32
}

// newXorshift32 mixes the base seed and the split index into a non-zero
// starting state. xorshift32 is degenerate at state 0, so 0 is nudged to a
// fixed non-zero value.
func newXorshift32(seed uint32, splitIndex uint32) *xorshift32 {
	state := seed ^ (splitIndex*0x9e3779b9 + 0x6d2b79f5)
	if state == 0 {
		state = 0x6d2b79f5
	}
	return &xorshift32{state: state}
}

// next advances the generator and returns the new state.
func (x *xorshift32) next() uint32 {
	s := x.state
	s ^= s << 13
	s ^= s >> 17
	s ^= s << 5
	x.state = s
	return s
}

// intn returns a uniform value in [0, n) for n > 0.
func (x *xorshift32) intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(x.next() % uint32(n))
}

// fisherYates shuffles vs in place using rng, per spec.md §4.7 point 2.
func fisherYates(vs []cohort.Verdict, rng *xorshift32) {
	for i := len(vs) - 1; i > 0; i-- {
		j := rng.intn(i + 1)
		vs[i], vs[j] = vs[j], vs[i]
	}
}
