// Package rng wraps a single seeded pseudo-random source used by the
// economy process. math/rand (not math/rand/v2) is used deliberately: it
// exposes a restartable *rand.Rand object seeded from one int64, matching
// the reference implementation's random.Random(seed) object model, and no
// repository in the retrieval corpus reaches for a dedicated
// distribution/statistics library for Gaussian or uniform draws.
package rng

import "math/rand"

// Source is a deterministic draw source. The economy process holds its
// own *Source (never a package-level *rand.Rand), so two scenarios with
// different seeds never interfere.
type Source struct {
	r *rand.Rand
}

// New constructs a Source seeded deterministically from seed.
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Gaussian draws one sample from the standard normal distribution.
func (s *Source) Gaussian() float64 {
	return s.r.NormFloat64()
}

// Uniform draws one sample from U(0,1).
func (s *Source) Uniform() float64 {
	return s.r.Float64()
}
