// Package prng implements the battle engine's deterministic pseudo-random
// number generator. Every stochastic decision in the engine draws from it in
// a fixed, documented order so that replaying the same initial seed
// reproduces every decision byte-for-byte.
package prng

import (
	"crypto/rand"
	"encoding/binary"
)

// Generator is the interface the engine draws from. A test generator can be
// substituted to force specific values for the Nth draw without changing
// the public interface used by the rest of the engine.
type Generator interface {
	// InitialSeed returns the seed the generator was created with.
	InitialSeed() uint64
	// Next returns the next value in the sequence.
	Next() uint64
}

// lcgMultiplier and lcgIncrement are the Generation V/VI LCRNG constants.
// Preserved exactly so that replays match the reference algorithm the
// engine's determinism properties are specified against.
const (
	lcgMultiplier uint64 = 0x5D588B656C078965
	lcgIncrement  uint64 = 0x0000000000269EC3
)

// LCG is a 64-bit linear congruential generator seeded at battle creation.
type LCG struct {
	initialSeed uint64
	seed        uint64
}

var _ Generator = (*LCG)(nil)

// New creates an LCG with the given seed. Two generators created with the
// same seed produce byte-identical sequences.
func New(seed uint64) *LCG {
	return &LCG{initialSeed: seed, seed: seed}
}

// NewRandomSeed creates an LCG seeded from a cryptographically random
// 64-bit value, for battles that don't pin a seed explicitly.
func NewRandomSeed() (*LCG, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, err
	}
	return New(binary.BigEndian.Uint64(buf[:])), nil
}

// InitialSeed returns the seed the generator was created with.
func (g *LCG) InitialSeed() uint64 { return g.initialSeed }

// Next advances the generator and returns the next drawn value. It uses the
// upper 32 bits of the updated state; the lower bits are predictable in some
// situations and are never handed to callers.
func (g *LCG) Next() uint64 {
	g.seed = g.seed*lcgMultiplier + lcgIncrement
	return g.seed >> 32
}

// Range returns a uniform integer in [lo, hi) (hi exclusive). Panics if
// hi <= lo, which indicates a caller bug, not a runtime data condition.
func Range(g Generator, lo, hi int64) int64 {
	if hi <= lo {
		panic("prng: Range requires hi > lo")
	}
	span := uint64(hi - lo)
	return lo + int64(g.Next()%span)
}

// Chance draws and reports whether the draw falls within num/den,
// i.e. true with probability num/den.
func Chance(g Generator, num, den uint64) bool {
	if den == 0 {
		panic("prng: Chance requires den > 0")
	}
	return g.Next()%den < num
}

// Shuffle performs an in-place Fisher-Yates shuffle using draws from g, in
// strictly descending index order so the draw sequence is deterministic and
// documented.
func Shuffle[T any](g Generator, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := Range(g, 0, int64(i+1))
		s[i], s[j] = s[j], s[i]
	}
}

// Sample draws one uniformly random element from s. Panics on an empty
// slice, a caller bug.
func Sample[T any](g Generator, s []T) T {
	if len(s) == 0 {
		panic("prng: Sample requires a non-empty slice")
	}
	return s[Range(g, 0, int64(len(s)))]
}
