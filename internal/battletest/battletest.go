// Package battletest supplies test-only infrastructure for driving a
// deterministic Battle: a forced/scripted PRNG that pins specific draws
// while falling back to a real generator for everything else, and a
// log-assertion helper that checks a subsequence of wire-format entries
// appears in order. Grounded in original_source/battler-test-utils's
// rng.rs (forced RNG) and log_assert.rs (ordered subsequence assertion).
package battletest

import (
	"strings"

	"github.com/louisbranch/battlecore/battlelog"
	"github.com/louisbranch/battlecore/prng"
)

// ForcedGenerator wraps a real prng.Generator and serves a queue of forced
// values before falling back to the wrapped generator. Used to pin "the
// Nth draw comes out as X" scenarios (e.g. forcing a crit roll, a specific
// miss, or a specific multi-hit count) without disturbing every other
// draw's determinism.
type ForcedGenerator struct {
	underlying prng.Generator
	forced     []uint64
	pos        int
}

var _ prng.Generator = (*ForcedGenerator)(nil)

// NewForcedGenerator creates a ForcedGenerator that serves forced, in
// order, before falling back to underlying.
func NewForcedGenerator(underlying prng.Generator, forced ...uint64) *ForcedGenerator {
	return &ForcedGenerator{underlying: underlying, forced: forced}
}

// InitialSeed reports the wrapped generator's seed.
func (f *ForcedGenerator) InitialSeed() uint64 { return f.underlying.InitialSeed() }

// Next returns the next forced value, or delegates to the wrapped
// generator once the forced queue is exhausted.
func (f *ForcedGenerator) Next() uint64 {
	if f.pos < len(f.forced) {
		v := f.forced[f.pos]
		f.pos++
		return v
	}
	return f.underlying.Next()
}

// AssertLogSubsequence reports whether every entry in want appears in got,
// in order, as an exact string match (want need not be contiguous in got).
// This is the "deterministic replay" testable property (spec §8) expressed
// as reusable test infrastructure: callers assert the parts of a log that
// matter to a scenario without pinning down every incidental entry.
func AssertLogSubsequence(got []string, want ...string) (ok bool, missing string) {
	i := 0
	for _, line := range got {
		if i >= len(want) {
			break
		}
		if line == want[i] {
			i++
		}
	}
	if i < len(want) {
		return false, want[i]
	}
	return true, ""
}

// AssertLogContainsTag reports whether any entry in got has the given tag.
func AssertLogContainsTag(got []string, tag string) bool {
	for _, line := range got {
		t, _ := battlelog.ParseEntry(line)
		if t == tag {
			return true
		}
	}
	return false
}

// EntryHasKV reports whether a raw wire-format line carries key:value.
func EntryHasKV(line, key, value string) bool {
	_, parts := battlelog.ParseEntry(line)
	for _, kv := range parts {
		if kv.Key == key && kv.Value == value {
			return true
		}
	}
	return false
}

// FormatKV is a small helper for building expected wire-format lines in
// tests without hand-concatenating "|k:v" segments.
func FormatKV(tag string, pairs ...string) string {
	var b strings.Builder
	b.WriteString(tag)
	for i := 0; i+1 < len(pairs); i += 2 {
		b.WriteByte('|')
		b.WriteString(pairs[i])
		b.WriteByte(':')
		b.WriteString(pairs[i+1])
	}
	return b.String()
}
