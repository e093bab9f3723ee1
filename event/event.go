// Package event implements the engine's event dispatch: collecting
// candidate effect callbacks for a named event, sorting them by the
// documented (order, priority, speed, sub-order, tie-policy) key, and
// invoking them in turn with short-circuit semantics, per spec §4.5.
package event

import (
	"sort"

	"github.com/louisbranch/battlecore/fxlang"
	"github.com/louisbranch/battlecore/prng"
)

// Scope identifies which kind of effect a Candidate's callback came from,
// mirroring the Effect variants of spec §3.
type Scope int

const (
	ScopeAbility Scope = iota
	ScopeItem
	ScopeStatus
	ScopeVolatile
	ScopeSideCondition
	ScopeSlotCondition
	ScopeField
	ScopeMove
	ScopeClause
)

// TiePolicy resolves equal-key candidates, configured at battle creation
// (spec §9 config surface).
type TiePolicy int

const (
	TieRandom TiePolicy = iota
	TieKeep
	TieReverse
)

// Candidate is one effect's callback for the event currently being
// dispatched, along with the sort/suppression metadata spec §4.5 step 1-2
// describes.
type Candidate struct {
	EffectID string
	Scope    Scope
	Program  fxlang.Program
	Context  *fxlang.Context

	Order    int
	Priority int
	Speed    int
	SubOrder int

	IgnoresAbilitySuppression bool
}

// ShortCircuit decides, given a callback's output and the context it ran
// in, whether dispatch should stop invoking further candidates. Each event
// passes the function matching its own documented semantics (spec §4.5:
// "immunity stops on first true", "before-move stops on first fail", etc).
type ShortCircuit func(ctx *fxlang.Context, output fxlang.Value) bool

// StopOnFail is a ShortCircuit that halts as soon as a callback calls
// fail()/stop(), used by before-move-style events.
func StopOnFail(ctx *fxlang.Context, output fxlang.Value) bool { return ctx.Failed }

// StopOnTrue is a ShortCircuit for boolean immunity-style events: stop as
// soon as a callback's output is truthy.
func StopOnTrue(_ *fxlang.Context, output fxlang.Value) bool { return output.Truthy() }

// Never never short-circuits; used for chaining events like
// modify-damage where every candidate must run.
func Never(*fxlang.Context, fxlang.Value) bool { return false }

// Dispatcher runs events against a fixed fxlang.Runtime and PRNG (needed
// only to break ties under the "random" policy).
type Dispatcher struct {
	runtime *fxlang.Runtime
	rng     prng.Generator
	policy  TiePolicy
}

// NewDispatcher constructs a Dispatcher. rng may be nil if policy is never
// TieRandom.
func NewDispatcher(rng prng.Generator, policy TiePolicy) *Dispatcher {
	return &Dispatcher{runtime: fxlang.NewRuntime(), rng: rng, policy: policy}
}

// FilterSuppressed drops candidates from the target's ability scope that
// do not declare IgnoresAbilitySuppression, per spec §4.5 step 2. Callers
// invoke this only when the active move is flagged to ignore the target's
// ability (e.g. a Mold-Breaker-like effect); otherwise all candidates pass
// through untouched.
func FilterSuppressed(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Scope == ScopeAbility && !c.IgnoresAbilitySuppression {
			continue
		}
		out = append(out, c)
	}
	return out
}

// sortCandidates orders by (order asc, priority desc, speed desc,
// sub-order asc), breaking remaining ties per policy.
func (d *Dispatcher) sortCandidates(candidates []Candidate) {
	indexed := make([]int, len(candidates))
	for i := range indexed {
		indexed[i] = i
	}
	less := func(a, b Candidate) (bool, bool) {
		if a.Order != b.Order {
			return a.Order < b.Order, true
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority, true
		}
		if a.Speed != b.Speed {
			return a.Speed > b.Speed, true
		}
		if a.SubOrder != b.SubOrder {
			return a.SubOrder < b.SubOrder, true
		}
		return false, false
	}
	sort.SliceStable(indexed, func(i, j int) bool {
		lt, decided := less(candidates[indexed[i]], candidates[indexed[j]])
		if decided {
			return lt
		}
		switch d.policy {
		case TieReverse:
			return indexed[i] > indexed[j]
		default:
			// TieKeep and TieRandom both preserve insertion order here;
			// TieRandom's shuffling happens as a distinct pass below so
			// the PRNG draw count for "no ties present" battles stays
			// zero, matching the documented draw-order guarantee.
			return indexed[i] < indexed[j]
		}
	})

	if d.policy == TieRandom {
		shuffleTiedGroups(indexed, candidates, d.rng)
	}

	ordered := make([]Candidate, len(candidates))
	for i, idx := range indexed {
		ordered[i] = candidates[idx]
	}
	copy(candidates, ordered)
}

// shuffleTiedGroups randomizes the relative order of runs of candidates
// that compare fully equal on (order, priority, speed, sub-order), using
// draws from rng. Run boundaries are found on the already-sorted indexed
// sequence.
func shuffleTiedGroups(indexed []int, candidates []Candidate, rng prng.Generator) {
	if rng == nil {
		return
	}
	equalKey := func(a, b Candidate) bool {
		return a.Order == b.Order && a.Priority == b.Priority && a.Speed == b.Speed && a.SubOrder == b.SubOrder
	}
	start := 0
	for start < len(indexed) {
		end := start + 1
		for end < len(indexed) && equalKey(candidates[indexed[start]], candidates[indexed[end]]) {
			end++
		}
		if end-start > 1 {
			prng.Shuffle(rng, indexed[start:end])
		}
		start = end
	}
}

// Failure records one callback's runtime error, for the caller to log as
// debug_event_failure (spec §7: ScriptError is caught per-callback and
// treated as no-op, never aborting the event).
type Failure struct {
	EffectID string
	Err      error
}

// Result is the outcome of one Dispatch call.
type Result struct {
	Output   fxlang.Value
	Failures []Failure
}

// Dispatch sorts candidates and invokes each in turn, threading input to
// output, stopping early when stop reports true.
func (d *Dispatcher) Dispatch(candidates []Candidate, input fxlang.Value, stop ShortCircuit) Result {
	ordered := append([]Candidate(nil), candidates...)
	d.sortCandidates(ordered)

	result := Result{Output: input}
	for _, c := range ordered {
		out, err := d.runtime.Invoke(c.Program, c.Context, result.Output)
		if err != nil {
			result.Failures = append(result.Failures, Failure{EffectID: c.EffectID, Err: err})
			continue
		}
		result.Output = out
		if stop != nil && stop(c.Context, result.Output) {
			break
		}
	}
	return result
}
