package event

import (
	"testing"

	"github.com/louisbranch/battlecore/fxlang"
	"github.com/louisbranch/battlecore/prng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopHost struct{}

func (noopHost) Damage(*fxlang.Context, uint64, int64, string) (int64, error)    { return 0, nil }
func (noopHost) Heal(*fxlang.Context, uint64, int64) (int64, error)              { return 0, nil }
func (noopHost) Boost(*fxlang.Context, uint64, string, int64) (int64, error)     { return 0, nil }
func (noopHost) AddVolatile(*fxlang.Context, uint64, string) (bool, error)       { return false, nil }
func (noopHost) RemoveVolatile(*fxlang.Context, uint64, string) (bool, error)    { return false, nil }
func (noopHost) HasVolatile(*fxlang.Context, uint64, string) bool                { return false }
func (noopHost) SetStatus(*fxlang.Context, uint64, string) (bool, error)         { return false, nil }
func (noopHost) CureStatus(*fxlang.Context, uint64) error                       { return nil }
func (noopHost) Flinch(*fxlang.Context, uint64) error                           { return nil }
func (noopHost) Log(*fxlang.Context, string, map[string]string)                 {}
func (noopHost) TypeEffectiveness(*fxlang.Context, string, []string) (int64, int64) {
	return 2, 2
}
func (noopHost) Chance(*fxlang.Context, int64, int64) bool      { return false }
func (noopHost) RandomRange(*fxlang.Context, int64, int64) int64 { return 0 }
func (noopHost) Stat(*fxlang.Context, uint64, string) int64      { return 0 }

func candidate(effectID string, order, priority, speed int, source string) Candidate {
	return Candidate{
		EffectID: effectID,
		Program:  fxlang.MustProgram(`return input .. "` + source + `"`),
		Context:  &fxlang.Context{EffectID: effectID, Host: noopHost{}},
		Order:    order,
		Priority: priority,
		Speed:    speed,
	}
}

func TestDispatchOrdersByPriorityThenSpeed(t *testing.T) {
	d := NewDispatcher(nil, TieKeep)
	candidates := []Candidate{
		candidate("slow", 0, 0, 10, "-slow"),
		candidate("fast", 0, 0, 100, "-fast"),
		candidate("high-priority", 0, 5, 1, "-prio"),
	}
	result := d.Dispatch(candidates, fxlang.String(""), Never)
	s, _ := result.Output.Str()
	assert.Equal(t, "-prio-fast-slow", s)
}

func TestDispatchStopsOnFail(t *testing.T) {
	d := NewDispatcher(nil, TieKeep)
	failing := Candidate{
		EffectID: "confuse",
		Program:  fxlang.MustProgram(`fail()`),
		Context:  &fxlang.Context{Host: noopHost{}},
	}
	never := Candidate{
		EffectID: "later",
		Program:  fxlang.MustProgram(`return "should-not-run"`),
		Context:  &fxlang.Context{Host: noopHost{}},
		Order:    1,
	}
	result := d.Dispatch([]Candidate{failing, never}, fxlang.Int(0), StopOnFail)
	require.Empty(t, result.Failures)
	n, ok := result.Output.Int()
	require.True(t, ok)
	assert.Equal(t, int64(0), n)
}

func TestDispatchRecordsScriptErrorsAndContinues(t *testing.T) {
	d := NewDispatcher(nil, TieKeep)
	broken := Candidate{
		EffectID: "broken",
		Program:  fxlang.MustProgram(`error("boom")`),
		Context:  &fxlang.Context{Host: noopHost{}},
	}
	ok := Candidate{
		EffectID: "ok",
		Program:  fxlang.MustProgram(`return 9`),
		Context:  &fxlang.Context{Host: noopHost{}},
		Order:    1,
	}
	result := d.Dispatch([]Candidate{broken, ok}, fxlang.Int(0), Never)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "broken", result.Failures[0].EffectID)
	n, _ := result.Output.Int()
	assert.Equal(t, int64(9), n)
}

func TestFilterSuppressedDropsNonIgnorableAbilities(t *testing.T) {
	candidates := []Candidate{
		{EffectID: "volt-absorb", Scope: ScopeAbility, IgnoresAbilitySuppression: false},
		{EffectID: "pressure", Scope: ScopeAbility, IgnoresAbilitySuppression: true},
		{EffectID: "leftovers", Scope: ScopeItem},
	}
	filtered := FilterSuppressed(candidates)
	require.Len(t, filtered, 2)
	assert.Equal(t, "pressure", filtered[0].EffectID)
	assert.Equal(t, "leftovers", filtered[1].EffectID)
}

func TestDispatchTieKeepPreservesInsertionOrder(t *testing.T) {
	d := NewDispatcher(nil, TieKeep)
	candidates := []Candidate{
		candidate("a", 0, 0, 50, "-a"),
		candidate("b", 0, 0, 50, "-b"),
		candidate("c", 0, 0, 50, "-c"),
	}
	result := d.Dispatch(candidates, fxlang.String(""), Never)
	s, _ := result.Output.Str()
	assert.Equal(t, "-a-b-c", s)
}

func TestDispatchTieRandomConsumesPRNGOnlyForTiedGroups(t *testing.T) {
	gen := prng.New(42)
	d := NewDispatcher(gen, TieRandom)
	candidates := []Candidate{
		candidate("a", 0, 0, 50, "-a"),
		candidate("b", 0, 0, 50, "-b"),
	}
	result := d.Dispatch(candidates, fxlang.String(""), Never)
	s, _ := result.Output.Str()
	assert.Contains(t, []string{"-a-b", "-b-a"}, s)
}
