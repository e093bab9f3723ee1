// Package state holds the mutable battle state: Mon, Side, Player, Field,
// and the stat/boost arithmetic spec §4.8 defines over them.
package state

import "github.com/louisbranch/battlecore/catalog"

// Stat identifies one of a Mon's six computed stats or its accuracy/evasion
// stages (which are tracked the same way but never have a base/IV/EV form).
type Stat int

const (
	StatHP Stat = iota
	StatAtk
	StatDef
	StatSpA
	StatSpD
	StatSpe
	StatAccuracy
	StatEvasion
)

var statNames = [...]string{"hp", "atk", "def", "spa", "spd", "spe", "accuracy", "evasion"}

func (s Stat) String() string {
	if int(s) < 0 || int(s) >= len(statNames) {
		return "unknown"
	}
	return statNames[s]
}

// Nature biases one stat up 10% and another down 10%; Neutral affects
// neither. Boosted/Dropped equal to StatHP means "no effect on that side"
// since HP is never nature-modified (spec §4.8 formula has no nature term
// for HP).
type Nature struct {
	Name    string
	Boosted Stat
	Dropped Stat
}

// Multiplier returns the nature's multiplier on stat as an exact fraction.
func (n Nature) Multiplier(stat Stat) (num, den int) {
	switch {
	case stat == n.Boosted && n.Boosted != n.Dropped:
		return 11, 10
	case stat == n.Dropped && n.Boosted != n.Dropped:
		return 9, 10
	default:
		return 1, 1
	}
}

// IVs and EVs are the per-stat values ComputeStats pairs with catalog base
// stats to compute the stat line at battle creation.
type IVs struct{ HP, Atk, Def, SpA, SpD, Spe int }
type EVs struct{ HP, Atk, Def, SpA, SpD, Spe int }

// Stats is a computed stat line (not boosted).
type Stats struct{ HP, Atk, Def, SpA, SpD, Spe int }

// ComputeStats applies the spec §4.8 formula to derive a Mon's stat line at
// the given level, from its species base stats, IVs, EVs, and nature.
func ComputeStats(base catalog.BaseStats, iv IVs, ev EVs, level int, nature Nature) Stats {
	hp := floorDiv((2*base.HP+iv.HP+floorDiv(ev.HP, 4))*level, 100) + level + 10
	other := func(b, i, e int, stat Stat) int {
		raw := floorDiv((2*b+i+floorDiv(e, 4))*level, 100) + 5
		num, den := nature.Multiplier(stat)
		return floorDiv(raw*num, den)
	}
	return Stats{
		HP:  hp,
		Atk: other(base.Atk, iv.Atk, ev.Atk, StatAtk),
		Def: other(base.Def, iv.Def, ev.Def, StatDef),
		SpA: other(base.SpA, iv.SpA, ev.SpA, StatSpA),
		SpD: other(base.SpD, iv.SpD, ev.SpD, StatSpD),
		Spe: other(base.Spe, iv.Spe, ev.Spe, StatSpe),
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Get returns the unboosted value of stat from a Stats line. StatHP,
// StatAccuracy, and StatEvasion have no entry here (HP has no stage;
// accuracy/evasion have no base value) and return 0.
func (s Stats) Get(stat Stat) int {
	switch stat {
	case StatAtk:
		return s.Atk
	case StatDef:
		return s.Def
	case StatSpA:
		return s.SpA
	case StatSpD:
		return s.SpD
	case StatSpe:
		return s.Spe
	default:
		return 0
	}
}

// Boosts tracks the eight stage counters, each clamped to [-6, +6].
type Boosts struct {
	values [8]int
}

// Get returns the current stage for stat.
func (b Boosts) Get(stat Stat) int { return b.values[stat] }

// Apply adds delta stages to stat, clamping to [-6, +6], and reports the
// stage actually applied (may be less than delta if it saturated) plus
// whether the stage changed at all (false means "fail", per spec §8
// boundary behavior: a stage already at the cap cannot move further).
func (b *Boosts) Apply(stat Stat, delta int) (applied int, changed bool) {
	before := b.values[stat]
	after := before + delta
	if after > 6 {
		after = 6
	}
	if after < -6 {
		after = -6
	}
	b.values[stat] = after
	return after - before, after != before
}

// Reset clears all stages to zero (used on switch-out for non-persistent
// formats, and by Haze-like effects).
func (b *Boosts) Reset() { b.values = [8]int{} }

// boostStageNumerators mirrors the classic 2/2..2/8, 3/2..8/2 progression
// for stages -6..+6, indexed by stage+6.
var boostStageNumerators = [13]int{2, 2, 2, 2, 2, 2, 2, 3, 4, 5, 6, 7, 8}
var boostStageDenominators = [13]int{8, 7, 6, 5, 4, 3, 2, 2, 2, 2, 2, 2, 2}

// StageMultiplier returns the exact multiplier fraction for a boost stage
// (clamped to [-6,+6] before lookup).
func StageMultiplier(stage int) (num, den int) {
	if stage > 6 {
		stage = 6
	}
	if stage < -6 {
		stage = -6
	}
	idx := stage + 6
	return boostStageNumerators[idx], boostStageDenominators[idx]
}

// AccuracyEvasionStageMultiplier uses the 3-based progression traditionally
// reserved for accuracy/evasion stages, which move in thirds rather than
// halves.
func AccuracyEvasionStageMultiplier(stage int) (num, den int) {
	if stage > 6 {
		stage = 6
	}
	if stage < -6 {
		stage = -6
	}
	if stage >= 0 {
		return 3 + stage, 3
	}
	return 3, 3 - stage
}
