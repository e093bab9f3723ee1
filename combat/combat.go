// Package combat implements the single-move damage/accuracy/crit pipeline
// of spec §4.7: accuracy rolls, critical-hit tiers, and the exact-fraction
// damage formula of spec §4.8.
package combat

import (
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/prng"
	"github.com/louisbranch/battlecore/state"
)

// RandomPolicy selects how the damage formula's [85,100] random factor is
// drawn, per spec §9 config surface.
type RandomPolicy struct {
	Mode  RandomMode
	Exact int // only used when Mode == RandomExact
}

type RandomMode int

const (
	RandomRandomized RandomMode = iota
	RandomMin
	RandomMax
	RandomExact
)

// Roll returns the random factor numerator (denominator is always 100).
func (p RandomPolicy) Roll(rng prng.Generator) int64 {
	switch p.Mode {
	case RandomMin:
		return 85
	case RandomMax:
		return 100
	case RandomExact:
		return int64(p.Exact)
	default:
		return prng.Range(rng, 85, 101)
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// WeatherMultiplier returns the weather damage multiplier for a move of
// moveType under the given weather ID, as an exact fraction. Unknown or no
// weather is neutral.
func WeatherMultiplier(moveType catalog.Type, weather catalog.Id) (num, den int64) {
	switch weather {
	case catalog.NewId("sunny-day"), catalog.NewId("drought"):
		switch moveType {
		case "Fire":
			return 3, 2
		case "Water":
			return 1, 2
		}
	case catalog.NewId("rain-dance"), catalog.NewId("drizzle"):
		switch moveType {
		case "Water":
			return 3, 2
		case "Fire":
			return 1, 2
		}
	}
	return 1, 1
}

// DamageInputs bundles the immutable-for-this-calculation values the
// formula in spec §4.8 reads. AttackStat/DefenseStat are the already
// boost-staged, ability/item/status-modified values (the event pipeline's
// responsibility, not combat's); combat only does the arithmetic.
type DamageInputs struct {
	Level       int
	BasePower   int
	AttackStat  int
	DefenseStat int

	IsSpread bool
	IsCrit   bool

	MoveType       catalog.Type
	AttackerTypes  []catalog.Type
	DefenderTypes  []catalog.Type
	Adaptability   bool
	Weather        catalog.Id
	AttackerBurned bool
	IsPhysical     bool
	BypassBurn     bool

	TypeChart catalog.TypeChart

	// OtherModifiers are additional exact-fraction multipliers collected
	// from modify-damage event callbacks (items, abilities, screens).
	OtherModifiers []Fraction

	Random RandomPolicy
}

// Fraction is an exact rational multiplier.
type Fraction struct{ Num, Den int64 }

// Result is the computed damage plus the intermediate facts a Log entry
// needs (type effectiveness, whether the hit was immune).
type Result struct {
	Damage        int
	TypeEffNum    int64
	TypeEffDen    int64
	Immune        bool
	STAB          bool
	CriticalHit   bool
}

// Calculate runs the spec §4.8 damage formula to completion, in the
// documented order, using exact integer fraction arithmetic throughout and
// flooring only at the documented checkpoints.
func Calculate(in DamageInputs, rng prng.Generator) Result {
	typeEffNum, typeEffDen := in.TypeChart.Multiplier(in.MoveType, in.DefenderTypes...)
	if typeEffNum == 0 {
		return Result{Damage: 0, TypeEffNum: 0, TypeEffDen: typeEffDen, Immune: true}
	}

	levelFactor := int64(2*in.Level/5) + 2
	raw := floorDiv(floorDiv(levelFactor*int64(in.BasePower)*int64(in.AttackStat), int64(in.DefenseStat)), 50) + 2

	num, den := raw, int64(1)

	if in.IsSpread {
		num, den = num*3, den*4
	}

	wNum, wDen := WeatherMultiplier(in.MoveType, in.Weather)
	num, den = num*wNum, den*wDen

	if in.IsCrit {
		num, den = num*3, den*2
	}

	randNum := in.Random.Roll(rng)
	num, den = num*randNum, den*100

	stab := false
	for _, t := range in.AttackerTypes {
		if t == in.MoveType {
			stab = true
			break
		}
	}
	if stab {
		if in.Adaptability {
			num, den = num*2, den*1
		} else {
			num, den = num*3, den*2
		}
	}

	num, den = num*int64(typeEffNum), den*int64(typeEffDen)

	if in.AttackerBurned && in.IsPhysical && !in.BypassBurn {
		num, den = num*1, den*2
	}

	for _, m := range in.OtherModifiers {
		if m.Den == 0 {
			continue
		}
		num, den = num*m.Num, den*m.Den
	}

	damage := floorDiv(num, den)
	if damage < 0 {
		damage = 0
	}
	return Result{
		Damage:      int(damage),
		TypeEffNum:  int64(typeEffNum),
		TypeEffDen:  int64(typeEffDen),
		STAB:        stab,
		CriticalHit: in.IsCrit,
	}
}

// EffectiveAccuracy computes base_acc * acc_stage_modifier * chained
// modify-accuracy fractions, per spec §4.7 step 5. callbacks are applied
// in the order given (the event dispatcher is responsible for ordering
// them before calling this).
func EffectiveAccuracy(base uint8, accuracyStage, evasionStage int, callbacks []Fraction) (num, den int64) {
	num, den = int64(base), 1
	accNum, accDen := state.AccuracyEvasionStageMultiplier(accuracyStage)
	num, den = num*int64(accNum), den*int64(accDen)
	evaNum, evaDen := state.AccuracyEvasionStageMultiplier(-evasionStage)
	num, den = num*int64(evaNum), den*int64(evaDen)
	for _, c := range callbacks {
		if c.Den == 0 {
			continue
		}
		num, den = num*c.Num, den*c.Den
	}
	return num, den
}

// AccuracyRoll draws the [0,99] roll and reports whether it is a hit
// (roll < effective accuracy, expressed as the num/den fraction of 100).
// Accuracy-exempt moves must never call this: the accuracy roll is not
// consumed from the PRNG for them (spec §8).
func AccuracyRoll(rng prng.Generator, accNum, accDen int64) (hit bool, roll int64) {
	roll = prng.Range(rng, 0, 100)
	// accNum/accDen is already expressed on the 0-100 percent scale (the
	// base accuracy times dimensionless stage/event multipliers), so the
	// effective threshold is just its floor, not a further *100 scaling.
	effective := floorDiv(accNum, accDen)
	return roll < effective, roll
}

// CritTable maps a crit tier (0-based, after ratio + stage additions) to
// its hit probability as num/den, the classic 1/24, 1/8, 1/2, always
// progression documented in spec §4.7 step 6.
var CritTable = []Fraction{
	{Num: 1, Den: 24},
	{Num: 1, Den: 8},
	{Num: 1, Den: 2},
	{Num: 1, Den: 1},
}

// CritRoll draws a crit check at the given tier (clamped to the table's
// range) and reports whether it is a critical hit.
func CritRoll(rng prng.Generator, tier int) bool {
	if tier < 0 {
		tier = 0
	}
	if tier >= len(CritTable) {
		tier = len(CritTable) - 1
	}
	f := CritTable[tier]
	if f.Den == 1 {
		return true
	}
	return prng.Chance(rng, uint64(f.Num), uint64(f.Den))
}
