package catalog

import "github.com/louisbranch/battlecore/fxlang"

// EffectCallbacks maps an event name (e.g. "on-hit", "residual",
// "modify-damage") to the fxlang program the effect runs for that event.
// Iteration over callbacks elsewhere in the engine never ranges this map
// directly; callers first collect the event names they care about so
// dispatch order is never hash-randomized (spec §9 determinism note).
type EffectCallbacks map[string]fxlang.Program

// Priority and Order name the dispatch-sort fields an effect's callback may
// declare per event. EffectCallbacks carries neither, so dispatch
// candidates built from catalog callbacks leave both at zero.
type Priority int
type Order int

// MoveData is the static, read-only record for one move.
type MoveData struct {
	ID           Id
	Name         string
	Type         Type
	Category     MoveCategory
	BasePower    int
	Accuracy     Accuracy
	PP           int
	Priority     int
	Target       TargetKind
	CritRatio    int // additive stages to the base crit tier
	Flags        []string
	SwitchUser   SwitchType
	MultiHit     [2]int // [min,max] hits, [0,0] means single hit
	Drain        *Fraction
	Recoil       *Fraction
	SecondaryChance int // out of 100, 0 means no secondary
	FixedDamage  int    // bypasses the damage formula entirely when > 0 (e.g. Dragon Rage)
	SelfDestruct bool   // user faints after the move resolves, hit or miss
	Callbacks    EffectCallbacks
}

// Fraction is a simple numerator/denominator pair for static data tables
// (drain/recoil ratios); combat math uses fxlang.Fraction for in-flight
// exact arithmetic, this is just the serializable form.
type Fraction struct {
	Num, Den int
}

// TargetKind enumerates a move's target category (spec §4.7 step 3).
type TargetKind string

const (
	TargetUser             TargetKind = "user"
	TargetAdjacentFoe      TargetKind = "adjacent-foe"
	TargetAllAdjacent      TargetKind = "all-adjacent"
	TargetAllAdjacentFoes  TargetKind = "all-adjacent-foes"
	TargetAny              TargetKind = "any"
	TargetSide             TargetKind = "side"
	TargetField            TargetKind = "field"
	TargetRandomNormal     TargetKind = "random-normal"
	TargetScripted         TargetKind = "scripted"
	TargetAlly             TargetKind = "ally"
)

// SpeciesData is the static record for one species.
type SpeciesData struct {
	ID        Id
	Name      string
	Types     []Type
	BaseStats BaseStats
	Abilities []Id
	HiddenAbility Id
}

// BaseStats holds the six base stat values.
type BaseStats struct {
	HP, Atk, Def, SpA, SpD, Spe int
}

// AbilityData is the static record for one ability.
type AbilityData struct {
	ID        Id
	Name      string
	Flags     []AbilityFlag
	Callbacks EffectCallbacks
}

// ItemData is the static record for one item.
type ItemData struct {
	ID        Id
	Name      string
	Flags     []ItemFlag
	Target    ItemTarget
	Callbacks EffectCallbacks
}

// ConditionData is the static record for a status/volatile/weather/terrain/
// side/slot/field condition or clause-enforced rule.
type ConditionData struct {
	ID        Id
	Name      string
	Duration  int // 0 = indefinite / until cured
	Layerable bool
	MaxLayers int
	Callbacks EffectCallbacks
}

// ClauseData is a format-level rule evaluated at battle start.
type ClauseData struct {
	ID   Id
	Name string
}
