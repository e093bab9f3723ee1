// Package battle implements the engine facade of spec §6: the only
// surface the rest of the system depends on. It wires together catalog,
// prng, arena, fxlang, event, action, combat, request, battlelog, and
// validate into the Preparing/TeamPreview/Turn/Switch/Ended state machine
// of spec §4.12.
package battle

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/combat"
	"github.com/louisbranch/battlecore/event"
)

// ID uniquely identifies one Battle for the lifetime of the owning
// process; callers obtain it from Create.
type ID string

// Type enumerates the supported battle formats. Only Singles drives the
// active-mon-per-side resolution the turn loop implements end to end;
// Doubles/Multi/Triples share the same Side/Player/Mon data shapes (spec
// §3) but are not exercised by a full per-format targeting matrix here —
// see the Open Question decision in DESIGN.md.
type Type int

const (
	TypeSingles Type = iota
	TypeDoubles
	TypeMulti
	TypeTriples
)

// State is a position in the battle-level state machine of spec §4.12.
type State int

const (
	StatePreparing State = iota
	StateTeamPreview
	StateTurn
	StateSwitch
	StateEnded
)

// Outcome records how an Ended battle concluded.
type Outcome struct {
	Winner int // side index, -1 if draw
	Draw   bool
	Error  string
}

// SideSetup is the per-side configuration Options carries at Create time.
type SideSetup struct {
	Name    string
	Players []string // player display names
}

// EngineOptions are the spec §9 "config surface" behavior toggles.
type EngineOptions struct {
	RandomizeBaseDamage combat.RandomPolicy
	TieResolution       event.TiePolicy
	AutoContinue        bool
	MegaEvolutionAllowed bool
	DynamaxAllowed       bool
	ControlledRNG        bool

	// TracerProvider, if set, receives a battle.turn span per turn and a
	// battle.event.dispatch span per dispatched event. Nil leaves tracing
	// a no-op.
	TracerProvider trace.TracerProvider
}

// DefaultEngineOptions returns the documented defaults: randomized damage
// and random tie-breaking.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomRandomized},
		TieResolution:       event.TieRandom,
	}
}

// ServiceOptions are concerns owned by the surrounding service, not the
// engine itself (spec §6 create signature names them separately so the
// engine never has to interpret them).
type ServiceOptions struct {
	RequestTimeout int // seconds; purely informational to the engine
}

// Options configures a new Battle at Create time.
type Options struct {
	BattleType    Type
	Format        string
	Seed          uint64
	HasSeed       bool
	Environment   string
	Sides         []SideSetup
	RuleClauses   []catalog.Id
	RequiresTeamPreview bool
}

// Status is the public, cross-side-visible snapshot returned by
// PublicStatus (spec §6 `battle(battle)`).
type Status struct {
	State   State
	Turn    int
	Sides   int
	Players int
	Outcome *Outcome
}
