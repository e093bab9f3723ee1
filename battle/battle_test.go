package battle

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/louisbranch/battlecore/battlelog"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/combat"
	"github.com/louisbranch/battlecore/event"
	"github.com/louisbranch/battlecore/fxlang"
	"github.com/louisbranch/battlecore/internal/battletest"
	"github.com/louisbranch/battlecore/request"
	"github.com/louisbranch/battlecore/state"
)

// bulbasaurFixtureStore builds a minimal catalog with one species and one
// move, enough to drive a full Preparing->Turn->Turn battle end to end.
func bulbasaurFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:        catalog.NewId("Tackle"),
		Name:      "Tackle",
		Type:      "Normal",
		Category:  catalog.CategoryPhysical,
		BasePower: 40,
		Accuracy:  catalog.AccuracyChance(100),
		PP:        35,
		Priority:  0,
		Target:    catalog.TargetAdjacentFoe,
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func maxIVs() state.IVs { return state.IVs{HP: 31, Atk: 31, Def: 31, SpA: 31, SpD: 31, Spe: 31} }

func newTestBattle(t *testing.T) *Battle {
	t.Helper()
	store := bulbasaurFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-singles",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())
	return b
}

func TestStaticDamageSinglesScenario(t *testing.T) {
	b := newTestBattle(t)

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "turn", "move", "damage")
	want := []string{
		"turn|turn:1",
		"move|mon:Buddy|name:Tackle",
		"damage|mon:Rival|health:196/231|from:Tackle",
		"turn|turn:2",
	}
	require.Equal(t, want, lines)

	status := b.PublicStatus()
	require.Equal(t, StateTurn, status.State)
	require.Equal(t, 2, status.Turn)
}

func TestValidatePlayerRejectsDuplicateSpeciesBeforeStart(t *testing.T) {
	store := bulbasaurFixtureStore(t)
	options := Options{
		BattleType:  TypeSingles,
		Format:      "test-clause",
		Seed:        0,
		HasSeed:     true,
		RuleClauses: []catalog.Id{catalog.NewId("species-clause")},
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	b, err := Create(store, options, DefaultEngineOptions())
	require.NoError(t, err)

	dup1 := TeamMemberInput{Species: "Bulbasaur", Nickname: "One", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	dup2 := TeamMemberInput{Species: "Bulbasaur", Nickname: "Two", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{dup1, dup2}))

	result := b.ValidatePlayer(0)
	require.False(t, result.Legal())
	require.Contains(t, result.Problems, "Species Bulbasaur appears more than 1 time.")

	err = b.Start()
	require.Error(t, err)
}

func TestFaintedMonEndsBattleWithWinner(t *testing.T) {
	b := newTestBattle(t)

	defHandle := b.sides[1].Players[0].Active[0]
	mon, done, err := b.mons.GetMut(defHandle)
	require.NoError(t, err)
	mon.CurrentHP = 1
	done()

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	status := b.PublicStatus()
	require.Equal(t, StateEnded, status.State)
	require.NotNil(t, status.Outcome)
	require.Equal(t, 0, status.Outcome.Winner)
	require.False(t, status.Outcome.Draw)

	lines := battlelog.FilterTag(b.FullLog(-1), "faint", "win")
	require.Equal(t, []string{"faint|mon:Rival", "win|side:0"}, lines)
}

func TestMakeChoiceRejectsIllegalMoveIndex(t *testing.T) {
	b := newTestBattle(t)
	err := b.MakeChoice(0, "move 9")
	require.Error(t, err)
}

func TestMakeChoiceJSONAcceptsSchemaValidPayload(t *testing.T) {
	b := newTestBattle(t)

	require.NoError(t, b.MakeChoiceJSON(0, []byte(`[{"action":"move","index":0}]`)))
	require.NoError(t, b.MakeChoiceJSON(1, []byte(`[{"action":"pass"}]`)))

	lines := battlelog.FilterTag(b.FullLog(-1), "damage")
	require.Equal(t, []string{"damage|mon:Rival|health:196/231|from:Tackle"}, lines)
}

// brawnFixtureStore is bulbasaurFixtureStore plus a "Brawn" ability whose
// modify-damage callback doubles incoming damage, so the event pipeline
// wired through resolveHitOnTarget has something real to dispatch.
func brawnFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddAbility(catalog.AbilityData{
		ID:   catalog.NewId("Brawn"),
		Name: "Brawn",
		Callbacks: catalog.EffectCallbacks{
			"modify-damage": fxlang.MustProgram(`return {num = input.num * 2, den = input.den}`),
		},
	})
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:        catalog.NewId("Tackle"),
		Name:      "Tackle",
		Type:      "Normal",
		Category:  catalog.CategoryPhysical,
		BasePower: 40,
		Accuracy:  catalog.AccuracyChance(100),
		PP:        35,
		Priority:  0,
		Target:    catalog.TargetAdjacentFoe,
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestDefenderAbilityModifyDamageCallbackAppliesToIncomingHit(t *testing.T) {
	store := brawnFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-brawn",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}, Ability: "Brawn"}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "damage")
	require.Equal(t, []string{"damage|mon:Rival|health:161/231|from:Tackle"}, lines)
}

// recklessFixtureStore is bulbasaurFixtureStore plus a "Reckless" ability
// whose modify-damage callback doubles outgoing damage, assigned to the
// attacker rather than the defender, so collectCandidates' attacker-side
// collection has something real to dispatch.
func recklessFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddAbility(catalog.AbilityData{
		ID:   catalog.NewId("Reckless"),
		Name: "Reckless",
		Callbacks: catalog.EffectCallbacks{
			"modify-damage": fxlang.MustProgram(`return {num = input.num * 2, den = input.den}`),
		},
	})
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:        catalog.NewId("Tackle"),
		Name:      "Tackle",
		Type:      "Normal",
		Category:  catalog.CategoryPhysical,
		BasePower: 40,
		Accuracy:  catalog.AccuracyChance(100),
		PP:        35,
		Priority:  0,
		Target:    catalog.TargetAdjacentFoe,
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestAttackerAbilityModifyDamageCallbackAppliesToOutgoingHit(t *testing.T) {
	store := recklessFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-reckless",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}, Ability: "Reckless"}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "damage")
	require.Equal(t, []string{"damage|mon:Rival|health:161/231|from:Tackle"}, lines)
}

func TestFaintedActiveMonTriggersForcedSwitchRequest(t *testing.T) {
	store := bulbasaurFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-forced-switch",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	defenderLead := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	defenderBench := TeamMemberInput{Species: "Bulbasaur", Nickname: "Bench", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defenderLead, defenderBench}))
	require.NoError(t, b.Start())

	defHandle := b.sides[1].Players[0].Active[0]
	mon, done, err := b.mons.GetMut(defHandle)
	require.NoError(t, err)
	mon.CurrentHP = 1
	done()

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	status := b.PublicStatus()
	require.Equal(t, StateSwitch, status.State)

	req, ok := b.Request(1)
	require.True(t, ok)
	require.Equal(t, request.KindSwitch, req.Kind)
	require.Equal(t, []int{1}, req.Switches[0].EligibleBench)

	require.NoError(t, b.MakeChoice(1, "switch 1"))

	status = b.PublicStatus()
	require.Equal(t, StateTurn, status.State)
	require.Equal(t, 2, status.Turn)
	require.Equal(t, b.sides[1].Players[0].Team[1], b.sides[1].Players[0].Active[0])

	lines := battlelog.FilterTag(b.FullLog(-1), "faint", "switch", "turn")
	require.Equal(t, []string{"turn|turn:1", "faint|mon:Rival", "switch|mon:Bench", "turn|turn:2"}, lines)
}

// stingFixtureStore is bulbasaurFixtureStore plus "Sting", a multi-hit
// move that drains, and secondary-burns its target, so the multi-hit/
// drain/secondary wiring in resolveHitOnTarget has something real to run.
func stingFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:              catalog.NewId("Sting"),
		Name:            "Sting",
		Type:            "Normal",
		Category:        catalog.CategoryPhysical,
		BasePower:       10,
		Accuracy:        catalog.AccuracyExempt,
		PP:              20,
		Priority:        0,
		Target:          catalog.TargetAdjacentFoe,
		MultiHit:        [2]int{2, 2},
		Drain:           &catalog.Fraction{Num: 1, Den: 2},
		SecondaryChance: 100,
		Callbacks: catalog.EffectCallbacks{
			"secondary": fxlang.MustProgram(`set_status(target, "burn")`),
		},
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestMultiHitMoveDrainsAndAppliesItsSecondaryEffect(t *testing.T) {
	store := stingFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-sting",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"Sting"}}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"Sting"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	atkHandle := b.sides[0].Players[0].Active[0]
	mon, done, err := b.mons.GetMut(atkHandle)
	require.NoError(t, err)
	mon.CurrentHP = 200
	done()

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "turn", "move", "damage", "hits", "heal", "status")
	want := []string{
		"turn|turn:1",
		"move|mon:Buddy|name:Sting",
		"damage|mon:Rival|health:216/231|from:Sting",
		"damage|mon:Rival|health:206/231|from:Sting",
		"hits|count:2",
		"heal|mon:Buddy|health:212/231",
		"status|mon:Rival|status:brn",
		"damage|mon:Rival|health:192/231|from:burn",
		"turn|turn:2",
	}
	require.Equal(t, want, lines)
}

func TestBurnStatusResidualDamageTicksEachTurn(t *testing.T) {
	b := newTestBattle(t)

	atkHandle := b.sides[0].Players[0].Active[0]
	mon, done, err := b.mons.GetMut(atkHandle)
	require.NoError(t, err)
	mon.Status = state.StatusBurn
	done()

	require.NoError(t, b.MakeChoice(0, "pass"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "turn", "damage")
	want := []string{
		"turn|turn:1",
		"damage|mon:Buddy|health:217/231|from:burn",
		"turn|turn:2",
	}
	require.Equal(t, want, lines)
}

func TestWeatherResidualExpiresAfterItsDuration(t *testing.T) {
	b := newTestBattle(t)
	b.field.SetWeather(catalog.NewId("rain-dance"), 1, 0)

	require.NoError(t, b.MakeChoice(0, "pass"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "turn", "weather-end")
	want := []string{
		"turn|turn:1",
		"weather-end|weather:rain-dance",
		"turn|turn:2",
	}
	require.Equal(t, want, lines)
	require.Equal(t, catalog.Id(""), b.field.Weather)
}

func TestFlinchCancelsTheMoveThisTurn(t *testing.T) {
	b := newTestBattle(t)

	atkHandle := b.sides[0].Players[0].Active[0]
	mon, done, err := b.mons.GetMut(atkHandle)
	require.NoError(t, err)
	mon.Flags.Flinched = true
	done()

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "turn", "move", "cant", "damage")
	want := []string{
		"turn|turn:1",
		"cant|mon:Buddy|reason:Flinch",
		"turn|turn:2",
	}
	require.Equal(t, want, lines)

	mon, done, err = b.mons.GetMut(atkHandle)
	require.NoError(t, err)
	require.False(t, mon.Flags.Flinched, "flinch is consumed even when it cancels the move")
	done()
}

// dragonRageFixtureStore is bulbasaurFixtureStore plus "DragonRage", a
// fixed-damage move bypassing the damage formula entirely.
func dragonRageFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:          catalog.NewId("DragonRage"),
		Name:        "DragonRage",
		Type:        "Dragon",
		Category:    catalog.CategorySpecial,
		BasePower:   0,
		Accuracy:    catalog.AccuracyChance(100),
		PP:          10,
		Priority:    0,
		Target:      catalog.TargetAdjacentFoe,
		FixedDamage: 40,
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestFixedDamageMoveBypassesTheDamageFormula(t *testing.T) {
	store := dragonRageFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-dragon-rage",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"DragonRage"}}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"DragonRage"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "damage")
	require.Equal(t, []string{"damage|mon:Rival|health:191/231|from:DragonRage"}, lines)
}

// blastOffFixtureStore is bulbasaurFixtureStore plus "BlastOff", a
// Tackle-shaped move flagged SelfDestruct: the user faints after the move
// resolves, hit or miss.
func blastOffFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:           catalog.NewId("BlastOff"),
		Name:         "BlastOff",
		Type:         "Normal",
		Category:     catalog.CategoryPhysical,
		BasePower:    40,
		Accuracy:     catalog.AccuracyChance(100),
		PP:           5,
		Priority:     0,
		Target:       catalog.TargetAdjacentFoe,
		SelfDestruct: true,
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestSelfDestructMoveFaintsTheAttackerAfterItResolves(t *testing.T) {
	store := blastOffFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-blast-off",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"BlastOff"}}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"BlastOff"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "damage", "faint", "win")
	want := []string{
		"damage|mon:Rival|health:196/231|from:BlastOff",
		"damage|mon:Buddy|health:0/231|from:BlastOff",
		"faint|mon:Buddy",
		"win|side:1",
	}
	require.Equal(t, want, lines)
}

// keenFixtureStore is bulbasaurFixtureStore plus "Keen", an ability whose
// modify-crit callback always returns the table's guaranteed-crit tier, so
// dispatchCritTier's chaining has something real to raise.
func keenFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddAbility(catalog.AbilityData{
		ID:   catalog.NewId("Keen"),
		Name: "Keen",
		Callbacks: catalog.EffectCallbacks{
			"modify-crit": fxlang.MustProgram(`return 3`),
		},
	})
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Bulbasaur"),
		Name:      "Bulbasaur",
		Types:     []catalog.Type{"Grass", "Poison"},
		BaseStats: catalog.BaseStats{HP: 45, Atk: 49, Def: 49, SpA: 65, SpD: 65, Spe: 45},
		Abilities: []catalog.Id{catalog.NewId("Overgrow")},
	})
	builder.AddMove(catalog.MoveData{
		ID:        catalog.NewId("Tackle"),
		Name:      "Tackle",
		Type:      "Normal",
		Category:  catalog.CategoryPhysical,
		BasePower: 40,
		Accuracy:  catalog.AccuracyChance(100),
		PP:        35,
		Priority:  0,
		Target:    catalog.TargetAdjacentFoe,
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestAbilityModifyCritCallbackGuaranteesACriticalHit(t *testing.T) {
	store := keenFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-keen",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Bulbasaur", Nickname: "Buddy", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}, Ability: "Keen"}
	defender := TeamMemberInput{Species: "Bulbasaur", Nickname: "Rival", Level: 100, IVs: maxIVs(), Moves: []string{"Tackle"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	// Non-crit baseline (TestStaticDamageSinglesScenario) is 35 damage;
	// CritTable's top tier (den 1, always-crit once reached) multiplies the
	// raw damage by 3/2 before the formula's single final floor division,
	// giving 52 exactly (231-52=179), not merely "more than 35".
	lines := battlelog.FilterTag(b.FullLog(-1), "damage")
	require.Equal(t, []string{"damage|mon:Rival|health:179/231|from:Tackle"}, lines)
}

// groundFixtureStore holds a pure-Ground Diglett and an Electric move, with
// a type chart making Electric deal zero damage to Ground, so the
// immunity-before-accuracy ordering has a real immune matchup to exercise.
func groundFixtureStore(t *testing.T) *catalog.Store {
	t.Helper()
	builder := catalog.NewBuilder()
	builder.AddSpecies(catalog.SpeciesData{
		ID:        catalog.NewId("Diglett"),
		Name:      "Diglett",
		Types:     []catalog.Type{"Ground"},
		BaseStats: catalog.BaseStats{HP: 10, Atk: 55, Def: 25, SpA: 35, SpD: 45, Spe: 95},
	})
	builder.AddMove(catalog.MoveData{
		ID:        catalog.NewId("ThunderShock"),
		Name:      "ThunderShock",
		Type:      "Electric",
		Category:  catalog.CategorySpecial,
		BasePower: 40,
		Accuracy:  catalog.AccuracyChance(100),
		PP:        30,
		Priority:  0,
		Target:    catalog.TargetAdjacentFoe,
	})
	builder.SetTypeChart(catalog.TypeChart{
		Effectiveness: map[catalog.Type]map[catalog.Type]uint8{
			"Electric": {"Ground": 0},
		},
	})
	store, err := builder.Build()
	require.NoError(t, err)
	return store
}

func TestTypeImmunityIsCheckedBeforeTheAccuracyRoll(t *testing.T) {
	store := groundFixtureStore(t)
	options := Options{
		BattleType: TypeSingles,
		Format:     "test-immune",
		Seed:       0,
		HasSeed:    true,
		Sides: []SideSetup{
			{Name: "Side A", Players: []string{"Ash"}},
			{Name: "Side B", Players: []string{"Gary"}},
		},
	}
	engOpts := EngineOptions{
		RandomizeBaseDamage: combat.RandomPolicy{Mode: combat.RandomMax},
		TieResolution:       event.TieKeep,
	}
	b, err := Create(store, options, engOpts)
	require.NoError(t, err)

	attacker := TeamMemberInput{Species: "Diglett", Nickname: "Digger", Level: 100, IVs: maxIVs(), Moves: []string{"ThunderShock"}}
	defender := TeamMemberInput{Species: "Diglett", Nickname: "Mole", Level: 100, IVs: maxIVs(), Moves: []string{"ThunderShock"}}
	require.NoError(t, b.UpdateTeam(0, []TeamMemberInput{attacker}))
	require.NoError(t, b.UpdateTeam(1, []TeamMemberInput{defender}))
	require.NoError(t, b.Start())

	require.NoError(t, b.MakeChoice(0, "move 0"))
	require.NoError(t, b.MakeChoice(1, "pass"))

	lines := battlelog.FilterTag(b.FullLog(-1), "immune", "miss", "damage")
	require.Equal(t, []string{"immune|mon:Mole"}, lines)
}

func TestLogIsReplayIdenticalForTheSameSeed(t *testing.T) {
	first := newTestBattle(t)
	require.NoError(t, first.MakeChoice(0, "move 0"))
	require.NoError(t, first.MakeChoice(1, "pass"))

	second := newTestBattle(t)
	require.NoError(t, second.MakeChoice(0, "move 0"))
	require.NoError(t, second.MakeChoice(1, "pass"))

	require.Equal(t, first.FullLog(-1), second.FullLog(-1))
	require.True(t, battletest.AssertLogContainsTag(second.FullLog(-1), "damage"))
}
