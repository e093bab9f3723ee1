package battle

import (
	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/battleerr"
	"github.com/louisbranch/battlecore/battlelog"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/state"
)

// natureTable is the canonical 25-nature grid; only the boosted/dropped
// pair matters for ComputeStats (spec §4.8).
var natureTable = map[string]state.Nature{
	"hardy": {Name: "Hardy"}, "lonely": {Name: "Lonely", Boosted: state.StatAtk, Dropped: state.StatDef},
	"brave": {Name: "Brave", Boosted: state.StatAtk, Dropped: state.StatSpe},
	"adamant": {Name: "Adamant", Boosted: state.StatAtk, Dropped: state.StatSpA},
	"naughty": {Name: "Naughty", Boosted: state.StatAtk, Dropped: state.StatSpD},
	"bold": {Name: "Bold", Boosted: state.StatDef, Dropped: state.StatAtk},
	"docile": {Name: "Docile"},
	"relaxed": {Name: "Relaxed", Boosted: state.StatDef, Dropped: state.StatSpe},
	"impish": {Name: "Impish", Boosted: state.StatDef, Dropped: state.StatSpA},
	"lax": {Name: "Lax", Boosted: state.StatDef, Dropped: state.StatSpD},
	"timid": {Name: "Timid", Boosted: state.StatSpe, Dropped: state.StatAtk},
	"hasty": {Name: "Hasty", Boosted: state.StatSpe, Dropped: state.StatDef},
	"serious": {Name: "Serious"},
	"jolly": {Name: "Jolly", Boosted: state.StatSpe, Dropped: state.StatSpA},
	"naive": {Name: "Naive", Boosted: state.StatSpe, Dropped: state.StatSpD},
	"modest": {Name: "Modest", Boosted: state.StatSpA, Dropped: state.StatAtk},
	"mild": {Name: "Mild", Boosted: state.StatSpA, Dropped: state.StatDef},
	"quiet": {Name: "Quiet", Boosted: state.StatSpA, Dropped: state.StatSpe},
	"bashful": {Name: "Bashful"},
	"rash": {Name: "Rash", Boosted: state.StatSpA, Dropped: state.StatSpD},
	"calm": {Name: "Calm", Boosted: state.StatSpD, Dropped: state.StatAtk},
	"gentle": {Name: "Gentle", Boosted: state.StatSpD, Dropped: state.StatDef},
	"sassy": {Name: "Sassy", Boosted: state.StatSpD, Dropped: state.StatSpe},
	"careful": {Name: "Careful", Boosted: state.StatSpD, Dropped: state.StatSpA},
	"quirky": {Name: "Quirky"},
}

func natureByName(name string) state.Nature {
	if n, ok := natureTable[catalog.NewId(name).String()]; ok {
		return n
	}
	return state.Nature{Name: "Hardy"}
}

// Start transitions the battle out of Preparing: it instantiates every
// player's pending team into live Mons, assigns active slots, and produces
// the first request. Per spec §4.12, it goes to TeamPreview first if the
// rules require it, otherwise straight to Turn.
func (b *Battle) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StatePreparing {
		return battleerr.New(battleerr.CodeInvalidChoice, "battle is not in Preparing")
	}

	globalIdx := 0
	for _, side := range b.sides {
		for range side.Players {
			team := b.pendingTeams[globalIdx]
			if len(team) == 0 {
				return battleerr.Newf(battleerr.CodeValidation, "player %d has no team", globalIdx)
			}
			result := b.ruleset().Validate(b.teamMembers(team))
			if !result.Legal() {
				return battleerr.Newf(battleerr.CodeValidation, "player %d team is illegal: %v", globalIdx, result.Problems)
			}
			globalIdx++
		}
	}

	globalIdx = 0
	for si, side := range b.sides {
		for _, player := range side.Players {
			team := b.pendingTeams[globalIdx]
			for _, member := range team {
				handle, err := b.instantiateMon(si, player.Index, member)
				if err != nil {
					return err
				}
				player.Team = append(player.Team, handle)
			}
			globalIdx++
		}
	}

	if b.options.RequiresTeamPreview {
		b.state = StateTeamPreview
		b.buildTeamPreviewRequests()
		return nil
	}

	for _, side := range b.sides {
		for _, player := range side.Players {
			if len(player.Team) > 0 {
				player.Active = []arena.MonHandle{player.Team[0]}
				b.activateMon(player.Team[0])
			}
		}
	}
	b.state = StateTurn
	b.log.Append("turn", battlelog.Public, battlelog.KV{Key: "turn", Value: "1"})
	b.buildTurnRequests()
	return nil
}

func (b *Battle) instantiateMon(sideIdx, playerIdx int, m TeamMemberInput) (arena.MonHandle, error) {
	sp, ok, err := b.store.SpeciesByName(m.Species)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, battleerr.Newf(battleerr.CodeNotFound, "unknown species %q", m.Species)
	}
	level := m.Level
	if level == 0 {
		level = 100
	}
	nature := natureByName(m.Nature)
	stats := state.ComputeStats(sp.BaseStats, m.IVs, m.EVs, level, nature)

	moves := make([]state.MoveSlot, 0, len(m.Moves))
	for _, moveName := range m.Moves {
		md, ok, err := b.store.MoveByName(moveName)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, battleerr.Newf(battleerr.CodeNotFound, "unknown move %q", moveName)
		}
		moves = append(moves, state.MoveSlot{Move: md.ID, PP: md.PP, MaxPP: md.PP})
	}

	nickname := m.Nickname
	if nickname == "" {
		nickname = sp.Name
	}

	ability := catalog.NewId(m.Ability)
	if ability.IsEmpty() && len(sp.Abilities) > 0 {
		ability = sp.Abilities[0]
	}

	mon := state.Mon{
		Player:     playerIdx,
		Species:    sp.ID,
		Nickname:   nickname,
		Level:      level,
		Gender:     m.Gender,
		Nature:     nature,
		IVs:        m.IVs,
		EVs:        m.EVs,
		Base:       stats,
		CurrentHP:  stats.HP,
		MaxHP:      stats.HP,
		Ability:    ability,
		Item:       catalog.NewId(m.Item),
		Moves:      moves,
		Types:      append([]catalog.Type(nil), sp.Types...),
		Volatiles:  state.Volatiles{},
		StatusData: map[string]int64{},
	}
	handle := b.mons.Insert(mon)
	ref, done, err := b.mons.GetMut(handle)
	if err != nil {
		return 0, err
	}
	ref.Handle = handle
	done()
	return handle, nil
}

func (b *Battle) activateMon(h arena.MonHandle) {
	ref, done, err := b.mons.GetMut(h)
	if err != nil {
		return
	}
	ref.Pos.Active = true
	done()
}
