package battle

import (
	"context"
	"fmt"
	"sort"

	"github.com/louisbranch/battlecore/action"
	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/battleerr"
	"github.com/louisbranch/battlecore/battlelog"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/combat"
	"github.com/louisbranch/battlecore/event"
	"github.com/louisbranch/battlecore/fxlang"
	"github.com/louisbranch/battlecore/prng"
	"github.com/louisbranch/battlecore/request"
	"github.com/louisbranch/battlecore/state"
)

// sortedChoiceKeys returns b.choices' player indices in ascending order, so
// action-queue construction never depends on Go's randomized map iteration
// order when two players act with equal priority and speed.
func (b *Battle) sortedChoiceKeys() []int {
	keys := make([]int, 0, len(b.choices))
	for gi := range b.choices {
		keys = append(keys, gi)
	}
	sort.Ints(keys)
	return keys
}

// globalPlayers returns every Player across every Side, in (side, player)
// order, matching the indexing Start/UpdateTeam use.
func (b *Battle) globalPlayers() []*state.Player {
	var out []*state.Player
	for _, side := range b.sides {
		out = append(out, side.Players...)
	}
	return out
}

func (b *Battle) playerSideIndex(globalIdx int) int {
	count := 0
	for si, side := range b.sides {
		if globalIdx < count+len(side.Players) {
			return si
		}
		count += len(side.Players)
	}
	return -1
}

// Request returns the pending request for playerGlobalIndex, or (_, false)
// if the player has nothing to act on right now.
func (b *Battle) Request(playerGlobalIndex int) (request.Request, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.requests[playerGlobalIndex]
	if !ok {
		return request.Request{}, false
	}
	return *req, true
}

// buildTurnRequests computes a fresh Turn request for every player with a
// live active mon and stores them, clearing any previously committed
// choices.
func (b *Battle) buildTurnRequests() {
	b.requests = map[int]*request.Request{}
	b.choices = map[int][]request.SlotChoice{}
	players := b.globalPlayers()
	for gi, p := range players {
		if len(p.Active) == 0 {
			continue
		}
		m, done, err := b.mons.Get(p.Active[0])
		if err != nil {
			continue
		}
		if m.Fainted() {
			done()
			continue
		}
		moves := make([]request.MoveOption, 0, len(m.Moves))
		for i, slot := range m.Moves {
			moves = append(moves, request.MoveOption{
				Slot: i, Move: slot.Move, PP: slot.PP, MaxPP: slot.MaxPP, Disabled: slot.Disabled,
			})
		}
		done()
		req := request.Request{Kind: request.KindTurn, Turn: []request.SlotRequest{
			{Mon: p.Active[0], Moves: moves, CanSwitch: true},
		}}
		b.requests[gi] = &req
	}
}

// buildTeamPreviewRequests issues a TeamPreview request to every player,
// sized to their own team (spec §4.9: "pick an ordering prefix of the
// team, size bounded by format" — the whole team, here).
func (b *Battle) buildTeamPreviewRequests() {
	b.requests = map[int]*request.Request{}
	b.choices = map[int][]request.SlotChoice{}
	for gi, p := range b.globalPlayers() {
		req := request.Request{Kind: request.KindTeamPreview, TeamPreviewSize: len(p.Team)}
		b.requests[gi] = &req
	}
}

// applyTeamPreviewOrder reorders each player's Team per their submitted
// team-order choice and activates the lead mon, then transitions to Turn.
// Caller must hold b.mu.
func (b *Battle) applyTeamPreviewOrder() error {
	players := b.globalPlayers()
	for _, gi := range b.sortedChoiceKeys() {
		choices := b.choices[gi]
		if gi >= len(players) || len(choices) == 0 {
			continue
		}
		p := players[gi]
		order := choices[0].TeamOrder
		reordered := make([]arena.MonHandle, 0, len(p.Team))
		for _, n := range order {
			idx := n - 1
			if idx < 0 || idx >= len(p.Team) {
				return battleerr.Newf(battleerr.CodeInvalidChoice, "team order index %d out of range", n)
			}
			reordered = append(reordered, p.Team[idx])
		}
		if len(reordered) == len(p.Team) {
			p.Team = reordered
		}
		if len(p.Team) > 0 {
			p.Active = []arena.MonHandle{p.Team[0]}
			b.activateMon(p.Team[0])
		}
	}
	b.state = StateTurn
	b.log.Append("turn", battlelog.Public, battlelog.KV{Key: "turn", Value: "1"})
	b.buildTurnRequests()
	return nil
}

// MakeChoice validates choiceText against playerGlobalIndex's current
// request and commits it. Once every expected player has committed a
// choice, the turn runs to completion. Per spec §4.9, an invalid choice
// never mutates state.
func (b *Battle) MakeChoice(playerGlobalIndex int, choiceText string) error {
	choices, err := request.Parse(choiceText)
	if err != nil {
		return err
	}
	return b.commitChoices(playerGlobalIndex, choices)
}

// MakeChoiceJSON is MakeChoice's JSON-wire-format counterpart: payload is
// the schema-validated array-of-segments shape request.ParseJSON accepts,
// for callers that prefer a structured choice payload over choice text.
func (b *Battle) MakeChoiceJSON(playerGlobalIndex int, payload []byte) error {
	choices, err := request.ParseJSON(payload)
	if err != nil {
		return err
	}
	return b.commitChoices(playerGlobalIndex, choices)
}

// commitChoices validates choices against playerGlobalIndex's current
// request and commits them. Once every expected player has committed a
// choice, the turn runs to completion. Per spec §4.9, an invalid choice
// never mutates state.
func (b *Battle) commitChoices(playerGlobalIndex int, choices []request.SlotChoice) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateTurn && b.state != StateSwitch && b.state != StateTeamPreview {
		return battleerr.New(battleerr.CodeInvalidChoice, "the battle is not awaiting a choice")
	}
	req, ok := b.requests[playerGlobalIndex]
	if !ok {
		return battleerr.New(battleerr.CodeInvalidChoice, "player is not currently expected to choose")
	}
	if err := request.Validate(*req, choices); err != nil {
		return err
	}
	b.choices[playerGlobalIndex] = choices

	if len(b.choices) < len(b.requests) {
		return nil
	}
	switch b.state {
	case StateTeamPreview:
		return b.applyTeamPreviewOrder()
	case StateSwitch:
		return b.applyForcedSwitches()
	default:
		return b.runTurn()
	}
}

// runTurn executes every committed choice for the turn, runs the residual
// phase, and either produces the next requests or ends the battle. Caller
// must hold b.mu.
func (b *Battle) runTurn() (err error) {
	_, endSpan := b.tracer.StartTurn(context.Background(), b.field.Turn)
	defer func() { endSpan(err) }()

	queue := action.NewQueue(b.engOpts.TieResolution, b.rng)
	players := b.globalPlayers()

	for _, gi := range b.sortedChoiceKeys() {
		choices := b.choices[gi]
		if gi >= len(players) || len(choices) == 0 {
			continue
		}
		p := players[gi]
		c := choices[0]
		if c.Action != request.ActionMove || len(p.Active) == 0 {
			continue
		}
		mh := p.Active[0]
		m, done, err := b.mons.Get(mh)
		if err != nil {
			continue
		}
		if c.Index < 0 || c.Index >= len(m.Moves) {
			done()
			continue
		}
		moveID := m.Moves[c.Index].Move
		speed := m.EffectiveStat(state.StatSpe)
		done()

		target := b.defaultTarget(gi)
		md, ok, err := b.store.Move(moveID)
		priority := 0
		if err == nil && ok {
			priority = md.Priority
		}

		var targets []arena.MonHandle
		if target != 0 {
			targets = []arena.MonHandle{target}
		}
		queue.Add(action.Action{
			Kind: action.KindBeforeMove, Actor: mh, Player: gi, Move: moveID,
			Targets: targets, Priority: priority, Speed: speed,
		})
		queue.Add(action.Action{
			Kind: action.KindMove, Actor: mh, Player: gi, Move: moveID,
			Targets: targets, Priority: priority, Speed: speed,
		})
	}
	queue.Add(action.Action{Kind: action.KindEnd})

	queue.Sort()
	skipMove := map[arena.MonHandle]bool{}
	for {
		act, ok := queue.Pop()
		if !ok {
			break
		}
		switch act.Kind {
		case action.KindBeforeMove:
			proceed, err := b.runBeforeMoveAction(act)
			if err != nil {
				b.state = StateEnded
				b.outcome = &Outcome{Error: err.Error()}
				b.log.Append("battleerror", battlelog.Public, battlelog.KV{Key: "error", Value: err.Error()})
				return nil
			}
			if !proceed {
				skipMove[act.Actor] = true
			}
		case action.KindMove:
			if skipMove[act.Actor] {
				continue
			}
			if err := b.executeMove(act); err != nil {
				b.state = StateEnded
				b.outcome = &Outcome{Error: err.Error()}
				b.log.Append("battleerror", battlelog.Public, battlelog.KV{Key: "error", Value: err.Error()})
				return nil
			}
		case action.KindEnd:
			if err := b.runResidualPhase(); err != nil {
				b.state = StateEnded
				b.outcome = &Outcome{Error: err.Error()}
				b.log.Append("battleerror", battlelog.Public, battlelog.KV{Key: "error", Value: err.Error()})
				return nil
			}
		default:
			// KindSwitch/KindItem/KindEscape/KindForfeit/KindTeamPreview/
			// KindLearnMove/KindLevelUp/KindExperience have no producer in
			// this turn loop yet; see DESIGN.md.
			continue
		}
		if winner, ended := b.checkWinCondition(); ended {
			b.state = StateEnded
			b.outcome = winner
			if winner.Draw {
				b.log.Append("tie", battlelog.Public)
			} else {
				b.log.Append("win", battlelog.Public, battlelog.KV{Key: "side", Value: fmt.Sprintf("%d", winner.Winner)})
			}
			return nil
		}
	}

	if b.requestForcedSwitches() {
		return nil
	}

	b.advanceToNextTurn()
	return nil
}

// requestForcedSwitches scans every player for a fainted active mon with a
// live bench replacement and, if any exist, transitions the battle to
// StateSwitch with a request for exactly those players (spec §4.6 step 3).
// Reports whether it did so; callers skip straight to the next Turn
// request when it returns false. Caller must hold b.mu.
func (b *Battle) requestForcedSwitches() bool {
	requests := map[int]*request.Request{}
	for gi, p := range b.globalPlayers() {
		if len(p.Active) == 0 {
			continue
		}
		m, done, err := b.mons.Get(p.Active[0])
		if err != nil {
			continue
		}
		fainted := m.Fainted()
		done()
		if !fainted {
			continue
		}
		bench := b.eligibleBenchIndices(p)
		if len(bench) == 0 {
			continue
		}
		requests[gi] = &request.Request{Kind: request.KindSwitch, Switches: []request.SwitchSlot{{Slot: 0, EligibleBench: bench}}}
	}
	if len(requests) == 0 {
		return false
	}
	b.state = StateSwitch
	b.requests = requests
	b.choices = map[int][]request.SlotChoice{}
	return true
}

// eligibleBenchIndices returns p.Team indices that are neither already
// active nor fainted, the legal replacement set for a forced switch.
func (b *Battle) eligibleBenchIndices(p *state.Player) []int {
	active := map[arena.MonHandle]bool{}
	for _, h := range p.Active {
		active[h] = true
	}
	var out []int
	for i, h := range p.Team {
		if active[h] {
			continue
		}
		m, done, err := b.mons.Get(h)
		if err != nil {
			continue
		}
		fainted := m.Fainted()
		done()
		if !fainted {
			out = append(out, i)
		}
	}
	return out
}

// applyForcedSwitches replaces each fainted active slot with the bench mon
// the player chose, logs the switch, and opens the next turn via
// advanceToNextTurn. Caller must hold b.mu.
func (b *Battle) applyForcedSwitches() error {
	players := b.globalPlayers()
	for _, gi := range b.sortedChoiceKeys() {
		choices := b.choices[gi]
		if gi >= len(players) || len(choices) == 0 {
			continue
		}
		p := players[gi]
		c := choices[0]
		if c.Action != request.ActionSwitch || c.Index < 0 || c.Index >= len(p.Team) {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "player %d did not submit a valid forced switch", gi)
		}
		newActive := p.Team[c.Index]
		if len(p.Active) > 0 {
			p.Active[0] = newActive
		} else {
			p.Active = []arena.MonHandle{newActive}
		}
		b.activateMon(newActive)
		name := ""
		if m, done, err := b.mons.Get(newActive); err == nil {
			name = m.Nickname
			done()
		}
		b.log.Append("switch", battlelog.Public, battlelog.KV{Key: "mon", Value: name})
	}
	b.advanceToNextTurn()
	return nil
}

// advanceToNextTurn closes out the current turn: increments the turn
// counter, logs the new turn marker, and issues the next Turn request.
// Caller must hold b.mu.
func (b *Battle) advanceToNextTurn() {
	b.state = StateTurn
	b.field.Turn++
	b.log.Append("turn", battlelog.Public, battlelog.KV{Key: "turn", Value: fmt.Sprintf("%d", b.field.Turn)})
	b.buildTurnRequests()
}

// defaultTarget picks the opposing side's first active mon for a singles
// battle; multi-format targeting (spec §4.7 step 3's full target-category
// resolution) is intentionally out of scope here — see DESIGN.md.
func (b *Battle) defaultTarget(actingPlayerGlobalIdx int) arena.MonHandle {
	actingSide := b.playerSideIndex(actingPlayerGlobalIdx)
	for si, side := range b.sides {
		if si == actingSide {
			continue
		}
		for _, p := range side.Players {
			if len(p.Active) > 0 {
				return p.Active[0]
			}
		}
	}
	return 0
}

// executeMove runs the spec §4.7 combat pipeline for one Move action
// against its resolved target(s).
func (b *Battle) executeMove(act action.Action) error {
	attacker, doneA, err := b.mons.GetMut(act.Actor)
	if err != nil {
		return err
	}
	if attacker.Fainted() {
		doneA()
		return nil
	}
	md, ok, moveErr := b.store.Move(act.Move)
	if moveErr != nil {
		doneA()
		return moveErr
	}
	if !ok {
		doneA()
		return battleerr.Newf(battleerr.CodeInternalInvariant, "move %q not found in catalog", act.Move)
	}

	slotIdx := -1
	for i, s := range attacker.Moves {
		if s.Move == act.Move {
			slotIdx = i
			break
		}
	}
	if slotIdx >= 0 && attacker.Moves[slotIdx].PP > 0 {
		attacker.Moves[slotIdx].PP--
	}

	attackerName := attacker.Nickname
	attackerTypes := append([]catalog.Type(nil), attacker.Types...)
	attackerBurned := attacker.Status == state.StatusBurn
	attackerAbility := attacker.Ability
	attackerItem := attacker.Item
	var attackStat int
	if md.Category == catalog.CategorySpecial {
		attackStat = attacker.EffectiveStat(state.StatSpA)
	} else {
		attackStat = attacker.EffectiveStat(state.StatAtk)
	}
	level := attacker.Level
	doneA()

	b.log.Append("move", battlelog.Public,
		battlelog.KV{Key: "mon", Value: attackerName},
		battlelog.KV{Key: "name", Value: md.Name},
	)

	for _, targetHandle := range act.Targets {
		sides := combatSides{
			attacker: act.Actor, attackerAbility: attackerAbility, attackerItem: attackerItem,
			target: targetHandle,
		}
		if err := b.resolveHitOnTarget(md, sides, level, attackStat, attackerTypes, attackerBurned); err != nil {
			return err
		}
	}

	if md.SelfDestruct {
		host := &fxlangHost{b: b}
		m, done, err := b.mons.Get(act.Actor)
		if err != nil {
			return err
		}
		hp := m.CurrentHP
		done()
		if hp > 0 {
			if _, err := host.Damage(nil, uint64(act.Actor), int64(hp), md.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// runBeforeMoveAction fetches act.Actor's name/ability/item and runs the
// before-move phase for it, so the turn-loop's pop handler for
// action.KindBeforeMove doesn't need its own mon-lookup plumbing.
func (b *Battle) runBeforeMoveAction(act action.Action) (bool, error) {
	m, done, err := b.mons.Get(act.Actor)
	if err != nil {
		return false, err
	}
	if m.Fainted() {
		done()
		return false, nil
	}
	name, ability, item := m.Nickname, m.Ability, m.Item
	done()
	return b.resolveBeforeMove(act.Actor, name, ability, item)
}

// resolveBeforeMove runs the spec §4.7 step 1 before-move checks in order:
// flinch, sleep, freeze, paralysis, confusion self-hit, and a scripted
// disable/taunt-style cancellation. Reports whether the move should still
// run this turn.
func (b *Battle) resolveBeforeMove(actor arena.MonHandle, actorName string, actorAbility, actorItem catalog.Id) (bool, error) {
	m, done, err := b.mons.GetMut(actor)
	if err != nil {
		return false, err
	}
	if m.Flags.Flinched {
		m.Flags.Flinched = false
		done()
		b.log.Append("cant", battlelog.Public,
			battlelog.KV{Key: "mon", Value: actorName},
			battlelog.KV{Key: "reason", Value: "Flinch"},
		)
		return false, nil
	}

	switch m.Status {
	case state.StatusSleep:
		turns := m.StatusData["turns"]
		if turns <= 0 {
			m.Status = state.StatusNone
			done()
			break
		}
		m.StatusData["turns"] = turns - 1
		done()
		b.log.Append("cant", battlelog.Public,
			battlelog.KV{Key: "mon", Value: actorName},
			battlelog.KV{Key: "reason", Value: "Sleep"},
		)
		return false, nil
	case state.StatusFreeze:
		if prng.Chance(b.rng, 20, 100) {
			m.Status = state.StatusNone
			done()
			break
		}
		done()
		b.log.Append("cant", battlelog.Public,
			battlelog.KV{Key: "mon", Value: actorName},
			battlelog.KV{Key: "reason", Value: "Freeze"},
		)
		return false, nil
	case state.StatusParalysis:
		done()
		if prng.Chance(b.rng, 25, 100) {
			b.log.Append("cant", battlelog.Public,
				battlelog.KV{Key: "mon", Value: actorName},
				battlelog.KV{Key: "reason", Value: "Paralysis"},
			)
			return false, nil
		}
	default:
		done()
	}

	confused := false
	if cm, cdone, cerr := b.mons.Get(actor); cerr == nil {
		confused = cm.Volatiles.Has("confusion")
		cdone()
	}
	if confused && prng.Chance(b.rng, 1, 3) {
		if err := b.confusionSelfHit(actor, actorName); err != nil {
			return false, err
		}
		return false, nil
	}

	if !b.dispatchCancellable("before-move", actor, actorAbility, actorItem) {
		return false, nil
	}
	return true, nil
}

// confusionSelfHit deals the games' fixed confusion-damage hit: a typeless,
// STAB-less, crit-less 40-base-power physical hit against the mon's own
// Atk/Def, independent of whichever move was chosen.
func (b *Battle) confusionSelfHit(actor arena.MonHandle, actorName string) error {
	m, done, err := b.mons.GetMut(actor)
	if err != nil {
		return err
	}
	atk := m.EffectiveStat(state.StatAtk)
	def := m.EffectiveStat(state.StatDef)
	level := m.Level
	done()

	result := combat.Calculate(combat.DamageInputs{
		Level: level, BasePower: 40, AttackStat: atk, DefenseStat: def,
		IsPhysical: true, TypeChart: b.store.TypeChart(), Random: b.engOpts.RandomizeBaseDamage,
	}, b.rng)

	host := &fxlangHost{b: b}
	if _, err := host.Damage(nil, uint64(actor), int64(result.Damage), "confusion"); err != nil {
		return err
	}
	b.log.Append("cant", battlelog.Public,
		battlelog.KV{Key: "mon", Value: actorName},
		battlelog.KV{Key: "reason", Value: "Confusion"},
	)
	return nil
}

// dispatchCancellable runs eventName over actor's ability/item callbacks
// only (a before-move check has no target mon), stopping at the first
// fail()/stop() call and reporting false when one occurs (spec §4.7 step
// 1's disable/taunt-style cancellation).
func (b *Battle) dispatchCancellable(eventName string, actor arena.MonHandle, actorAbility, actorItem catalog.Id) bool {
	host := &fxlangHost{b: b}
	var candidates []event.Candidate
	sub := 0
	if ad, ok, err := b.store.Ability(actorAbility); err == nil && ok {
		if prog, declared := ad.Callbacks[eventName]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: ad.ID.String(), Scope: event.ScopeAbility, Program: prog,
				Context:  &fxlang.Context{EffectID: ad.ID.String(), Host: host, HasTarget: true, Target: uint64(actor)},
				SubOrder: sub,
			})
			sub++
		}
	}
	if id, ok, err := b.store.Item(actorItem); err == nil && ok {
		if prog, declared := id.Callbacks[eventName]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: id.ID.String(), Scope: event.ScopeItem, Program: prog,
				Context:  &fxlang.Context{EffectID: id.ID.String(), Host: host, HasTarget: true, Target: uint64(actor)},
				SubOrder: sub,
			})
		}
	}
	if len(candidates) == 0 {
		return true
	}
	_, endSpan := b.tracer.StartEventDispatch(context.Background(), eventName)
	result := b.dispatcher.Dispatch(candidates, fxlang.Nil, event.StopOnFail)
	endSpan(firstFailure(result.Failures))
	for _, f := range result.Failures {
		b.log.Append("debug_event_failure", battlelog.Public,
			battlelog.KV{Key: "effect", Value: f.EffectID},
			battlelog.KV{Key: "event", Value: eventName},
		)
	}
	for _, c := range candidates {
		if c.Context.Failed {
			return false
		}
	}
	return true
}

// combatSides bundles the ability/item identity of both participants in one
// hit, so dispatchModifier/dispatchEffect/collectCandidates can collect
// event candidates from either side without a sprawling parameter list.
type combatSides struct {
	attacker        arena.MonHandle
	attackerAbility catalog.Id
	attackerItem    catalog.Id

	target          arena.MonHandle
	defenderAbility catalog.Id
	defenderItem    catalog.Id
}

// multiHitCount rolls the number of strikes a multi-hit move lands this
// use, per spec §4.7 step 10. hit is catalog.MoveData.MultiHit; [0,0] or any
// non-positive bound means a single hit. The source data only gives a
// [min,max] range, not the games' weighted 2/3/4/5 distribution, so this
// draws uniformly across the range; see DESIGN.md.
func multiHitCount(rng prng.Generator, hit [2]int) int {
	if hit[0] <= 0 || hit[1] <= 0 {
		return 1
	}
	if hit[1] <= hit[0] {
		return hit[0]
	}
	return int(prng.Range(rng, int64(hit[0]), int64(hit[1]+1)))
}

// applyFraction floors amount*f.Num/f.Den for a drain/recoil ratio. Both
// operands are non-negative by construction (damage dealt, a static data
// fraction), so Go's truncating integer division is already floor.
func applyFraction(amount int, f *catalog.Fraction) int {
	if f == nil || f.Den == 0 {
		return 0
	}
	return amount * f.Num / f.Den
}

func (b *Battle) resolveHitOnTarget(md catalog.MoveData, sides combatSides, level, attackStat int, attackerTypes []catalog.Type, attackerBurned bool) error {
	defender, doneD, err := b.mons.GetMut(sides.target)
	if err != nil {
		return err
	}
	if defender.Fainted() {
		doneD()
		return nil
	}
	defenderName := defender.Nickname
	defenderTypes := append([]catalog.Type(nil), defender.Types...)
	sides.defenderAbility = defender.Ability
	sides.defenderItem = defender.Item
	var defenseStat int
	if md.Category == catalog.CategorySpecial {
		defenseStat = defender.EffectiveStat(state.StatSpD)
	} else {
		defenseStat = defender.EffectiveStat(state.StatDef)
	}
	doneD()

	chart := b.store.TypeChart()
	if md.Category != catalog.CategoryStatus && chart.Immune(md.Type, defenderTypes...) {
		b.log.Append("immune", battlelog.Public, battlelog.KV{Key: "mon", Value: defenderName})
		return nil
	}

	if !md.Accuracy.Exempt() {
		acc, _ := md.Accuracy.Percentage()
		accMod := b.dispatchModifier("modify-accuracy", sides, md)
		accNum, accDen := combat.EffectiveAccuracy(acc, 0, 0, []combat.Fraction{accMod})
		hit, _ := combat.AccuracyRoll(b.rng, accNum, accDen)
		if !hit {
			b.log.Append("miss", battlelog.Public, battlelog.KV{Key: "mon", Value: defenderName})
			return nil
		}
	}

	if md.Category == catalog.CategoryStatus {
		return nil
	}

	host := &fxlangHost{b: b}
	hits := multiHitCount(b.rng, md.MultiHit)
	if md.FixedDamage > 0 {
		hits = 1
	}
	totalDamage := 0
	for i := 0; i < hits; i++ {
		d, done, err := b.mons.Get(sides.target)
		if err != nil {
			break
		}
		fainted := d.Fainted()
		done()
		if fainted {
			break
		}

		var damage int
		if md.FixedDamage > 0 {
			damage = md.FixedDamage
		} else {
			critTier := b.dispatchCritTier(sides, md)
			isCrit := combat.CritRoll(b.rng, critTier)
			damageMod := b.dispatchModifier("modify-damage", sides, md)

			result := combat.Calculate(combat.DamageInputs{
				Level: level, BasePower: md.BasePower, AttackStat: attackStat, DefenseStat: defenseStat,
				IsCrit: isCrit, MoveType: md.Type, AttackerTypes: attackerTypes, DefenderTypes: defenderTypes,
				Weather: b.field.Weather, AttackerBurned: attackerBurned, IsPhysical: md.Category == catalog.CategoryPhysical,
				TypeChart: chart, Random: b.engOpts.RandomizeBaseDamage, OtherModifiers: []combat.Fraction{damageMod},
			}, b.rng)
			damage = result.Damage
		}

		if _, err := host.Damage(nil, uint64(sides.target), int64(damage), md.Name); err != nil {
			return err
		}
		totalDamage += damage
		b.dispatchEffect("on-hit", sides, md)
	}
	if hits > 1 {
		b.log.Append("hits", battlelog.Public, battlelog.KV{Key: "count", Value: fmt.Sprintf("%d", hits)})
	}

	if drain := applyFraction(totalDamage, md.Drain); drain > 0 {
		if _, err := host.Heal(nil, uint64(sides.attacker), int64(drain)); err != nil {
			return err
		}
	}
	if recoil := applyFraction(totalDamage, md.Recoil); recoil > 0 {
		if _, err := host.Damage(nil, uint64(sides.attacker), int64(recoil), md.Name+" recoil"); err != nil {
			return err
		}
	}
	if md.SecondaryChance > 0 && prng.Chance(b.rng, uint64(md.SecondaryChance), 100) {
		b.dispatchEffect("secondary", sides, md)
	}
	return nil
}

// dispatchModifier runs eventName against both the attacker's and the
// defender's ability/item, and the move's own callback for that event (spec
// §4.5's modify-damage/modify-accuracy chain), threading an identity
// fraction through each candidate in turn and returning the combined
// multiplier. A battle with no catalog-declared callbacks for eventName
// never touches the dispatcher's PRNG-consuming tie-break path, since
// FilterSuppressed/sortCandidates see an empty candidate slice.
func (b *Battle) dispatchModifier(eventName string, sides combatSides, md catalog.MoveData) combat.Fraction {
	candidates := b.collectCandidates(eventName, sides, md)
	if len(candidates) == 0 {
		return combat.Fraction{Num: 1, Den: 1}
	}
	_, endSpan := b.tracer.StartEventDispatch(context.Background(), eventName)
	result := b.dispatcher.Dispatch(candidates, fxlang.Frac(fxlang.Fraction{Num: 1, Den: 1}), event.Never)
	endSpan(firstFailure(result.Failures))
	for _, f := range result.Failures {
		b.log.Append("debug_event_failure", battlelog.Public,
			battlelog.KV{Key: "effect", Value: f.EffectID},
			battlelog.KV{Key: "event", Value: eventName},
		)
	}
	return fractionFromValue(result.Output)
}

// dispatchCritTier runs "modify-crit" over sides' ability/item/move
// candidates, chaining an fxlang.Int through each starting from the move's
// own CritRatio (spec §4.7 step 6), the same chaining shape dispatchModifier
// uses for modify-damage/modify-accuracy but over an integer tier instead of
// a fraction.
func (b *Battle) dispatchCritTier(sides combatSides, md catalog.MoveData) int {
	candidates := b.collectCandidates("modify-crit", sides, md)
	if len(candidates) == 0 {
		return md.CritRatio
	}
	_, endSpan := b.tracer.StartEventDispatch(context.Background(), "modify-crit")
	result := b.dispatcher.Dispatch(candidates, fxlang.Int(int64(md.CritRatio)), event.Never)
	endSpan(firstFailure(result.Failures))
	for _, f := range result.Failures {
		b.log.Append("debug_event_failure", battlelog.Public,
			battlelog.KV{Key: "effect", Value: f.EffectID},
			battlelog.KV{Key: "event", Value: "modify-crit"},
		)
	}
	tier, ok := result.Output.Int()
	if !ok {
		return md.CritRatio
	}
	return int(tier)
}

// fractionFromValue reads a combat.Fraction out of an event's output Value.
// A callback may return a genuine fxlang.Fraction, or (since Lua scripts
// build and hand back the {num=.., den=..} table shape pushValue gives
// them, not a Go-side Fraction literal) an Object carrying integer "num"
// and "den" fields; anything else is treated as the identity fraction.
func fractionFromValue(v fxlang.Value) combat.Fraction {
	if frac, ok := v.Fraction(); ok {
		return combat.Fraction{Num: frac.Num, Den: frac.Den}
	}
	if fields, ok := v.Fields(); ok {
		num, numOK := fields["num"].Int()
		den, denOK := fields["den"].Int()
		if numOK && denOK && den != 0 {
			return combat.Fraction{Num: num, Den: den}
		}
	}
	return combat.Fraction{Num: 1, Den: 1}
}

// dispatchEffect runs eventName's attacker/defender ability/item and move
// callbacks for their side effects only; spec §4.5 does not chain a value
// through on-hit or secondary the way modify-damage does. Shared by the
// post-damage "on-hit" event and the post-damage "secondary" event (spec
// §4.7 step 10's secondary-effect roll, e.g. a flinch chance).
func (b *Battle) dispatchEffect(eventName string, sides combatSides, md catalog.MoveData) {
	candidates := b.collectCandidates(eventName, sides, md)
	if len(candidates) == 0 {
		return
	}
	_, endSpan := b.tracer.StartEventDispatch(context.Background(), eventName)
	result := b.dispatcher.Dispatch(candidates, fxlang.Nil, event.Never)
	endSpan(firstFailure(result.Failures))
	for _, f := range result.Failures {
		b.log.Append("debug_event_failure", battlelog.Public,
			battlelog.KV{Key: "effect", Value: f.EffectID},
			battlelog.KV{Key: "event", Value: eventName},
		)
	}
}

// collectCandidates gathers the attacker's ability/item, the defender's
// ability/item, and the acting move's own callback declared for eventName,
// each wrapped in the fxlang.Context the event package needs to run it,
// sharing one fxlangHost so a modify-damage/modify-accuracy callback can
// still call effectful builtins (e.g. a contact-punishing ability dealing
// recoil, or a Life Orb punishing its own holder) without a separate wiring
// path for "on-hit"-class events. An attacker-side candidate's Context.Target
// is the attacker itself (the mon the ability/item belongs to), not the mon
// being hit; Source is set to the other party in both directions so a
// callback can tell who it's being run for versus who it's being run against.
func (b *Battle) collectCandidates(eventName string, sides combatSides, md catalog.MoveData) []event.Candidate {
	var candidates []event.Candidate
	sub := 0
	host := &fxlangHost{b: b}

	if ad, ok, err := b.store.Ability(sides.attackerAbility); err == nil && ok {
		if prog, declared := ad.Callbacks[eventName]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: ad.ID.String(), Scope: event.ScopeAbility, Program: prog,
				Context: &fxlang.Context{
					EffectID: ad.ID.String(), Host: host,
					HasTarget: true, Target: uint64(sides.attacker),
					HasSource: true, Source: uint64(sides.target),
				},
				SubOrder: sub,
			})
			sub++
		}
	}
	if id, ok, err := b.store.Item(sides.attackerItem); err == nil && ok {
		if prog, declared := id.Callbacks[eventName]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: id.ID.String(), Scope: event.ScopeItem, Program: prog,
				Context: &fxlang.Context{
					EffectID: id.ID.String(), Host: host,
					HasTarget: true, Target: uint64(sides.attacker),
					HasSource: true, Source: uint64(sides.target),
				},
				SubOrder: sub,
			})
			sub++
		}
	}
	if ad, ok, err := b.store.Ability(sides.defenderAbility); err == nil && ok {
		if prog, declared := ad.Callbacks[eventName]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: ad.ID.String(), Scope: event.ScopeAbility, Program: prog,
				Context: &fxlang.Context{
					EffectID: ad.ID.String(), Host: host,
					HasTarget: true, Target: uint64(sides.target),
					HasSource: true, Source: uint64(sides.attacker),
				},
				SubOrder: sub,
			})
			sub++
		}
	}
	if id, ok, err := b.store.Item(sides.defenderItem); err == nil && ok {
		if prog, declared := id.Callbacks[eventName]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: id.ID.String(), Scope: event.ScopeItem, Program: prog,
				Context: &fxlang.Context{
					EffectID: id.ID.String(), Host: host,
					HasTarget: true, Target: uint64(sides.target),
					HasSource: true, Source: uint64(sides.attacker),
				},
				SubOrder: sub,
			})
			sub++
		}
	}
	if prog, declared := md.Callbacks[eventName]; declared && !prog.IsZero() {
		candidates = append(candidates, event.Candidate{
			EffectID: md.ID.String(), Scope: event.ScopeMove, Program: prog,
			Context: &fxlang.Context{
				EffectID: md.ID.String(), Host: host,
				HasTarget: true, Target: uint64(sides.target),
				HasSource: true, Source: uint64(sides.attacker),
			},
			SubOrder: sub,
		})
	}
	return candidates
}

// firstFailure reports the first callback failure (if any) as an error, for
// telemetry spans to record; dispatch itself never aborts on a failed
// callback (spec §7).
func firstFailure(failures []event.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	return failures[0].Err
}

// runResidualPhase runs the spec §4.6 step 4 residual event: weather and
// terrain (then pseudo-weather) callbacks and duration decrements, side
// condition callbacks, side and slot condition duration decrements (slot
// conditions' residual callbacks are not run), and finally each active
// mon's status damage/heal and volatile residual callbacks, in speed order.
// This is the action.KindEnd action's handler, run exactly once per turn
// after every Move action has resolved.
func (b *Battle) runResidualPhase() error {
	host := &fxlangHost{b: b}

	if b.field.Weather != "" {
		b.runFieldConditionResidual(b.field.Weather, host)
		if b.field.WeatherDuration > 0 {
			b.field.WeatherDuration--
			if b.field.WeatherDuration == 0 {
				b.log.Append("weather-end", battlelog.Public, battlelog.KV{Key: "weather", Value: b.field.Weather.String()})
				b.field.ClearWeather()
			}
		}
	}
	if b.field.Terrain != "" {
		b.runFieldConditionResidual(b.field.Terrain, host)
		if b.field.TerrainDuration > 0 {
			b.field.TerrainDuration--
			if b.field.TerrainDuration == 0 {
				b.log.Append("terrain-end", battlelog.Public, battlelog.KV{Key: "terrain", Value: b.field.Terrain.String()})
				b.field.Terrain = ""
				b.field.TerrainDuration = 0
			}
		}
	}
	pseudoWeatherIDs := make([]string, 0, len(b.field.PseudoWeather))
	for id := range b.field.PseudoWeather {
		pseudoWeatherIDs = append(pseudoWeatherIDs, id.String())
	}
	sort.Strings(pseudoWeatherIDs)
	for _, idStr := range pseudoWeatherIDs {
		b.runFieldConditionResidual(catalog.NewId(idStr), host)
	}
	b.tickFieldConditionDurations()

	for _, side := range b.sides {
		conditionIDs := make([]string, 0, len(side.Conditions))
		for id := range side.Conditions {
			conditionIDs = append(conditionIDs, id.String())
		}
		sort.Strings(conditionIDs)
		for _, idStr := range conditionIDs {
			b.runSideConditionResidual(side, catalog.NewId(idStr), host)
		}
		b.tickSideConditionDurations(side)
	}

	for _, mh := range b.speedOrderedActiveMons() {
		if err := b.runMonResidual(mh, host); err != nil {
			return err
		}
	}
	return nil
}

// runFieldConditionResidual runs id's "residual" callback (if the catalog
// declares one) against the whole field, per fxlang.Context.Field.
func (b *Battle) runFieldConditionResidual(id catalog.Id, host *fxlangHost) {
	cd, ok, err := b.store.Condition(id)
	if err != nil || !ok {
		return
	}
	prog, declared := cd.Callbacks["residual"]
	if !declared || prog.IsZero() {
		return
	}
	candidates := []event.Candidate{{
		EffectID: cd.ID.String(), Scope: event.ScopeField, Program: prog,
		Context: &fxlang.Context{EffectID: cd.ID.String(), Host: host, Field: true},
	}}
	b.dispatchResidualCandidates(candidates)
}

// runSideConditionResidual runs id's "residual" callback against side, per
// fxlang.Context.Side.
func (b *Battle) runSideConditionResidual(side *state.Side, id catalog.Id, host *fxlangHost) {
	cd, ok, err := b.store.Condition(id)
	if err != nil || !ok {
		return
	}
	prog, declared := cd.Callbacks["residual"]
	if !declared || prog.IsZero() {
		return
	}
	candidates := []event.Candidate{{
		EffectID: cd.ID.String(), Scope: event.ScopeSideCondition, Program: prog,
		Context: &fxlang.Context{EffectID: cd.ID.String(), Host: host, Side: side.Index},
	}}
	b.dispatchResidualCandidates(candidates)
}

// dispatchResidualCandidates runs a single-candidate "residual" dispatch
// and logs any callback failure, shared by the field/side/volatile residual
// helpers so each doesn't repeat the span/failure-logging boilerplate.
func (b *Battle) dispatchResidualCandidates(candidates []event.Candidate) {
	_, endSpan := b.tracer.StartEventDispatch(context.Background(), "residual")
	result := b.dispatcher.Dispatch(candidates, fxlang.Nil, event.Never)
	endSpan(firstFailure(result.Failures))
	for _, f := range result.Failures {
		b.log.Append("debug_event_failure", battlelog.Public,
			battlelog.KV{Key: "effect", Value: f.EffectID},
			battlelog.KV{Key: "event", Value: "residual"},
		)
	}
}

// tickFieldConditionDurations decrements every pseudo-weather's duration,
// removing it once it reaches zero.
func (b *Battle) tickFieldConditionDurations() {
	for id, ci := range b.field.PseudoWeather {
		if ci.Duration <= 0 {
			continue
		}
		ci.Duration--
		if ci.Duration == 0 {
			delete(b.field.PseudoWeather, id)
			b.log.Append("pseudoweather-end", battlelog.Public, battlelog.KV{Key: "condition", Value: id.String()})
		}
	}
}

// tickSideConditionDurations decrements side's conditions and slot
// conditions, removing each once it reaches zero.
func (b *Battle) tickSideConditionDurations(side *state.Side) {
	for id, ci := range side.Conditions {
		if ci.Duration <= 0 {
			continue
		}
		ci.Duration--
		if ci.Duration == 0 {
			delete(side.Conditions, id)
			b.log.Append("condition-end", battlelog.Public, battlelog.KV{Key: "condition", Value: id.String()})
		}
	}
	for slot, conds := range side.SlotConditions {
		for id, ci := range conds {
			if ci.Duration <= 0 {
				continue
			}
			ci.Duration--
			if ci.Duration == 0 {
				delete(conds, id)
				b.log.Append("condition-end", battlelog.Public,
					battlelog.KV{Key: "condition", Value: id.String()},
					battlelog.KV{Key: "slot", Value: fmt.Sprintf("%d", slot)},
				)
			}
		}
	}
}

// speedOrderedActiveMons returns every non-fainted active mon handle across
// all sides, sorted by effective speed descending (spec §4.6 step 4's "in
// speed order"); (side, player) insertion order breaks ties so iteration
// never depends on Go's map order.
func (b *Battle) speedOrderedActiveMons() []arena.MonHandle {
	type entry struct {
		handle arena.MonHandle
		speed  int
	}
	var entries []entry
	for _, side := range b.sides {
		for _, p := range side.Players {
			for _, h := range p.Active {
				m, done, err := b.mons.Get(h)
				if err != nil {
					continue
				}
				if m.Fainted() {
					done()
					continue
				}
				entries = append(entries, entry{handle: h, speed: m.EffectiveStat(state.StatSpe)})
				done()
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].speed > entries[j].speed })
	out := make([]arena.MonHandle, len(entries))
	for i, e := range entries {
		out[i] = e.handle
	}
	return out
}

// runMonResidual applies mh's status residual damage (the games' fixed
// Burn = MaxHP/16, Poison = MaxHP/8, BadPoison = MaxHP/16 * toxicCounter
// fractions; see DESIGN.md), its ability/item residual callback (e.g. a
// Leftovers-style heal), and its volatile conditions' residual callbacks in
// volatile-ID sorted order.
func (b *Battle) runMonResidual(mh arena.MonHandle, host *fxlangHost) error {
	m, done, err := b.mons.Get(mh)
	if err != nil {
		return err
	}
	if m.Fainted() {
		done()
		return nil
	}
	status := m.Status
	maxHP := m.MaxHP
	ability := m.Ability
	item := m.Item
	done()

	switch status {
	case state.StatusBurn:
		if _, err := host.Damage(nil, uint64(mh), int64(maxHP/16), "burn"); err != nil {
			return err
		}
	case state.StatusPoison:
		if _, err := host.Damage(nil, uint64(mh), int64(maxHP/8), "poison"); err != nil {
			return err
		}
	case state.StatusBadPoison:
		m2, done2, err := b.mons.GetMut(mh)
		if err != nil {
			return err
		}
		counter := m2.StatusData["toxicCounter"] + 1
		m2.StatusData["toxicCounter"] = counter
		done2()
		if _, err := host.Damage(nil, uint64(mh), int64(maxHP/16)*counter, "toxic"); err != nil {
			return err
		}
	}

	b.dispatchMonResidual(mh, ability, item, host)

	m3, done3, err := b.mons.Get(mh)
	if err != nil {
		return err
	}
	if m3.Fainted() {
		done3()
		return nil
	}
	volatileIDs := make([]string, 0, len(m3.Volatiles))
	for id := range m3.Volatiles {
		volatileIDs = append(volatileIDs, id)
	}
	done3()
	sort.Strings(volatileIDs)
	for _, id := range volatileIDs {
		b.runVolatileResidual(mh, catalog.NewId(id), host)
	}
	return nil
}

// dispatchMonResidual runs mh's ability/item "residual" callback, if
// either declares one. Kept separate from collectCandidates/dispatchEffect
// since those collect both an attacker and a defender side; a residual
// check has only one mon, and attacker==defender would double-fire a
// single ability's callback.
func (b *Battle) dispatchMonResidual(mh arena.MonHandle, ability, item catalog.Id, host *fxlangHost) {
	var candidates []event.Candidate
	sub := 0
	if ad, ok, err := b.store.Ability(ability); err == nil && ok {
		if prog, declared := ad.Callbacks["residual"]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: ad.ID.String(), Scope: event.ScopeAbility, Program: prog,
				Context:  &fxlang.Context{EffectID: ad.ID.String(), Host: host, HasTarget: true, Target: uint64(mh)},
				SubOrder: sub,
			})
			sub++
		}
	}
	if id, ok, err := b.store.Item(item); err == nil && ok {
		if prog, declared := id.Callbacks["residual"]; declared && !prog.IsZero() {
			candidates = append(candidates, event.Candidate{
				EffectID: id.ID.String(), Scope: event.ScopeItem, Program: prog,
				Context:  &fxlang.Context{EffectID: id.ID.String(), Host: host, HasTarget: true, Target: uint64(mh)},
				SubOrder: sub,
			})
		}
	}
	if len(candidates) == 0 {
		return
	}
	b.dispatchResidualCandidates(candidates)
}

// runVolatileResidual runs volatileID's "residual" callback against mh (if
// the catalog declares one) and decrements its duration, removing it once
// it reaches zero.
func (b *Battle) runVolatileResidual(mh arena.MonHandle, volatileID catalog.Id, host *fxlangHost) {
	cd, ok, err := b.store.Condition(volatileID)
	if err == nil && ok {
		if prog, declared := cd.Callbacks["residual"]; declared && !prog.IsZero() {
			candidates := []event.Candidate{{
				EffectID: cd.ID.String(), Scope: event.ScopeVolatile, Program: prog,
				Context: &fxlang.Context{EffectID: cd.ID.String(), Host: host, HasTarget: true, Target: uint64(mh)},
			}}
			b.dispatchResidualCandidates(candidates)
		}
	}

	m, done, err := b.mons.GetMut(mh)
	if err != nil {
		return
	}
	if vs, ok := m.Volatiles[volatileID.String()]; ok && vs.Duration > 0 {
		vs.Duration--
		if vs.Duration == 0 {
			delete(m.Volatiles, volatileID.String())
		}
	}
	done()
}

// checkWinCondition reports the battle's win condition per spec §4.6 step
// 5: all of one side's mons fainted, or all sides fainted simultaneously
// (draw).
func (b *Battle) checkWinCondition() (*Outcome, bool) {
	aliveSides := map[int]bool{}
	for si, side := range b.sides {
		for _, h := range side.AllMonHandles() {
			m, done, err := b.mons.Get(h)
			if err != nil {
				continue
			}
			alive := !m.Fainted()
			done()
			if alive {
				aliveSides[si] = true
			}
		}
	}
	if len(aliveSides) > 1 {
		return nil, false
	}
	if len(aliveSides) == 0 {
		return &Outcome{Winner: -1, Draw: true}, true
	}
	for si := range aliveSides {
		return &Outcome{Winner: si}, true
	}
	return nil, false
}
