package battle

import (
	"fmt"

	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/battlelog"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/fxlang"
	"github.com/louisbranch/battlecore/prng"
	"github.com/louisbranch/battlecore/state"
)

// fxlangHost implements fxlang.Host against a live Battle, so effect
// scripts (ability/item/condition callbacks) can mutate state through the
// same primitives the combat pipeline itself uses. Kept as its own type
// (rather than methods directly on Battle) so the Host surface stays a
// narrow, explicit contract — spec §4.4's "fixed library of ... effectful
// builtins" — independent of Battle's much larger internal API.
type fxlangHost struct {
	b *Battle
}

var _ fxlang.Host = (*fxlangHost)(nil)

func (h *fxlangHost) mon(handle uint64) (*state.Mon, func(), error) {
	return h.b.mons.GetMut(arena.MonHandle(handle))
}

func (h *fxlangHost) Damage(ctx *fxlang.Context, target uint64, amount int64, sourceEffect string) (int64, error) {
	m, done, err := h.mon(target)
	if err != nil {
		return 0, err
	}
	defer done()
	removed := m.Damage(int(amount))
	h.b.log.Append("damage", battlelog.Public,
		battlelog.KV{Key: "mon", Value: m.Nickname},
		battlelog.KV{Key: "health", Value: fmt.Sprintf("%d/%d", m.CurrentHP, m.MaxHP)},
		battlelog.KV{Key: "from", Value: sourceEffect},
	)
	if m.Fainted() {
		h.b.log.Append("faint", battlelog.Public, battlelog.KV{Key: "mon", Value: m.Nickname})
	}
	return int64(removed), nil
}

func (h *fxlangHost) Heal(ctx *fxlang.Context, target uint64, amount int64) (int64, error) {
	m, done, err := h.mon(target)
	if err != nil {
		return 0, err
	}
	defer done()
	healed := m.Heal(int(amount))
	h.b.log.Append("heal", battlelog.Public,
		battlelog.KV{Key: "mon", Value: m.Nickname},
		battlelog.KV{Key: "health", Value: fmt.Sprintf("%d/%d", m.CurrentHP, m.MaxHP)},
	)
	return int64(healed), nil
}

func (h *fxlangHost) Boost(ctx *fxlang.Context, target uint64, stat string, stages int64) (int64, error) {
	m, done, err := h.mon(target)
	if err != nil {
		return 0, err
	}
	defer done()
	s := statFromName(stat)
	applied, changed := m.Boosts.Apply(s, int(stages))
	if !changed {
		h.b.log.Append("fail", battlelog.Public, battlelog.KV{Key: "mon", Value: m.Nickname})
	} else {
		h.b.log.Append("boost", battlelog.Public,
			battlelog.KV{Key: "mon", Value: m.Nickname},
			battlelog.KV{Key: "stat", Value: stat},
			battlelog.KV{Key: "stages", Value: fmt.Sprintf("%d", applied)},
		)
	}
	return int64(applied), nil
}

func (h *fxlangHost) AddVolatile(ctx *fxlang.Context, target uint64, volatileID string) (bool, error) {
	m, done, err := h.mon(target)
	if err != nil {
		return false, err
	}
	defer done()
	_, added := m.Volatiles.Add(volatileID, 0)
	return added, nil
}

func (h *fxlangHost) RemoveVolatile(ctx *fxlang.Context, target uint64, volatileID string) (bool, error) {
	m, done, err := h.mon(target)
	if err != nil {
		return false, err
	}
	defer done()
	return m.Volatiles.Remove(volatileID), nil
}

func (h *fxlangHost) HasVolatile(ctx *fxlang.Context, target uint64, volatileID string) bool {
	m, done, err := h.mon(target)
	if err != nil {
		return false
	}
	defer done()
	return m.Volatiles.Has(volatileID)
}

func (h *fxlangHost) SetStatus(ctx *fxlang.Context, target uint64, statusID string) (bool, error) {
	m, done, err := h.mon(target)
	if err != nil {
		return false, err
	}
	defer done()
	if m.Status != state.StatusNone {
		return false, nil
	}
	m.Status = statusFromName(statusID)
	switch m.Status {
	case state.StatusSleep:
		m.StatusData["turns"] = prng.Range(h.b.rng, 1, 4)
	case state.StatusBadPoison:
		m.StatusData["toxicCounter"] = 0
	}
	h.b.log.Append("status", battlelog.Public,
		battlelog.KV{Key: "mon", Value: m.Nickname},
		battlelog.KV{Key: "status", Value: m.Status.String()},
	)
	return true, nil
}

// Flinch sets the flinched flag the before-move phase consults, per spec
// §4.7 step 10's secondary-effect chance and §4.7 step 1's before-move
// check.
func (h *fxlangHost) Flinch(ctx *fxlang.Context, target uint64) error {
	m, done, err := h.mon(target)
	if err != nil {
		return err
	}
	defer done()
	m.Flags.Flinched = true
	return nil
}

func (h *fxlangHost) CureStatus(ctx *fxlang.Context, target uint64) error {
	m, done, err := h.mon(target)
	if err != nil {
		return err
	}
	defer done()
	m.Status = state.StatusNone
	return nil
}

func (h *fxlangHost) Log(ctx *fxlang.Context, tag string, parts map[string]string) {
	h.b.log.Append(tag, battlelog.Public, battlelog.KVsFromMap(parts)...)
}

func (h *fxlangHost) TypeEffectiveness(ctx *fxlang.Context, attackingType string, defendingTypes []string) (num, den int64) {
	types := make([]catalog.Type, len(defendingTypes))
	for i, t := range defendingTypes {
		types[i] = catalog.Type(t)
	}
	n, d := h.b.store.TypeChart().Multiplier(catalog.Type(attackingType), types...)
	return int64(n), int64(d)
}

func (h *fxlangHost) Chance(ctx *fxlang.Context, num, den int64) bool {
	return prng.Chance(h.b.rng, uint64(num), uint64(den))
}

func (h *fxlangHost) RandomRange(ctx *fxlang.Context, lo, hi int64) int64 {
	return prng.Range(h.b.rng, lo, hi)
}

func (h *fxlangHost) Stat(ctx *fxlang.Context, target uint64, stat string) int64 {
	m, done, err := h.mon(target)
	if err != nil {
		return 0
	}
	defer done()
	return int64(m.EffectiveStat(statFromName(stat)))
}

func statFromName(name string) state.Stat {
	switch name {
	case "atk":
		return state.StatAtk
	case "def":
		return state.StatDef
	case "spa":
		return state.StatSpA
	case "spd":
		return state.StatSpD
	case "spe":
		return state.StatSpe
	case "accuracy":
		return state.StatAccuracy
	case "evasion":
		return state.StatEvasion
	default:
		return state.StatHP
	}
}

func statusFromName(name string) state.Status {
	switch name {
	case "sleep":
		return state.StatusSleep
	case "freeze":
		return state.StatusFreeze
	case "paralysis":
		return state.StatusParalysis
	case "burn":
		return state.StatusBurn
	case "poison":
		return state.StatusPoison
	case "badpoison", "toxic":
		return state.StatusBadPoison
	default:
		return state.StatusNone
	}
}
