package state

import (
	"testing"

	"github.com/louisbranch/battlecore/catalog"
	"github.com/stretchr/testify/assert"
)

func newTestMon(hp int) *Mon {
	return &Mon{
		MaxHP:     hp,
		CurrentHP: hp,
		Types:     []catalog.Type{"Grass", "Poison"},
		Base:      Stats{Atk: 100},
	}
}

func TestMonDamageClampsAndFaints(t *testing.T) {
	m := newTestMon(100)
	removed := m.Damage(150)
	assert.Equal(t, 100, removed)
	assert.Equal(t, 0, m.CurrentHP)
	assert.True(t, m.Fainted())
}

func TestMonDamagePartial(t *testing.T) {
	m := newTestMon(100)
	removed := m.Damage(40)
	assert.Equal(t, 40, removed)
	assert.Equal(t, 60, m.CurrentHP)
	assert.False(t, m.Fainted())
}

func TestMonHealClampsToMax(t *testing.T) {
	m := newTestMon(100)
	m.Damage(80)
	healed := m.Heal(50)
	assert.Equal(t, 80, healed)
	assert.Equal(t, 100, m.CurrentHP)
}

func TestMonHealNoOpWhenFainted(t *testing.T) {
	m := newTestMon(100)
	m.Damage(100)
	healed := m.Heal(50)
	assert.Equal(t, 0, healed)
	assert.Equal(t, 0, m.CurrentHP)
}

func TestMonHasType(t *testing.T) {
	m := newTestMon(100)
	assert.True(t, m.HasType("Grass"))
	assert.False(t, m.HasType("Fire"))
}

func TestMonEffectiveStatAppliesBoost(t *testing.T) {
	m := newTestMon(100)
	m.Boosts.Apply(StatAtk, 2)
	assert.Equal(t, 200, m.EffectiveStat(StatAtk))
}

func TestMonAllSlotsExhausted(t *testing.T) {
	m := newTestMon(100)
	m.Moves = []MoveSlot{{Move: "tackle", PP: 0}, {Move: "growl", Disabled: "disable"}}
	assert.True(t, m.AllSlotsExhausted())

	m.Moves[0].PP = 5
	assert.False(t, m.AllSlotsExhausted())
}
