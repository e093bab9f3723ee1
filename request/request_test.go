package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoveChoiceWithTargetAndModifier(t *testing.T) {
	choices, err := Parse("move 1,2,mega")
	require.NoError(t, err)
	require.Len(t, choices, 1)
	assert.Equal(t, ActionMove, choices[0].Action)
	assert.Equal(t, 1, choices[0].Index)
	assert.Equal(t, 2, choices[0].Target)
	assert.True(t, choices[0].HasTarget)
	assert.Equal(t, ModifierMega, choices[0].Modifier)
}

func TestParseMultiSlotSemicolonSeparated(t *testing.T) {
	choices, err := Parse("move 0;switch 2")
	require.NoError(t, err)
	require.Len(t, choices, 2)
	assert.Equal(t, ActionMove, choices[0].Action)
	assert.Equal(t, ActionSwitch, choices[1].Action)
	assert.Equal(t, 2, choices[1].Index)
}

func TestParseTeamOrder(t *testing.T) {
	choices, err := Parse("team 3,1,2")
	require.NoError(t, err)
	require.Len(t, choices, 1)
	assert.Equal(t, []int{3, 1, 2}, choices[0].TeamOrder)
}

func TestParseRejectsUnknownKeyword(t *testing.T) {
	_, err := Parse("teleport 1")
	assert.Error(t, err)
}

func TestParseRejectsEmptyText(t *testing.T) {
	_, err := Parse("   ")
	assert.Error(t, err)
}

func TestValidateRejectsDisabledMove(t *testing.T) {
	req := Request{Kind: KindTurn, Turn: []SlotRequest{
		{Moves: []MoveOption{{Move: "tackle", PP: 5, Disabled: "Taunt"}}},
	}}
	choices, _ := Parse("move 0")
	err := Validate(req, choices)
	assert.Error(t, err)
}

func TestValidateRejectsExhaustedPP(t *testing.T) {
	req := Request{Kind: KindTurn, Turn: []SlotRequest{
		{Moves: []MoveOption{{Move: "tackle", PP: 0}}},
	}}
	choices, _ := Parse("move 0")
	err := Validate(req, choices)
	assert.Error(t, err)
}

func TestValidateRejectsSwitchWhenTrapped(t *testing.T) {
	req := Request{Kind: KindTurn, Turn: []SlotRequest{
		{CanSwitch: false},
	}}
	choices, _ := Parse("switch 1")
	err := Validate(req, choices)
	assert.Error(t, err)
}

func TestValidateAcceptsLegalMove(t *testing.T) {
	req := Request{Kind: KindTurn, Turn: []SlotRequest{
		{Moves: []MoveOption{{Move: "tackle", PP: 5}}},
	}}
	choices, _ := Parse("move 0")
	assert.NoError(t, Validate(req, choices))
}

func TestValidateSwitchRequestChecksEligibleBench(t *testing.T) {
	req := Request{Kind: KindSwitch, Switches: []SwitchSlot{
		{Slot: 0, EligibleBench: []int{2, 3}},
	}}
	choices, _ := Parse("switch 2")
	assert.NoError(t, Validate(req, choices))

	choices, _ = Parse("switch 1")
	assert.Error(t, Validate(req, choices))
}

func TestSlotChoiceStringRoundTrips(t *testing.T) {
	choices, _ := Parse("move 1,2,tera")
	assert.Equal(t, "move 1,2,tera", choices[0].String())
}
