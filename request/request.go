// Package request implements the per-player Request/Choice protocol of
// spec §4.9: the requests the engine produces for a player to act on, the
// choice-text grammar, and validation of a submitted choice against the
// current request.
package request

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/battleerr"
	"github.com/louisbranch/battlecore/catalog"
)

// Kind enumerates the Request variants spec §4.9 names.
type Kind int

const (
	KindTeamPreview Kind = iota
	KindTurn
	KindSwitch
	KindLearnMove
)

// MoveOption is one legal move choice for a Turn request.
type MoveOption struct {
	Slot           int
	Move           catalog.Id
	PP             int
	MaxPP          int
	Disabled       string
	ValidTargets   []arena.MonHandle
}

// SlotRequest is the per-active-slot legal-action summary for a Turn
// request.
type SlotRequest struct {
	Mon          arena.MonHandle
	Moves        []MoveOption
	CanSwitch    bool
	CanMegaEvolve bool
	CanDynamax   bool
	CanTerastallize bool
}

// SwitchSlot names one active slot that requires a forced replacement and
// the bench indices eligible to fill it.
type SwitchSlot struct {
	Slot            int
	EligibleBench   []int
}

// Request is what the engine asks one player to resolve next.
type Request struct {
	Kind Kind

	TeamPreviewSize int // TeamPreview: how many slots the player must order

	Turn []SlotRequest // Turn

	Switches []SwitchSlot // Switch

	LearnMoveMon  arena.MonHandle // LearnMove
	LearnMoveName catalog.Id
}

// ActionKind enumerates the grammar's leading keyword.
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionSwitch
	ActionItem
	ActionTeam
	ActionPass
	ActionForfeit
)

// Modifier is an optional trailing flag on a move choice.
type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierMega
	ModifierZ
	ModifierDynamax
	ModifierTera
)

// SlotChoice is one parsed `;`-separated segment of a choice text.
type SlotChoice struct {
	Action   ActionKind
	Index    int        // move/switch index, or -1
	Target   int        // explicit target slot, or 0 if unspecified
	HasTarget bool
	Modifier Modifier
	Item     catalog.Id
	TeamOrder []int
}

// Parse splits choiceText on ';' and parses each segment per the grammar
// in spec §4.9: `move <idx>[,<target>][,mega|z|dynamax|tera]`,
// `switch <slot>`, `item <id>[,<target>]`, `team <order>`, `pass`,
// `forfeit`.
func Parse(choiceText string) ([]SlotChoice, error) {
	segments := strings.Split(choiceText, ";")
	choices := make([]SlotChoice, 0, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		choice, err := parseSegment(seg)
		if err != nil {
			return nil, err
		}
		choices = append(choices, choice)
	}
	if len(choices) == 0 {
		return nil, battleerr.New(battleerr.CodeInvalidChoice, "empty choice text")
	}
	return choices, nil
}

func parseSegment(seg string) (SlotChoice, error) {
	fields := strings.Fields(strings.ReplaceAll(seg, ",", " "))
	if len(fields) == 0 {
		return SlotChoice{}, battleerr.New(battleerr.CodeInvalidChoice, "empty choice segment")
	}
	keyword := strings.ToLower(fields[0])
	switch keyword {
	case "pass":
		return SlotChoice{Action: ActionPass, Index: -1}, nil
	case "forfeit":
		return SlotChoice{Action: ActionForfeit, Index: -1}, nil
	case "move":
		if len(fields) < 2 {
			return SlotChoice{}, battleerr.New(battleerr.CodeInvalidChoice, "move choice missing index")
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			return SlotChoice{}, battleerr.Newf(battleerr.CodeInvalidChoice, "invalid move index %q", fields[1])
		}
		choice := SlotChoice{Action: ActionMove, Index: idx}
		for _, extra := range fields[2:] {
			switch strings.ToLower(extra) {
			case "mega":
				choice.Modifier = ModifierMega
			case "z":
				choice.Modifier = ModifierZ
			case "dynamax":
				choice.Modifier = ModifierDynamax
			case "tera":
				choice.Modifier = ModifierTera
			default:
				target, err := strconv.Atoi(extra)
				if err != nil {
					return SlotChoice{}, battleerr.Newf(battleerr.CodeInvalidChoice, "invalid move modifier/target %q", extra)
				}
				choice.Target = target
				choice.HasTarget = true
			}
		}
		return choice, nil
	case "switch":
		if len(fields) < 2 {
			return SlotChoice{}, battleerr.New(battleerr.CodeInvalidChoice, "switch choice missing slot")
		}
		idx, err := strconv.Atoi(fields[1])
		if err != nil {
			return SlotChoice{}, battleerr.Newf(battleerr.CodeInvalidChoice, "invalid switch slot %q", fields[1])
		}
		return SlotChoice{Action: ActionSwitch, Index: idx}, nil
	case "item":
		if len(fields) < 2 {
			return SlotChoice{}, battleerr.New(battleerr.CodeInvalidChoice, "item choice missing id")
		}
		choice := SlotChoice{Action: ActionItem, Index: -1, Item: catalog.NewId(fields[1])}
		if len(fields) > 2 {
			target, err := strconv.Atoi(fields[2])
			if err != nil {
				return SlotChoice{}, battleerr.Newf(battleerr.CodeInvalidChoice, "invalid item target %q", fields[2])
			}
			choice.Target = target
			choice.HasTarget = true
		}
		return choice, nil
	case "team":
		if len(fields) < 2 {
			return SlotChoice{}, battleerr.New(battleerr.CodeInvalidChoice, "team choice missing order")
		}
		order := make([]int, 0, len(fields)-1)
		for _, f := range fields[1:] {
			n, err := strconv.Atoi(f)
			if err != nil {
				return SlotChoice{}, battleerr.Newf(battleerr.CodeInvalidChoice, "invalid team order entry %q", f)
			}
			order = append(order, n)
		}
		return SlotChoice{Action: ActionTeam, Index: -1, TeamOrder: order}, nil
	default:
		return SlotChoice{}, battleerr.Newf(battleerr.CodeInvalidChoice, "unknown choice keyword %q", keyword)
	}
}

// Validate checks choices against req, returning an InvalidChoice error
// describing the first problem found, or nil if the choice set is legal
// for req. It never mutates state: spec §4.9 requires that an invalid
// choice does not mutate state.
func Validate(req Request, choices []SlotChoice) error {
	switch req.Kind {
	case KindTeamPreview:
		if len(choices) != 1 || choices[0].Action != ActionTeam {
			return battleerr.New(battleerr.CodeInvalidChoice, "expected a team order choice")
		}
		if len(choices[0].TeamOrder) != req.TeamPreviewSize {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "expected %d team slots, got %d", req.TeamPreviewSize, len(choices[0].TeamOrder))
		}
		return nil
	case KindTurn:
		if len(choices) != len(req.Turn) {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "expected %d slot choices, got %d", len(req.Turn), len(choices))
		}
		for i, c := range choices {
			if err := validateTurnSlot(req.Turn[i], c); err != nil {
				return err
			}
		}
		return nil
	case KindSwitch:
		if len(choices) != len(req.Switches) {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "expected %d switch choices, got %d", len(req.Switches), len(choices))
		}
		for i, c := range choices {
			if c.Action != ActionSwitch {
				return battleerr.New(battleerr.CodeInvalidChoice, "a forced switch slot requires a switch choice")
			}
			if !containsInt(req.Switches[i].EligibleBench, c.Index) {
				return battleerr.Newf(battleerr.CodeInvalidChoice, "bench index %d is not eligible for this slot", c.Index)
			}
		}
		return nil
	case KindLearnMove:
		if len(choices) != 1 {
			return battleerr.New(battleerr.CodeInvalidChoice, "expected a single learn-move choice")
		}
		return nil
	default:
		return battleerr.Newf(battleerr.CodeInvalidChoice, "unknown request kind %v", req.Kind)
	}
}

func validateTurnSlot(slot SlotRequest, c SlotChoice) error {
	switch c.Action {
	case ActionPass:
		return nil
	case ActionMove:
		if c.Index < 0 || c.Index >= len(slot.Moves) {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "move index %d out of range", c.Index)
		}
		opt := slot.Moves[c.Index]
		if opt.Disabled != "" {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "move %s is disabled: %s", opt.Move, opt.Disabled)
		}
		if opt.PP <= 0 {
			return battleerr.Newf(battleerr.CodeInvalidChoice, "move %s has no PP remaining", opt.Move)
		}
		if c.Modifier == ModifierMega && !slot.CanMegaEvolve {
			return battleerr.New(battleerr.CodeInvalidChoice, "mega evolution is not legal this turn")
		}
		if c.Modifier == ModifierDynamax && !slot.CanDynamax {
			return battleerr.New(battleerr.CodeInvalidChoice, "dynamax is not legal this turn")
		}
		if c.Modifier == ModifierTera && !slot.CanTerastallize {
			return battleerr.New(battleerr.CodeInvalidChoice, "terastallization is not legal this turn")
		}
		return nil
	case ActionSwitch:
		if !slot.CanSwitch {
			return battleerr.New(battleerr.CodeInvalidChoice, "this mon is trapped and cannot switch")
		}
		return nil
	case ActionItem:
		return nil
	default:
		return battleerr.Newf(battleerr.CodeInvalidChoice, "action %v is not valid for a turn request", c.Action)
	}
}

func containsInt(haystack []int, needle int) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// String renders a SlotChoice back to its canonical choice-text form, used
// for round-trip logging.
func (c SlotChoice) String() string {
	switch c.Action {
	case ActionPass:
		return "pass"
	case ActionForfeit:
		return "forfeit"
	case ActionMove:
		s := fmt.Sprintf("move %d", c.Index)
		if c.HasTarget {
			s += fmt.Sprintf(",%d", c.Target)
		}
		switch c.Modifier {
		case ModifierMega:
			s += ",mega"
		case ModifierZ:
			s += ",z"
		case ModifierDynamax:
			s += ",dynamax"
		case ModifierTera:
			s += ",tera"
		}
		return s
	case ActionSwitch:
		return fmt.Sprintf("switch %d", c.Index)
	case ActionItem:
		s := fmt.Sprintf("item %s", c.Item)
		if c.HasTarget {
			s += fmt.Sprintf(",%d", c.Target)
		}
		return s
	case ActionTeam:
		parts := make([]string, len(c.TeamOrder))
		for i, n := range c.TeamOrder {
			parts[i] = strconv.Itoa(n)
		}
		return "team " + strings.Join(parts, ",")
	default:
		return ""
	}
}
