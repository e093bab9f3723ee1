package request

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/louisbranch/battlecore/battleerr"
)

// choiceSchema describes the wire shape ParseJSON accepts: an array of
// segments, each an object with an "action" keyword and the fields that
// action needs. This mirrors the teacher's PayloadValidator convention
// (internal/services/game/domain/event.Registry.ValidatePayload) but
// validates structurally via JSON Schema instead of a hand-rolled checker,
// rejecting a malformed choice payload before it ever reaches Parse.
var choiceSchema = &jsonschema.Schema{
	Type: "array",
	Items: &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"action":    {Type: "string", Enum: []any{"move", "switch", "item", "team", "pass", "forfeit"}},
			"index":     {Type: "integer"},
			"target":    {Type: "integer"},
			"modifier":  {Type: "string", Enum: []any{"mega", "z", "dynamax", "tera"}},
			"item":      {Type: "string"},
			"teamOrder": {Type: "array", Items: &jsonschema.Schema{Type: "integer"}},
		},
		Required: []string{"action"},
	},
}

var resolvedChoiceSchema *jsonschema.Resolved

func init() {
	resolved, err := choiceSchema.Resolve(nil)
	if err != nil {
		panic(fmt.Sprintf("request: invalid choice schema: %v", err))
	}
	resolvedChoiceSchema = resolved
}

// jsonChoiceSegment is the wire shape of one choice segment, convertible
// to and from the choice-text grammar Parse understands.
type jsonChoiceSegment struct {
	Action    string `json:"action"`
	Index     int    `json:"index"`
	Target    int    `json:"target"`
	Modifier  string `json:"modifier"`
	Item      string `json:"item"`
	TeamOrder []int  `json:"teamOrder"`
}

// ParseJSON accepts a JSON array of choice segments (an alternative wire
// format to the choice-text grammar Parse implements), validates it
// against choiceSchema, and returns the same []SlotChoice Parse would
// produce for the equivalent choice text.
func ParseJSON(payload []byte) ([]SlotChoice, error) {
	var raw any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, battleerr.Wrap(battleerr.CodeInvalidChoice, err, "choice payload is not valid JSON")
	}
	if err := resolvedChoiceSchema.Validate(raw); err != nil {
		return nil, battleerr.Wrap(battleerr.CodeInvalidChoice, err, "choice payload failed schema validation")
	}

	var segments []jsonChoiceSegment
	if err := json.Unmarshal(payload, &segments); err != nil {
		return nil, battleerr.Wrap(battleerr.CodeInvalidChoice, err, "choice payload did not decode")
	}

	text := make([]string, 0, len(segments))
	for _, seg := range segments {
		text = append(text, seg.toChoiceText())
	}
	return Parse(strings.Join(text, ";"))
}

func (s jsonChoiceSegment) toChoiceText() string {
	switch s.Action {
	case "pass":
		return "pass"
	case "forfeit":
		return "forfeit"
	case "move":
		out := fmt.Sprintf("move %d", s.Index)
		if s.Target != 0 {
			out += fmt.Sprintf(",%d", s.Target)
		}
		if s.Modifier != "" {
			out += "," + s.Modifier
		}
		return out
	case "switch":
		return fmt.Sprintf("switch %d", s.Index)
	case "item":
		out := fmt.Sprintf("item %s", s.Item)
		if s.Target != 0 {
			out += fmt.Sprintf(",%d", s.Target)
		}
		return out
	case "team":
		parts := make([]string, len(s.TeamOrder))
		for i, n := range s.TeamOrder {
			parts[i] = fmt.Sprintf("%d", n)
		}
		return "team " + strings.Join(parts, ",")
	default:
		return ""
	}
}
