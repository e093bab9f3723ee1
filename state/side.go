package state

import (
	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/catalog"
)

// ConditionInstance is the mutable record for a side/slot/field condition
// in effect: remaining duration and a source mon for effects like Wish
// that pay out to whoever occupies the slot later.
type ConditionInstance struct {
	Duration int
	Layers   int
	Source   arena.MonHandle
	Data     map[string]int64
}

// Player owns a team, a bag, and the active Mon(s) it currently controls.
type Player struct {
	Index   int
	Name    string
	Team    []arena.MonHandle
	Bag     map[catalog.Id]int
	Active  []arena.MonHandle // handles currently on the field for this player
}

// NewPlayer creates an empty Player at index with the given display name.
func NewPlayer(index int, name string) *Player {
	return &Player{Index: index, Name: name, Bag: map[catalog.Id]int{}}
}

// Side is one of two (or more, in multi formats) competing groups. It owns
// one or more Players and the side/slot conditions layered on top of them.
type Side struct {
	Index      int
	Players    []*Player
	Conditions map[catalog.Id]*ConditionInstance
	SlotConditions map[int]map[catalog.Id]*ConditionInstance
}

// NewSide creates an empty Side at index.
func NewSide(index int) *Side {
	return &Side{
		Index:          index,
		Conditions:     map[catalog.Id]*ConditionInstance{},
		SlotConditions: map[int]map[catalog.Id]*ConditionInstance{},
	}
}

// AddCondition applies id to the side if absent. Reports whether it was
// newly added; re-application follows the condition's own layer script
// upstream (spec §3), this is only the set-membership primitive.
func (s *Side) AddCondition(id catalog.Id, duration int, source arena.MonHandle) (*ConditionInstance, bool) {
	if existing, ok := s.Conditions[id]; ok {
		return existing, false
	}
	ci := &ConditionInstance{Duration: duration, Source: source, Data: map[string]int64{}}
	s.Conditions[id] = ci
	return ci, true
}

// RemoveCondition deletes id from the side, reporting whether it was
// present.
func (s *Side) RemoveCondition(id catalog.Id) bool {
	if _, ok := s.Conditions[id]; !ok {
		return false
	}
	delete(s.Conditions, id)
	return true
}

// AllMonHandles returns every Mon handle owned by any Player on the side,
// in team order.
func (s *Side) AllMonHandles() []arena.MonHandle {
	var out []arena.MonHandle
	for _, p := range s.Players {
		out = append(out, p.Team...)
	}
	return out
}
