// Package action implements the per-turn action queue: the Action variants
// of spec §3, and the sort/tie-break policy of spec §4.6 step 2.
package action

import (
	"sort"

	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/catalog"
	"github.com/louisbranch/battlecore/event"
	"github.com/louisbranch/battlecore/prng"
)

// Kind enumerates the Action variants spec §3 lists.
type Kind int

const (
	KindMove Kind = iota
	KindSwitch
	KindItem
	KindEscape
	KindForfeit
	KindTeamPreview
	KindLearnMove
	KindLevelUp
	KindExperience
	KindBeforeMove
	KindEnd
)

// kindBaseOrder gives each Kind its default per-kind ordering tier:
// switches run before moves, matching spec §4.6 step 2's "order (per
// action kind: switches run before moves...)". KindBeforeMove shares
// KindMove's tier rather than running as a separate global phase: a
// before-move action is always queued paired with (and immediately ahead
// of, by insertion order) the move action it gates, so a faster attacker's
// hit can flinch a slower target before that target's own before-move
// check runs this same turn.
var kindBaseOrder = map[Kind]int{
	KindTeamPreview: -30,
	KindSwitch:      -20,
	KindItem:        -10,
	KindBeforeMove:  0,
	KindMove:        0,
	KindLearnMove:   5,
	KindLevelUp:     6,
	KindExperience:  7,
	KindEscape:      -15,
	KindForfeit:     -40,
	KindEnd:         100,
}

// Action is one unit of turn work.
type Action struct {
	Kind     Kind
	Actor    arena.MonHandle
	Player   int
	Move     catalog.Id
	Targets  []arena.MonHandle
	Item     catalog.Id
	SwitchTo arena.MonHandle

	// Order is the per-kind tier above, possibly adjusted by a
	// mega-evolve/terastallize-like flag attaching to the move priority
	// tier per spec §4.6 step 2.
	Order int
	// Priority is the move's (possibly modify-priority-adjusted) signed
	// priority; zero for non-move actions.
	Priority int
	// Speed is the actor's effective Spe at sort time.
	Speed int
	// SubOrder is the action's insertion index, the final tiebreaker
	// before the configured tie policy.
	SubOrder int
}

// Queue holds this turn's actions and sorts them per spec §4.6 step 2.
type Queue struct {
	actions []Action
	policy  event.TiePolicy
	rng     prng.Generator
}

// NewQueue creates an empty Queue with the given tie-resolution policy.
func NewQueue(policy event.TiePolicy, rng prng.Generator) *Queue {
	return &Queue{policy: policy, rng: rng}
}

// Add appends action to the queue, assigning its SubOrder to the current
// insertion index and its Order to the kind's base tier if Order is unset.
func (q *Queue) Add(a Action) {
	a.SubOrder = len(q.actions)
	if a.Order == 0 {
		a.Order = kindBaseOrder[a.Kind]
	}
	q.actions = append(q.actions, a)
}

// Len reports how many actions remain queued.
func (q *Queue) Len() int { return len(q.actions) }

// Sort orders the queue by (order asc, priority desc, speed desc,
// sub-order asc), breaking remaining ties per the configured policy.
func (q *Queue) Sort() {
	less := func(a, b Action) (bool, bool) {
		if a.Order != b.Order {
			return a.Order < b.Order, true
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority, true
		}
		if a.Speed != b.Speed {
			return a.Speed > b.Speed, true
		}
		if a.SubOrder != b.SubOrder {
			return a.SubOrder < b.SubOrder, true
		}
		return false, false
	}
	sort.SliceStable(q.actions, func(i, j int) bool {
		lt, decided := less(q.actions[i], q.actions[j])
		if decided {
			return lt
		}
		if q.policy == event.TieReverse {
			return i > j
		}
		return i < j
	})

	if q.policy == event.TieRandom {
		shuffleTiedRuns(q.actions, q.rng)
	}
}

func shuffleTiedRuns(actions []Action, rng prng.Generator) {
	if rng == nil {
		return
	}
	equalKey := func(a, b Action) bool {
		return a.Order == b.Order && a.Priority == b.Priority && a.Speed == b.Speed && a.SubOrder == b.SubOrder
	}
	start := 0
	for start < len(actions) {
		end := start + 1
		for end < len(actions) && equalKey(actions[start], actions[end]) {
			end++
		}
		if end-start > 1 {
			prng.Shuffle(rng, actions[start:end])
		}
		start = end
	}
}

// Pop removes and returns the first action, or (_, false) if empty. The
// queue must be sorted first; Pop does not re-sort.
func (q *Queue) Pop() (Action, bool) {
	if len(q.actions) == 0 {
		return Action{}, false
	}
	a := q.actions[0]
	q.actions = q.actions[1:]
	return a, true
}

// InsertFront pushes a to the front of the queue, unsorted. No turn code
// calls it; forced switches are requested after the queue drains.
func (q *Queue) InsertFront(a Action) {
	q.actions = append([]Action{a}, q.actions...)
}

// All returns a copy of the remaining actions in their current order.
func (q *Queue) All() []Action {
	return append([]Action(nil), q.actions...)
}
