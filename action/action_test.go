package action

import (
	"testing"

	"github.com/louisbranch/battlecore/arena"
	"github.com/louisbranch/battlecore/event"
	"github.com/louisbranch/battlecore/prng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueSwitchesBeforeMoves(t *testing.T) {
	q := NewQueue(event.TieKeep, nil)
	q.Add(Action{Kind: KindMove, Speed: 100})
	q.Add(Action{Kind: KindSwitch, Speed: 1})
	q.Sort()

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, KindSwitch, first.Kind)
}

func TestQueueSortsByPriorityThenSpeed(t *testing.T) {
	q := NewQueue(event.TieKeep, nil)
	q.Add(Action{Kind: KindMove, Speed: 50, Priority: 0})
	q.Add(Action{Kind: KindMove, Speed: 10, Priority: 1})
	q.Add(Action{Kind: KindMove, Speed: 200, Priority: 0})
	q.Sort()

	first, _ := q.Pop()
	assert.Equal(t, 1, first.Priority)
	second, _ := q.Pop()
	assert.Equal(t, 200, second.Speed)
	third, _ := q.Pop()
	assert.Equal(t, 50, third.Speed)
}

func TestQueueTieKeepPreservesInsertionOrder(t *testing.T) {
	q := NewQueue(event.TieKeep, nil)
	q.Add(Action{Kind: KindMove, Speed: 50, Player: 0})
	q.Add(Action{Kind: KindMove, Speed: 50, Player: 1})
	q.Sort()

	first, _ := q.Pop()
	assert.Equal(t, 0, first.Player)
	second, _ := q.Pop()
	assert.Equal(t, 1, second.Player)
}

func TestQueueTieReverseFlipsInsertionOrder(t *testing.T) {
	q := NewQueue(event.TieReverse, nil)
	q.Add(Action{Kind: KindMove, Speed: 50, Player: 0})
	q.Add(Action{Kind: KindMove, Speed: 50, Player: 1})
	q.Sort()

	first, _ := q.Pop()
	assert.Equal(t, 1, first.Player)
}

func TestQueueTieRandomPicksAValidPermutation(t *testing.T) {
	q := NewQueue(event.TieRandom, prng.New(7))
	q.Add(Action{Kind: KindMove, Speed: 50, Player: 0})
	q.Add(Action{Kind: KindMove, Speed: 50, Player: 1})
	q.Sort()

	all := q.All()
	require.Len(t, all, 2)
	assert.ElementsMatch(t, []int{0, 1}, []int{all[0].Player, all[1].Player})
}

func TestQueueBeforeMoveSharesItsPairedMovesOrderTier(t *testing.T) {
	q := NewQueue(event.TieKeep, nil)
	// A slower actor's before-move/move pair, queued first...
	q.Add(Action{Kind: KindBeforeMove, Actor: 2, Speed: 10})
	q.Add(Action{Kind: KindMove, Actor: 2, Speed: 10})
	// ...then a faster actor's pair, queued second.
	q.Add(Action{Kind: KindBeforeMove, Actor: 1, Speed: 100})
	q.Add(Action{Kind: KindMove, Actor: 1, Speed: 100})
	q.Sort()

	var order []Kind
	var actors []arena.MonHandle
	for {
		a, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, a.Kind)
		actors = append(actors, a.Actor)
	}

	// Speed breaks the tie between the two pairs (both share order 0), and
	// within a pair insertion order (SubOrder) keeps before-move ahead of
	// its own move: the faster actor's pair runs entirely before the
	// slower actor's, each as (BeforeMove, Move).
	assert.Equal(t, []Kind{KindBeforeMove, KindMove, KindBeforeMove, KindMove}, order)
	assert.Equal(t, []arena.MonHandle{1, 1, 2, 2}, actors)
}

func TestQueueEndRunsAfterEveryMove(t *testing.T) {
	q := NewQueue(event.TieKeep, nil)
	q.Add(Action{Kind: KindMove, Speed: 200})
	q.Add(Action{Kind: KindMove, Speed: 5})
	q.Add(Action{Kind: KindEnd})
	q.Sort()

	var order []Kind
	for {
		a, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, a.Kind)
	}
	assert.Equal(t, []Kind{KindMove, KindMove, KindEnd}, order)
}

func TestQueueInsertFrontForForcedSwitch(t *testing.T) {
	q := NewQueue(event.TieKeep, nil)
	q.Add(Action{Kind: KindMove})
	q.InsertFront(Action{Kind: KindSwitch, Player: 9})

	first, _ := q.Pop()
	assert.Equal(t, KindSwitch, first.Kind)
	assert.Equal(t, 9, first.Player)
}
