// Package arena provides stable integer handles to Mons and Active Moves so
// that references into Battle state survive mutation and never need to be
// represented as raw pointers held across yield points in the turn loop.
package arena

import (
	"sync"

	"github.com/louisbranch/battlecore/battleerr"
)

// MonHandle uniquely identifies a Mon inside one Battle for its lifetime.
type MonHandle uint64

// ActiveMoveHandle uniquely identifies a transient Active Move record.
type ActiveMoveHandle uint64

// Arena is a generic handle-indexed registry. It is not safe for
// concurrent mutation from multiple goroutines without external
// synchronization beyond the read/write accounting it performs itself;
// the battle engine is single-threaded per spec §5, so the mutex here
// exists to make "no code path mutably aliases an element while another
// mutable reference is outstanding" a runtime-checkable invariant rather
// than a convention.
type Arena[H ~uint64, T any] struct {
	mu      sync.Mutex
	items   map[H]*T
	nextID  uint64
	borrows map[H]int // >0 read borrows, -1 write borrow
}

// New creates an empty Arena.
func New[H ~uint64, T any]() *Arena[H, T] {
	return &Arena[H, T]{
		items:   map[H]*T{},
		borrows: map[H]int{},
		nextID:  1,
	}
}

// Insert adds a new element and returns its stable handle.
func (a *Arena[H, T]) Insert(value T) H {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := H(a.nextID)
	a.nextID++
	v := value
	a.items[h] = &v
	return h
}

// Get returns a read-only borrow of the element at h. Release must be
// called (via the returned done func) once the caller is finished reading.
func (a *Arena[H, T]) Get(h H) (*T, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item, ok := a.items[h]
	if !ok {
		return nil, nil, battleerr.Newf(battleerr.CodeInternalInvariant, "arena: handle %v not found", h)
	}
	if a.borrows[h] < 0 {
		return nil, nil, battleerr.Newf(battleerr.CodeInternalInvariant, "arena: handle %v already mutably borrowed", h)
	}
	a.borrows[h]++
	return item, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.borrows[h]--
	}, nil
}

// GetMut returns an exclusive, mutable borrow of the element at h.
func (a *Arena[H, T]) GetMut(h H) (*T, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	item, ok := a.items[h]
	if !ok {
		return nil, nil, battleerr.Newf(battleerr.CodeInternalInvariant, "arena: handle %v not found", h)
	}
	if a.borrows[h] != 0 {
		return nil, nil, battleerr.Newf(battleerr.CodeInternalInvariant, "arena: handle %v already borrowed", h)
	}
	a.borrows[h] = -1
	return item, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.borrows[h] = 0
	}, nil
}

// Contains reports whether h refers to a live element.
func (a *Arena[H, T]) Contains(h H) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.items[h]
	return ok
}

// Handles returns all live handles, in ascending (insertion) order.
func (a *Arena[H, T]) Handles() []H {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]H, 0, len(a.items))
	for h := range a.items {
		out = append(out, h)
	}
	// Handles are assigned monotonically, so a numeric sort is an
	// insertion-order sort. Done inline to avoid importing sort for one
	// call site's worth of use; N is always small (team size bounds).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Remove deletes the element at h. Used when an Active Move's transient
// record is discarded after a move use completes.
func (a *Arena[H, T]) Remove(h H) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.items, h)
	delete(a.borrows, h)
}
