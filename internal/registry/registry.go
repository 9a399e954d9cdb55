// Package registry provides handle tables: integer handles mapped to owned
// values, used by the bridge to hand opaque SDK objects (auth-state listener
// registrations, phone resend tokens) to the channel peer by number.
//
// Handles are assigned from a monotonically increasing counter starting at 0
// and are never reused, even after removal.
package registry

import (
	"sort"
	"sync"
)

// Table is a thread-safe handle table.
// The zero value is not usable; create tables with New.
type Table[T any] struct {
	mu      sync.Mutex
	next    int
	entries map[int]T
}

// New creates an empty table whose first handle is 0.
func New[T any]() *Table[T] {
	return &Table[T]{
		entries: make(map[int]T),
	}
}

// Register stores v under the next handle and returns that handle.
func (t *Table[T]) Register(v T) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	handle := t.next
	t.next++
	t.entries[handle] = v
	return handle
}

// Get returns the value stored under handle.
func (t *Table[T]) Get(handle int) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[handle]
	return v, ok
}

// Remove deletes handle from the table and returns the value it held.
// The boolean is false when the handle was never issued or already removed.
func (t *Table[T]) Remove(handle int) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[handle]
	if ok {
		delete(t.entries, handle)
	}
	return v, ok
}

// Len returns the number of live entries.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Drain removes every entry and returns the values in handle order.
// The handle counter is not reset.
func (t *Table[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	handles := make([]int, 0, len(t.entries))
	for h := range t.entries {
		handles = append(handles, h)
	}
	sort.Ints(handles)

	values := make([]T, 0, len(handles))
	for _, h := range handles {
		values = append(values, t.entries[h])
		delete(t.entries, h)
	}
	return values
}
