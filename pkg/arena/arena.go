package arena

import (
	"math"
	"sync"
)

// Key addresses one value in an Arena. The zero Key never resolves.
type Key struct {
	Index uint32
	Gen   uint32
}

// IsZero reports whether k is the zero key.
func (k Key) IsZero() bool {
	return k.Gen == 0
}

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// Arena is a concurrent-safe generational arena.
type Arena[T any] struct {
	mu    sync.RWMutex
	slots []slot[T]
	free  []uint32
	live  int
}

// New creates an empty arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Insert stores v and returns its key.
func (a *Arena[T]) Insert(v T) Key {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.gen++
	s.used = true
	s.val = v
	a.live++
	return Key{Index: idx, Gen: s.gen}
}

// Get returns the value stored under k.
func (a *Arena[T]) Get(k Key) (T, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var zero T
	s, ok := a.lookup(k)
	if !ok {
		return zero, false
	}
	return s.val, true
}

// Contains reports whether k resolves to a live value.
func (a *Arena[T]) Contains(k Key) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.lookup(k)
	return ok
}

// Remove deletes the value under k and returns it. The slot becomes
// reusable under a new generation; a slot whose generation is exhausted is
// retired for good.
func (a *Arena[T]) Remove(k Key) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	s, ok := a.lookup(k)
	if !ok {
		return zero, false
	}
	v := s.val
	s.val = zero
	s.used = false
	a.live--
	if s.gen < math.MaxUint32 {
		a.free = append(a.free, k.Index)
	}
	return v, true
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Range calls fn for every live value until fn returns false. The arena is
// read-locked for the duration; fn must not modify it.
func (a *Arena[T]) Range(fn func(k Key, v T) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for i := range a.slots {
		s := &a.slots[i]
		if !s.used {
			continue
		}
		if !fn(Key{Index: uint32(i), Gen: s.gen}, s.val) {
			return
		}
	}
}

func (a *Arena[T]) lookup(k Key) (*slot[T], bool) {
	if k.Gen == 0 || int(k.Index) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[k.Index]
	if !s.used || s.gen != k.Gen {
		return nil, false
	}
	return s, true
}
