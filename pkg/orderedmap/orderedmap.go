// Package orderedmap provides a generic map that keeps an independently
// mutable iteration order next to its keyed lookup.
//
// The order sequence is always a permutation of exactly the live keys. Every
// operation that addresses a missing key is a silent no-op: callers racing
// with a concurrent removal must never crash.
//
// Map is not safe for concurrent use. Owners guard it with their own lock.
package orderedmap

import (
	"iter"
	"slices"
)

// Map is a key/value map with a display order.
//
// The zero value is an empty map ready to use.
type Map[K comparable, V any] struct {
	values map[K]V
	order  []K

	// index maps each live key to its position in order. Every order
	// mutation keeps it in sync so Order is O(1).
	index map[K]int
}

// New returns an empty Map.
func New[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{}
}

func (m *Map[K, V]) init() {
	if m.values == nil {
		m.values = make(map[K]V)
		m.index = make(map[K]int)
	}
}

// reindex refreshes index for positions [from, to].
func (m *Map[K, V]) reindex(from, to int) {
	for i := from; i <= to && i < len(m.order); i++ {
		m.index[m.order[i]] = i
	}
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int {
	return len(m.order)
}

// Contains reports whether key is present.
func (m *Map[K, V]) Contains(key K) bool {
	_, ok := m.values[key]
	return ok
}

// Insert stores value under key. A new key is appended to the end of the
// order; an existing key keeps its position.
func (m *Map[K, V]) Insert(key K, value V) {
	m.init()
	if _, ok := m.values[key]; !ok {
		m.index[key] = len(m.order)
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

// Remove deletes key and splices it out of the order.
func (m *Map[K, V]) Remove(key K) {
	idx, ok := m.index[key]
	if !ok {
		return
	}
	delete(m.values, key)
	delete(m.index, key)
	m.order = slices.Delete(m.order, idx, idx+1)
	m.reindex(idx, len(m.order)-1)
}

// Get returns the value stored under key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Update calls f with a pointer to the value stored under key and stores
// the result back. It reports whether key was present.
func (m *Map[K, V]) Update(key K, f func(v *V)) bool {
	v, ok := m.values[key]
	if !ok {
		return false
	}
	f(&v)
	m.values[key] = v
	return true
}

// Order returns the zero-based position of key.
func (m *Map[K, V]) Order(key K) (int, bool) {
	idx, ok := m.index[key]
	return idx, ok
}

// KeyAtOrder returns the key at position i.
func (m *Map[K, V]) KeyAtOrder(i int) (K, bool) {
	if i < 0 || i >= len(m.order) {
		var zero K
		return zero, false
	}
	return m.order[i], true
}

// GetAtOrder returns the value at position i.
func (m *Map[K, V]) GetAtOrder(i int) (V, bool) {
	key, ok := m.KeyAtOrder(i)
	if !ok {
		var zero V
		return zero, false
	}
	return m.values[key], true
}

func (m *Map[K, V]) swap(i, j int) {
	m.order[i], m.order[j] = m.order[j], m.order[i]
	m.index[m.order[i]] = i
	m.index[m.order[j]] = j
}

// MoveUp swaps key with its predecessor. No-op at the first position.
func (m *Map[K, V]) MoveUp(key K) {
	idx, ok := m.index[key]
	if !ok || idx == 0 {
		return
	}
	m.swap(idx, idx-1)
}

// MoveDown swaps key with its successor. No-op at the last position.
func (m *Map[K, V]) MoveDown(key K) {
	idx, ok := m.index[key]
	if !ok || idx == len(m.order)-1 {
		return
	}
	m.swap(idx, idx+1)
}

// MoveTo removes key from its slot and reinserts it at target, shifting the
// elements in between by one. Target is clamped to the valid range.
func (m *Map[K, V]) MoveTo(key K, target int) {
	idx, ok := m.index[key]
	if !ok {
		return
	}
	target = max(0, min(target, len(m.order)-1))
	if target == idx {
		return
	}
	m.order = slices.Delete(m.order, idx, idx+1)
	m.order = slices.Insert(m.order, target, key)
	m.reindex(min(idx, target), max(idx, target))
}

// MoveBeforeOther places key immediately before other using adjacent swaps,
// so the relative order of everything outside the span is untouched.
func (m *Map[K, V]) MoveBeforeOther(key, other K) {
	if key == other {
		return
	}
	i, ok := m.index[key]
	if !ok {
		return
	}
	j, ok := m.index[other]
	if !ok || i == j-1 {
		return
	}
	if i < j {
		for ; i < j-1; i++ {
			m.swap(i, i+1)
		}
		return
	}
	for ; i > j; i-- {
		m.swap(i, i-1)
	}
}

// MoveToEnd walks key to the last position.
func (m *Map[K, V]) MoveToEnd(key K) {
	idx, ok := m.index[key]
	if !ok {
		return
	}
	for ; idx < len(m.order)-1; idx++ {
		m.swap(idx, idx+1)
	}
}

// SwapOrder exchanges the positions of a and b.
func (m *Map[K, V]) SwapOrder(a, b K) {
	i, ok := m.index[a]
	if !ok {
		return
	}
	j, ok := m.index[b]
	if !ok {
		return
	}
	m.swap(i, j)
}

// Append moves every entry of other into m, after m's own entries, and
// leaves other empty. Keys already present in m are overwritten in place.
func (m *Map[K, V]) Append(other *Map[K, V]) {
	if other == nil || other == m {
		return
	}
	for _, key := range other.order {
		m.Insert(key, other.values[key])
	}
	other.Clear()
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.values = nil
	m.index = nil
	m.order = nil
}

// All iterates over the entries in order. Each call starts from the first
// position.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range m.order {
			if !yield(key, m.values[key]) {
				return
			}
		}
	}
}

// Keys returns a copy of the order sequence.
func (m *Map[K, V]) Keys() []K {
	return slices.Clone(m.order)
}

// Values returns the values in order.
func (m *Map[K, V]) Values() []V {
	out := make([]V, 0, len(m.order))
	for _, key := range m.order {
		out = append(out, m.values[key])
	}
	return out
}

// Clone returns a copy of m. cloneValue, when non-nil, deep-copies each
// value.
func (m *Map[K, V]) Clone(cloneValue func(V) V) *Map[K, V] {
	out := New[K, V]()
	for _, key := range m.order {
		v := m.values[key]
		if cloneValue != nil {
			v = cloneValue(v)
		}
		out.Insert(key, v)
	}
	return out
}
