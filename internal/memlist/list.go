// Package memlist implements a recency-ordered list with a key index, giving
// O(1) promote, remove and head access.
package memlist

import "iter"

type node[K comparable, V any] struct {
	key        K
	value      V
	prev, next *node[K, V]
}

// List keeps entries ordered from most to least recently promoted.
// It is not safe for concurrent use; owners guard it.
type List[K comparable, V any] struct {
	head, tail *node[K, V]
	index      map[K]*node[K, V]
}

// New creates an empty list.
func New[K comparable, V any]() *List[K, V] {
	return &List[K, V]{index: make(map[K]*node[K, V])}
}

// Len returns the number of entries.
func (l *List[K, V]) Len() int {
	return len(l.index)
}

// First returns the most recent entry's value.
func (l *List[K, V]) First() (V, bool) {
	if l.head == nil {
		var zero V
		return zero, false
	}
	return l.head.value, true
}

// PutToHead inserts value under key at the head. If key is already present
// the existing entry is promoted and value is ignored.
func (l *List[K, V]) PutToHead(key K, value V) {
	if n, ok := l.index[key]; ok {
		l.moveToHead(n)
		return
	}
	n := &node[K, V]{key: key, value: value}
	l.addToHead(n)
	l.index[key] = n
}

// Find returns the value stored under key, optionally promoting it.
func (l *List[K, V]) Find(key K, promote bool) (V, bool) {
	n, ok := l.index[key]
	if !ok {
		var zero V
		return zero, false
	}
	if promote {
		l.moveToHead(n)
	}
	return n.value, true
}

// Remove deletes key. It returns false, leaving the list untouched, when the
// key is absent.
func (l *List[K, V]) Remove(key K) bool {
	n, ok := l.index[key]
	if !ok {
		return false
	}
	delete(l.index, key)
	l.unlink(n)
	return true
}

// All iterates from head to tail. The list must not be modified during
// iteration.
func (l *List[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for n := l.head; n != nil; n = n.next {
			if !yield(n.key, n.value) {
				return
			}
		}
	}
}

// Values returns the values from head to tail.
func (l *List[K, V]) Values() []V {
	out := make([]V, 0, len(l.index))
	for n := l.head; n != nil; n = n.next {
		out = append(out, n.value)
	}
	return out
}

func (l *List[K, V]) addToHead(n *node[K, V]) {
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
	if l.tail == nil {
		l.tail = n
	}
}

func (l *List[K, V]) moveToHead(n *node[K, V]) {
	if n == l.head {
		return
	}
	l.unlink(n)
	l.addToHead(n)
}

func (l *List[K, V]) unlink(n *node[K, V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = nil, nil
}
