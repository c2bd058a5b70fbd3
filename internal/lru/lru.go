// Package lru provides a small bounded least-recently-used index: a
// doubly-linked list ordered most-recent-first plus a hash map from key to
// list element, giving O(1) touch and O(1) evict.
package lru

import (
	"container/list"

	"github.com/dolthub/swiss"
)

// Entry is a single LRU-tracked key/value pair.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// LRU is a bounded, most-recently-used-ordered index. It is not safe for
// concurrent use; callers must serialize externally, matching the single-
// producer assumption of the pooled upload heap this package was built
// for.
type LRU[K comparable, V any] struct {
	capacity int
	order    *list.List // front = most recently used
	index    *swiss.Map[K, *list.Element]
}

// New creates an LRU index bounded at capacity entries. capacity must be
// at least 1.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	return &LRU[K, V]{
		capacity: capacity,
		order:    list.New(),
		index:    swiss.NewMap[K, *list.Element](uint32(capacity)),
	}
}

// Len returns the number of entries currently tracked.
func (l *LRU[K, V]) Len() int {
	return l.order.Len()
}

// Get returns the value for key and promotes it to most-recently-used.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	elem, ok := l.index.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	l.order.MoveToFront(elem)
	return elem.Value.(*Entry[K, V]).Value, true
}

// Peek returns the value for key without affecting recency order.
func (l *LRU[K, V]) Peek(key K) (V, bool) {
	elem, ok := l.index.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	return elem.Value.(*Entry[K, V]).Value, true
}

// Put inserts or updates key, promoting it to most-recently-used. It does
// NOT evict on overflow — callers that need eviction-before-insert (the
// reusable command list cache does, so the evictee's staging slot can be
// unlocked before reclamation runs in the same call) must call Oldest and
// Remove themselves before Put.
func (l *LRU[K, V]) Put(key K, value V) {
	if elem, ok := l.index.Get(key); ok {
		elem.Value.(*Entry[K, V]).Value = value
		l.order.MoveToFront(elem)
		return
	}
	elem := l.order.PushFront(&Entry[K, V]{Key: key, Value: value})
	l.index.Put(key, elem)
}

// Remove drops key from the index if present.
func (l *LRU[K, V]) Remove(key K) {
	elem, ok := l.index.Get(key)
	if !ok {
		return
	}
	l.order.Remove(elem)
	l.index.Delete(key)
}

// Full reports whether the index is at or above capacity.
func (l *LRU[K, V]) Full() bool {
	return l.order.Len() >= l.capacity
}

// Oldest returns the least-recently-used entry without removing it.
func (l *LRU[K, V]) Oldest() (K, V, bool) {
	back := l.order.Back()
	if back == nil {
		var zk K
		var zv V
		return zk, zv, false
	}
	e := back.Value.(*Entry[K, V])
	return e.Key, e.Value, true
}
