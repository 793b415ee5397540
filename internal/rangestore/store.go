// Package rangestore provides a thread-safe accumulator that groups values
// into fixed-width buckets of a numeric time key.
package rangestore

import (
	"fmt"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store buckets values by floor(key / width) * width. All methods are safe
// for concurrent use. Values put into a bucket after TakeAll removed it start
// a fresh bucket; nothing is lost.
type Store[V any] struct {
	width   float64
	buckets *xsync.MapOf[int64, []V]
}

// New creates a store with the given bucket width, which must be positive.
func New[V any](width float64) (*Store[V], error) {
	if !(width > 0) {
		return nil, fmt.Errorf("bucket width must be positive, got %v", width)
	}
	return &Store[V]{
		width:   width,
		buckets: xsync.NewMapOf[int64, []V](),
	}, nil
}

// Width returns the bucket width.
func (s *Store[V]) Width() float64 {
	return s.width
}

// Put appends value to the bucket containing key.
func (s *Store[V]) Put(key float64, value V) {
	s.buckets.Compute(s.BucketOf(key), func(old []V, _ bool) ([]V, bool) {
		return append(old, value), false
	})
}

// TakeAll atomically removes and returns every value in the bucket
// containing key. It returns nil when the bucket is empty.
func (s *Store[V]) TakeAll(key float64) []V {
	values, ok := s.buckets.LoadAndDelete(s.BucketOf(key))
	if !ok {
		return nil
	}
	return values
}

// Count returns the number of values in the bucket containing key.
func (s *Store[V]) Count(key float64) int {
	values, _ := s.buckets.Load(s.BucketOf(key))
	return len(values)
}

// ActiveRanges returns the number of non-empty buckets.
func (s *Store[V]) ActiveRanges() int {
	return s.buckets.Size()
}

// Prune drops every bucket that starts before the bucket containing key and
// returns how many values were discarded.
func (s *Store[V]) Prune(key float64) int {
	limit := s.BucketOf(key)
	dropped := 0
	s.buckets.Range(func(start int64, _ []V) bool {
		if start < limit {
			if values, ok := s.buckets.LoadAndDelete(start); ok {
				dropped += len(values)
			}
		}
		return true
	})
	return dropped
}

// Clear removes every bucket.
func (s *Store[V]) Clear() {
	s.buckets.Clear()
}

// BucketOf returns the start of the bucket containing key. Negative keys
// are shifted so that e.g. -1 lands in [-width, 0) rather than [0, width).
func (s *Store[V]) BucketOf(key float64) int64 {
	step := s.width
	value := key
	if value < 0 && step > 1 {
		value -= step - 1
	}
	return int64(float64(int64(value/step)) * step)
}
