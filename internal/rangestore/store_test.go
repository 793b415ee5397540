package rangestore

import (
	"sync"
	"testing"
)

func TestNew_RejectsNonPositiveWidth(t *testing.T) {
	for _, w := range []float64{0, -1} {
		if _, err := New[int](w); err == nil {
			t.Errorf("New(%v): expected error", w)
		}
	}
}

func TestStore_BucketOf(t *testing.T) {
	s, err := New[int](25)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tests := []struct {
		key  float64
		want int64
	}{
		{0, 0},
		{24.9, 0},
		{25, 25},
		{49, 25},
		{-1, -25},
		{-25, -25},
	}
	for _, tt := range tests {
		if got := s.BucketOf(tt.key); got != tt.want {
			t.Errorf("BucketOf(%v) = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestStore_PutTakeAll(t *testing.T) {
	s, _ := New[string](10)
	s.Put(1, "a")
	s.Put(9, "b")
	s.Put(11, "c")

	if got := s.Count(5); got != 2 {
		t.Errorf("Count(5) = %d, want 2", got)
	}
	if got := s.ActiveRanges(); got != 2 {
		t.Errorf("ActiveRanges() = %d, want 2", got)
	}

	values := s.TakeAll(3)
	if len(values) != 2 || values[0] != "a" || values[1] != "b" {
		t.Errorf("TakeAll(3) = %v, want [a b]", values)
	}
	if got := s.TakeAll(3); got != nil {
		t.Errorf("second TakeAll should be empty, got %v", got)
	}
	if got := s.Count(15); got != 1 {
		t.Errorf("Count(15) = %d, want 1", got)
	}
}

func TestStore_PruneAndClear(t *testing.T) {
	s, _ := New[int](1)
	for i := 0; i < 5; i++ {
		s.Put(float64(i), i)
	}
	if dropped := s.Prune(3); dropped != 3 {
		t.Errorf("Prune(3) dropped %d, want 3", dropped)
	}
	if got := s.ActiveRanges(); got != 2 {
		t.Errorf("ActiveRanges() after prune = %d, want 2", got)
	}
	s.Clear()
	if got := s.ActiveRanges(); got != 0 {
		t.Errorf("ActiveRanges() after clear = %d, want 0", got)
	}
}

func TestStore_ConcurrentPut(t *testing.T) {
	s, _ := New[int](1)
	const writers, perWriter = 8, 500

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				s.Put(0, i)
			}
		}()
	}
	wg.Wait()

	if got := len(s.TakeAll(0)); got != writers*perWriter {
		t.Errorf("TakeAll returned %d values, want %d", got, writers*perWriter)
	}
}
