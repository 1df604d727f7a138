package cmap

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input    int
		expected int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{32, 32},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[int](tt.input)
			if m.ShardCount() != tt.expected {
				t.Errorf("NewWithShards(%d) shard count = %d, want %d",
					tt.input, m.ShardCount(), tt.expected)
			}
		})
	}
}

func TestSetGetDelete(t *testing.T) {
	m := New[int]()

	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("a", 3)

	if v, ok := m.Get("a"); !ok || v != 3 {
		t.Errorf("Get(a) = (%d, %v), want (3, true)", v, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get(missing) should report absent")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("a")
	m.Delete("missing")
	if _, ok := m.Get("a"); ok {
		t.Error("a should be gone after Delete")
	}
}

func TestSetIfAbsent(t *testing.T) {
	m := New[string]()
	if !m.SetIfAbsent("k", "first") {
		t.Fatal("first SetIfAbsent should store")
	}
	if m.SetIfAbsent("k", "second") {
		t.Fatal("second SetIfAbsent should not store")
	}
	if v, _ := m.Get("k"); v != "first" {
		t.Errorf("Get(k) = %q, want first", v)
	}
}

func TestPop(t *testing.T) {
	m := New[int]()
	m.Set("x", 7)

	v, ok := m.Pop("x")
	if !ok || v != 7 {
		t.Errorf("Pop(x) = (%d, %v), want (7, true)", v, ok)
	}
	if _, ok := m.Pop("x"); ok {
		t.Error("second Pop should report absent")
	}
}

func TestRange(t *testing.T) {
	m := New[int]()
	for i := 0; i < 50; i++ {
		m.Set(strconv.Itoa(i), i)
	}

	seen := 0
	m.Range(func(k string, v int) bool {
		if k != strconv.Itoa(v) {
			t.Errorf("pair mismatch %s=%d", k, v)
		}
		seen++
		return true
	})
	if seen != 50 {
		t.Errorf("Range visited %d, want 50", seen)
	}

	count := 0
	m.Range(func(string, int) bool {
		count++
		return count < 10
	})
	if count != 10 {
		t.Errorf("Range stopped at %d, want 10", count)
	}

	values := m.Values()
	sort.Ints(values)
	if len(values) != 50 || values[0] != 0 || values[49] != 49 {
		t.Errorf("Values() = %v", values)
	}
}

func TestConcurrentAccess(t *testing.T) {
	m := New[int]()
	var wg sync.WaitGroup
	const workers, ops = 32, 500

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				key := strconv.Itoa(base*ops + j)
				m.Set(key, j)
				m.Get(key)
			}
		}(i)
	}
	wg.Wait()

	if m.Count() != workers*ops {
		t.Errorf("Count() = %d, want %d", m.Count(), workers*ops)
	}
}
