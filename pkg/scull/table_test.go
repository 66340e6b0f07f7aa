package scull

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haivivi/scullring/pkg/ring"
)

// countingAllocator fails the allocation at index failAt and records every
// Alloc and Free call.
type countingAllocator struct {
	failAt int

	mu     sync.Mutex
	allocs []int
	frees  []int
}

func (a *countingAllocator) Alloc(index, size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index == a.failAt {
		return nil, errors.New("no memory")
	}
	a.allocs = append(a.allocs, index)
	return make([]byte, size), nil
}

func (a *countingAllocator) Free(index int, _ []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frees = append(a.frees, index)
}

func (a *countingAllocator) outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.allocs) - len(a.frees)
}

func newTable(t *testing.T, instances, capacity int) *Table {
	t.Helper()
	tbl, err := New(Config{Instances: instances, Capacity: capacity, Prefix: DefaultPrefix})
	require.NoError(t, err)
	t.Cleanup(tbl.Destroy)
	return tbl
}

func TestNewDefault(t *testing.T) {
	tbl := newTable(t, DefaultInstances, DefaultCapacity)

	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, 1024, tbl.Capacity())
	assert.Equal(t, []string{"channel-0", "channel-1"}, tbl.Names())

	for i := range tbl.Len() {
		st, err := tbl.Status(i)
		require.NoError(t, err)
		assert.Equal(t, ring.Status{Capacity: 1024}, st)
	}
}

func TestNewInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero instances", Config{Instances: 0, Capacity: 16, Prefix: "c"}},
		{"negative instances", Config{Instances: -1, Capacity: 16, Prefix: "c"}},
		{"zero capacity", Config{Instances: 1, Capacity: 0, Prefix: "c"}},
		{"empty prefix", Config{Instances: 1, Capacity: 16}},
		{"slash in prefix", Config{Instances: 1, Capacity: 16, Prefix: "a/b"}},
		{"colon in prefix", Config{Instances: 1, Capacity: 16, Prefix: "a:b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &countingAllocator{failAt: -1}
			_, err := New(tt.cfg, WithAllocator(alloc))
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Empty(t, alloc.allocs, "no storage allocated for an invalid config")
		})
	}
}

func TestNewRollback(t *testing.T) {
	alloc := &countingAllocator{failAt: 2}
	tbl, err := New(Config{Instances: 5, Capacity: 64, Prefix: "ch"}, WithAllocator(alloc))
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Nil(t, tbl)
	assert.Contains(t, err.Error(), "ch-2")

	if diff := cmp.Diff([]int{0, 1}, alloc.allocs); diff != "" {
		t.Errorf("allocs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 0}, alloc.frees); diff != "" {
		t.Errorf("frees mismatch (-want +got):\n%s", diff)
	}
	assert.Zero(t, alloc.outstanding())
}

func TestNewRollbackFirst(t *testing.T) {
	alloc := &countingAllocator{failAt: 0}
	_, err := New(Config{Instances: 3, Capacity: 8, Prefix: "ch"}, WithAllocator(alloc))
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Empty(t, alloc.frees)
}

func TestNewMemoryLimit(t *testing.T) {
	_, err := New(Config{Instances: 4, Capacity: 100, Prefix: "ch"}, WithMemoryLimit(250))
	require.ErrorIs(t, err, ErrOutOfMemory)

	tbl, err := New(Config{Instances: 2, Capacity: 100, Prefix: "ch"}, WithMemoryLimit(250))
	require.NoError(t, err)
	tbl.Destroy()
}

func TestNewHugeInstanceCount(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"max int channels", Config{Instances: math.MaxInt, Capacity: 1, Prefix: "ch"}},
		{"half max int channels", Config{Instances: math.MaxInt / 2, Capacity: 1, Prefix: "ch"}},
		{"storage past heap", Config{Instances: 1 << 20, Capacity: 1 << 30, Prefix: "ch"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := &countingAllocator{failAt: -1}
			tbl, err := New(tt.cfg, WithAllocator(alloc))
			require.ErrorIs(t, err, ErrOutOfMemory)
			assert.Nil(t, tbl)
			assert.Empty(t, alloc.allocs)
		})
	}
}

func TestHeapAllocatorBudget(t *testing.T) {
	a := NewHeapAllocator(10)
	b1, err := a.Alloc(0, 6)
	require.NoError(t, err)
	_, err = a.Alloc(1, 6)
	require.ErrorIs(t, err, ErrOutOfMemory)
	a.Free(0, b1)
	_, err = a.Alloc(1, 6)
	require.NoError(t, err)
}

func TestDestroy(t *testing.T) {
	alloc := &countingAllocator{failAt: -1}
	tbl, err := New(Config{Instances: 3, Capacity: 8, Prefix: "ch"}, WithAllocator(alloc))
	require.NoError(t, err)

	tbl.Destroy()
	tbl.Destroy()

	if diff := cmp.Diff([]int{2, 1, 0}, alloc.frees); diff != "" {
		t.Errorf("frees mismatch (-want +got):\n%s", diff)
	}
	_, err = tbl.Channel(0)
	require.ErrorIs(t, err, ErrNoSuchInstance)
	assert.Nil(t, tbl.Snapshot())

	var zero *Table
	zero.Destroy()
}

func TestLookup(t *testing.T) {
	tbl := newTable(t, 3, 8)

	tests := []struct {
		name  string
		index int
		err   error
	}{
		{"channel-0", 0, nil},
		{"channel-2", 2, nil},
		{"1", 1, nil},
		{"channel-3", 0, ErrNoSuchInstance},
		{"channel--1", 0, ErrNoSuchInstance},
		{"other-1", 0, ErrNoSuchInstance},
		{"", 0, ErrNoSuchInstance},
		{"channel-01", 0, ErrNoSuchInstance},
		{"channel-+1", 0, ErrNoSuchInstance},
		{"+1", 0, ErrNoSuchInstance},
		{"01", 0, ErrNoSuchInstance},
		{"channel- 1", 0, ErrNoSuchInstance},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.name), func(t *testing.T) {
			index, err := tbl.Lookup(tt.name)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, index)
		})
	}
}

func TestChannelsIndependent(t *testing.T) {
	tbl := newTable(t, 2, 16)
	ctx := context.Background()

	a, err := tbl.Open(0, ring.Blocking)
	require.NoError(t, err)
	b, err := tbl.Open(1, ring.Blocking)
	require.NoError(t, err)

	_, err = a.Write(ctx, []byte("only in zero"))
	require.NoError(t, err)

	st, err := b.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Occupancy)

	want := []ChannelStatus{
		{Index: 0, Name: "channel-0", Status: ring.Status{Occupancy: 12, Capacity: 16, WriteCursor: 12, Written: 12}},
		{Index: 1, Name: "channel-1", Status: ring.Status{Capacity: 16}},
	}
	if diff := cmp.Diff(want, tbl.Snapshot()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}
