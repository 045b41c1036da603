package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[func(int)]()
	require.NotNil(t, r)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Snapshot())
}

func TestRegistry_AddKeepsRegistrationOrder(t *testing.T) {
	r := New[string]()

	for _, name := range []string{"a", "b", "c"} {
		_, ok := r.Add(name)
		require.True(t, ok)
	}

	var got []string
	for _, e := range r.Snapshot() {
		got = append(got, e.Listener)
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestRegistry_IDsAreUnique(t *testing.T) {
	r := New[string]()

	id1, _ := r.Add("same")
	id2, _ := r.Add("same")

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_RemoveExactlyOne(t *testing.T) {
	r := New[string]()

	id1, _ := r.Add("same")
	id2, _ := r.Add("same")
	_, _ = r.Add("other")

	assert.True(t, r.Remove(id1))
	assert.False(t, r.Contains(id1))
	assert.True(t, r.Contains(id2))
	assert.Equal(t, 2, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, id2, snap[0].ID)
	assert.Equal(t, "other", snap[1].Listener)
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := New[string]()

	id, _ := r.Add("x")
	assert.True(t, r.Remove(id))
	assert.False(t, r.Remove(id))
	assert.False(t, r.Remove(12345))
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := New[string]()
	id, _ := r.Add("x")

	snap := r.Snapshot()
	r.Remove(id)
	_, _ = r.Add("y")

	require.Len(t, snap, 1)
	assert.Equal(t, "x", snap[0].Listener)
}

func TestRegistry_Close(t *testing.T) {
	r := New[string]()
	id, _ := r.Add("x")

	r.Close()

	assert.Zero(t, r.Len())
	assert.False(t, r.Contains(id))
	assert.False(t, r.Remove(id))

	_, ok := r.Add("late")
	assert.False(t, ok, "Add after Close must be rejected")
	assert.Zero(t, r.Len())

	// idempotent
	r.Close()
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New[int]()

	var wg sync.WaitGroup
	const goroutines = 10
	const ops = 100

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				id, ok := r.Add(n)
				if ok {
					r.Remove(id)
				}
			}
		}(i)
	}

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < ops; j++ {
				for _, e := range r.Snapshot() {
					_ = r.Contains(e.ID)
				}
			}
		}()
	}

	wg.Wait()
	assert.Zero(t, r.Len())
}
