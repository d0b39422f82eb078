package state_test

import (
	"sync"
	"testing"

	"github.com/sailctl/sailing/internal/state"
	"github.com/stretchr/testify/require"
)

func TestNextAllocatesSequentially(t *testing.T) {
	s := state.New(t.TempDir())
	for i := 1; i <= 3; i++ {
		n, err := s.Next(state.KindTask)
		require.NoError(t, err)
		require.Equal(t, i, n)
	}
}

func TestNextIsIndependentPerKind(t *testing.T) {
	s := state.New(t.TempDir())
	n1, err := s.Next(state.KindTask)
	require.NoError(t, err)
	n2, err := s.Next(state.KindEpic)
	require.NoError(t, err)
	require.Equal(t, 1, n1)
	require.Equal(t, 1, n2)
}

func TestNextPersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()
	s1 := state.New(dir)
	_, err := s1.Next(state.KindTask)
	require.NoError(t, err)

	s2 := state.New(dir)
	n, err := s2.Next(state.KindTask)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestNextSerializesConcurrentAllocations(t *testing.T) {
	s := state.New(t.TempDir())
	var wg sync.WaitGroup
	results := make(chan int, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Next(state.KindTask)
			require.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	for n := range results {
		require.False(t, seen[n], "duplicate allocation %d", n)
		seen[n] = true
	}
	require.Len(t, seen, 20)
}

func TestDocGetSetRoundTrip(t *testing.T) {
	d := state.NewDoc(t.TempDir(), "components")
	type payload struct {
		Version string `json:"version"`
	}
	require.NoError(t, d.Set(payload{Version: "1.2.3"}))

	var got payload
	require.NoError(t, d.Get(&got))
	require.Equal(t, "1.2.3", got.Version)
}

func TestDocGetMissingIsNotError(t *testing.T) {
	d := state.NewDoc(t.TempDir(), "nope")
	var got map[string]string
	require.NoError(t, d.Get(&got))
	require.Nil(t, got)
}
