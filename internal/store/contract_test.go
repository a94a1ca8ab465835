package store

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every backend shares.
func runContract(t *testing.T, s EventStore, answersEmpty bool) {
	t.Helper()
	ctx := context.Background()

	if answersEmpty {
		require.True(t, s.IsEmpty(ctx))
	}

	record, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, record)

	prev, err := s.Insert(ctx, "event-a", []byte(`["a",1]`))
	require.NoError(t, err)
	require.Nil(t, prev)
	require.False(t, s.IsEmpty(ctx))

	record, found, err = s.Get(ctx, "event-a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`["a",1]`), record)

	// a second read observes the same bytes
	again, _, err := s.Get(ctx, "event-a")
	require.NoError(t, err)
	require.Equal(t, record, again)

	prev, err = s.Insert(ctx, "event-a", []byte(`["a",2]`))
	require.NoError(t, err)
	require.Equal(t, []byte(`["a",1]`), prev)

	_, err = s.Insert(ctx, "event-b", []byte(`["b"]`))
	require.NoError(t, err)

	entries, err := s.GetAll(ctx)
	require.NoError(t, err)
	sort.Slice(entries, func(i, j int) bool { return entries[i].EventID < entries[j].EventID })
	require.Equal(t, []Entry{
		{EventID: "event-a", Record: []byte(`["a",2]`)},
		{EventID: "event-b", Record: []byte(`["b"]`)},
	}, entries)

	cas, ok := s.(ConditionalStore)
	if !ok {
		return
	}

	swapped, err := cas.CompareAndSwap(ctx, "event-a", []byte(`["a",1]`), []byte(`["a",3]`))
	require.NoError(t, err)
	require.False(t, swapped, "stale expected value must not swap")

	swapped, err = cas.CompareAndSwap(ctx, "event-a", []byte(`["a",2]`), []byte(`["a",3]`))
	require.NoError(t, err)
	require.True(t, swapped)

	swapped, err = cas.CompareAndSwap(ctx, "event-a", nil, []byte(`["a",4]`))
	require.NoError(t, err)
	require.False(t, swapped, "nil expected requires absence")

	swapped, err = cas.CompareAndSwap(ctx, "event-c", nil, []byte(`["c"]`))
	require.NoError(t, err)
	require.True(t, swapped)

	record, _, err = s.Get(ctx, "event-a")
	require.NoError(t, err)
	require.Equal(t, []byte(`["a",3]`), record)
}
