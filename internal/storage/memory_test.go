package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packdb/packdb/internal/entry"
)

func TestRemovePackDropsExistence(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	owner := int64(1)

	_, err := s.InsertMissing(ctx, owner, "cats", []entry.Entry{
		{Type: entry.TypeMedia, Data: "a"},
		{Type: entry.TypeMedia, Data: "b"},
	})
	require.NoError(t, err)

	removed, err := s.RemovePack(ctx, owner, "cats")
	require.NoError(t, err)
	assert.True(t, removed)

	ok, err := s.PackExists(ctx, owner, "cats")
	require.NoError(t, err)
	assert.False(t, ok)

	packs, err := s.ListPacks(ctx, owner)
	require.NoError(t, err)
	assert.NotContains(t, packs, "cats")

	removed, err = s.RemovePack(ctx, owner, "cats")
	require.NoError(t, err)
	assert.False(t, removed, "second removal deletes nothing")
}

func TestToggleEntryIsItsOwnInverse(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	owner := int64(1)
	e := entry.Entry{Type: entry.TypeMedia, Data: "a"}

	added, err := s.ToggleEntry(ctx, owner, "cats", e, false)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.ToggleEntry(ctx, owner, "cats", e, false)
	require.NoError(t, err)
	assert.False(t, added)

	ok, err := s.EntryExists(ctx, owner, "cats", e)
	require.NoError(t, err)
	assert.False(t, ok, "back to the original absent state")
}

func TestToggleEntryOnlyRemoveNeverInserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	owner := int64(1)
	e := entry.Entry{Type: entry.TypeMedia, Data: "a"}

	_, err := s.ToggleEntry(ctx, owner, "cats", e, true)
	require.NoError(t, err)

	ok, err := s.EntryExists(ctx, owner, "cats", e)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListEntriesPrefixSpansPacks(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	owner := int64(1)

	_, err := s.InsertMissing(ctx, owner, "cats", []entry.Entry{{Type: entry.TypeMedia, Data: "a"}})
	require.NoError(t, err)
	_, err = s.InsertMissing(ctx, owner, "cats2", []entry.Entry{{Type: entry.TypeMedia, Data: "b"}})
	require.NoError(t, err)
	_, err = s.InsertMissing(ctx, owner, "dogs", []entry.Entry{{Type: entry.TypeMedia, Data: "c"}})
	require.NoError(t, err)

	got, err := s.ListEntries(ctx, owner, "cat", MatchPrefix)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListEntries(ctx, owner, "cats", MatchExact)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInsertMissingCountsOnlyNewRows(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	owner := int64(1)

	_, err := s.InsertMissing(ctx, owner, "cats", []entry.Entry{{Type: entry.TypeMedia, Data: "a"}})
	require.NoError(t, err)

	n, err := s.InsertMissing(ctx, owner, "cats", []entry.Entry{
		{Type: entry.TypeMedia, Data: "a"},
		{Type: entry.TypeMedia, Data: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	total, err := s.CountEntries(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestValidationRejectedAtWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.ToggleEntry(ctx, 1, "cats", entry.Entry{Type: entry.TypeMedia, Data: ""}, false)
	assert.Error(t, err)

	long := make([]byte, entry.MaxDataLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.InsertMissing(ctx, 1, "cats", []entry.Entry{{Type: entry.TypeMedia, Data: string(long)}})
	assert.Error(t, err)
}
