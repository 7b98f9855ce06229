package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/limits"
	"github.com/packdb/packdb/internal/storage"
)

const owner int64 = 42

func seed(t *testing.T, store *storage.MemStore, pack string, entries ...entry.Entry) {
	t.Helper()
	_, err := store.InsertMissing(context.Background(), owner, pack, entries)
	require.NoError(t, err)
}

func media(data string) entry.Entry {
	return entry.Entry{Type: entry.TypeMedia, Data: data}
}

func TestParseDocumentRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{{`, ErrMalformed},
		{"wrong version", `{"version":"2.0","packs":[]}`, ErrUnsupportedVersion},
		{"missing version", `{"packs":[]}`, ErrUnsupportedVersion},
		{"triple entry", `{"version":"1.0","packs":[{"name":"cats","entries":[["s","a","x"]]}]}`, ErrMalformed},
		{"unknown code", `{"version":"1.0","packs":[{"name":"cats","entries":[["z","a"]]}]}`, ErrMalformed},
		{"bad name", `{"version":"1.0","packs":[{"name":"bad|name","entries":[]}]}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseDocumentNormalizesNames(t *testing.T) {
	doc, err := ParseDocument([]byte(`{"version":"1.0","packs":[{"name":"CaTs","entries":[["s","a"]]}]}`))
	require.NoError(t, err)
	require.Len(t, doc.Packs, 1)
	assert.Equal(t, "cats", doc.Packs[0].Name)
}

func TestExportRoundTrip(t *testing.T) {
	packs := map[string][]entry.Entry{
		"cats": {media("a"), {Type: entry.TypeExternalPack, Data: "dogs_set"}},
	}
	raw, err := ExportDocument(packs, []string{"cats"})
	require.NoError(t, err)

	doc, err := ParseDocument(raw)
	require.NoError(t, err)
	require.Len(t, doc.Packs, 1)
	assert.Equal(t, packs["cats"], doc.Packs[0].decodeEntries())
}

func TestConflictAnalysis(t *testing.T) {
	store := storage.NewMemStore()
	seed(t, store, "cats", media("a"))

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[
		{"name":"cats","entries":[["s","a"],["s","b"]]},
		{"name":"birds","entries":[["s","x"],["s","y"],["s","z"]]}
	]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))

	packs := s.Packs()
	require.Len(t, packs, 2)
	assert.True(t, packs[0].Conflict)
	assert.Equal(t, 1, packs[0].AddedCount, "only the non-overlapping entry counts")
	assert.False(t, packs[1].Conflict)
	assert.Equal(t, 3, packs[1].AddedCount)
	assert.Equal(t, PhaseResolveConflict, s.Phase())
}

func TestConflictLoopFileOrder(t *testing.T) {
	store := storage.NewMemStore()
	seed(t, store, "cats", media("a"))
	seed(t, store, "dogs", media("b"))

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[
		{"name":"dogs","entries":[["s","n1"]]},
		{"name":"cats","entries":[["s","n2"]]}
	]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))

	first := s.NextConflict()
	require.NotNil(t, first)
	assert.Equal(t, "dogs", first.Name)
	require.NoError(t, s.ResolveCurrent(ResolutionSkip))

	second := s.NextConflict()
	require.NotNil(t, second)
	assert.Equal(t, "cats", second.Name)
	require.NoError(t, s.ResolveCurrent(ResolutionMerge))

	assert.Nil(t, s.NextConflict())
	assert.Equal(t, PhaseLastConfirm, s.Phase())
}

func TestResolveWithoutConflictFails(t *testing.T) {
	s := NewSession(owner)
	assert.Error(t, s.ResolveCurrent(ResolutionMerge))
}

func TestSummary(t *testing.T) {
	store := storage.NewMemStore()
	seed(t, store, "cats", media("a"))

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[
		{"name":"cats","entries":[["s","b"]]},
		{"name":"birds","entries":[["s","x"]]}
	]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))
	require.NotNil(t, s.NextConflict())
	require.NoError(t, s.ResolveCurrent(ResolutionOverride))

	assert.Equal(t, "cats (OVERRIDE)\nbirds", s.Summary())
}

func TestApplyMerge(t *testing.T) {
	store := storage.NewMemStore()
	seed(t, store, "cats", media("a"))
	gate := limits.NewGate(store, 100)

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[{"name":"cats","entries":[["s","a"],["s","b"]]}]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))
	require.NotNil(t, s.NextConflict())
	require.NoError(t, s.ResolveCurrent(ResolutionMerge))
	assert.Equal(t, 1, s.NewEntryCount())
	s.Confirm()
	require.Equal(t, PhaseApply, s.Phase())

	require.NoError(t, s.Apply(context.Background(), store, gate))

	entries, err := store.ListEntries(context.Background(), owner, "cats", storage.MatchExact)
	require.NoError(t, err)
	assert.ElementsMatch(t, []entry.Entry{media("a"), media("b")}, entries)
}

func TestApplyOverride(t *testing.T) {
	store := storage.NewMemStore()
	seed(t, store, "cats", media("old1"), media("old2"))
	gate := limits.NewGate(store, 100)

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[{"name":"cats","entries":[["s","new"]]}]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))
	require.NotNil(t, s.NextConflict())
	require.NoError(t, s.ResolveCurrent(ResolutionOverride))
	s.Confirm()

	require.NoError(t, s.Apply(context.Background(), store, gate))

	entries, err := store.ListEntries(context.Background(), owner, "cats", storage.MatchExact)
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{media("new")}, entries)
}

func TestApplySkipLeavesPackAlone(t *testing.T) {
	store := storage.NewMemStore()
	seed(t, store, "cats", media("keep"))
	gate := limits.NewGate(store, 100)

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[{"name":"cats","entries":[["s","new"]]}]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))
	require.NotNil(t, s.NextConflict())
	require.NoError(t, s.ResolveCurrent(ResolutionSkip))
	s.Confirm()

	require.NoError(t, s.Apply(context.Background(), store, gate))

	entries, err := store.ListEntries(context.Background(), owner, "cats", storage.MatchExact)
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{media("keep")}, entries)
}

func TestApplyQuotaExceeded(t *testing.T) {
	store := storage.NewMemStore()
	gate := limits.NewGate(store, 2)

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[{"name":"birds","entries":[["s","x"],["s","y"],["s","z"]]}]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))
	s.Confirm()

	err := s.Apply(context.Background(), store, gate)
	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 3, qe.Need)

	exists, err := store.PackExists(context.Background(), owner, "birds")
	require.NoError(t, err)
	assert.False(t, exists, "rejected apply must not write anything")
}

func TestApplyBeforeConfirmFails(t *testing.T) {
	store := storage.NewMemStore()
	gate := limits.NewGate(store, 100)

	s := NewSession(owner)
	raw := []byte(`{"version":"1.0","packs":[{"name":"birds","entries":[["s","x"]]}]}`)
	require.NoError(t, s.ReceiveDocument(context.Background(), store, raw))

	assert.ErrorIs(t, s.Apply(context.Background(), store, gate), ErrUnresolvedConflict)
}
