package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/storage"
)

type fakeLister struct {
	entries []entry.Entry
}

func (f *fakeLister) ListEntries(_ context.Context, _ int64, _ string, _ storage.MatchMode) ([]entry.Entry, error) {
	return f.entries, nil
}

type fakeSource struct {
	sets    map[string][]entry.Entry
	lookups []string
}

func (f *fakeSource) SetItems(_ context.Context, name string) ([]entry.Entry, error) {
	f.lookups = append(f.lookups, name)
	items, ok := f.sets[name]
	if !ok {
		return nil, ErrSetNotFound
	}
	return items, nil
}

type fakeScrubber struct {
	scrubbed []string
}

func (f *fakeScrubber) ExternalPackRemoved(_ context.Context, _ int64, setName string) {
	f.scrubbed = append(f.scrubbed, setName)
}

func media(data string) entry.Entry {
	return entry.Entry{Type: entry.TypeMedia, Data: data}
}

func external(name string) entry.Entry {
	return entry.Entry{Type: entry.TypeExternalPack, Data: name}
}

func mediaRange(prefix string, n int) []entry.Entry {
	out := make([]entry.Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, media(fmt.Sprintf("%s%02d", prefix, i)))
	}
	return out
}

func newTestResolver(stored []entry.Entry, sets map[string][]entry.Entry) (*Resolver, *fakeSource, *fakeScrubber) {
	src := &fakeSource{sets: sets}
	scr := &fakeScrubber{}
	return New(&fakeLister{entries: stored}, src, scr), src, scr
}

func TestResolveDirectEntriesWindow(t *testing.T) {
	r, _, _ := newTestResolver(mediaRange("m", 30), nil)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 0, 25, storage.MatchExact)
	require.NoError(t, err)
	assert.Len(t, page, 25)
	assert.True(t, more)

	page, more, err = r.Resolve(context.Background(), 1, "cats", 25, 25, storage.MatchExact)
	require.NoError(t, err)
	assert.Len(t, page, 5)
	assert.False(t, more)
	assert.Equal(t, media("m25"), page[0])
}

func TestResolveExactlyFullPage(t *testing.T) {
	r, _, _ := newTestResolver(mediaRange("m", 25), nil)
	page, more, err := r.Resolve(context.Background(), 1, "cats", 0, 25, storage.MatchExact)
	require.NoError(t, err)
	assert.Len(t, page, 25)
	assert.False(t, more)
}

func TestResolveExpandsExternalPack(t *testing.T) {
	stored := []entry.Entry{media("a"), external("dogs"), media("b")}
	sets := map[string][]entry.Entry{"dogs": mediaRange("d", 3)}
	r, _, _ := newTestResolver(stored, sets)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 0, 10, storage.MatchExact)
	require.NoError(t, err)
	assert.False(t, more)
	want := []entry.Entry{media("a"), media("d00"), media("d01"), media("d02"), media("b")}
	assert.Equal(t, want, page)
}

func TestResolveOffsetSplitsExternalPack(t *testing.T) {
	stored := []entry.Entry{media("a"), external("dogs"), media("b")}
	sets := map[string][]entry.Entry{"dogs": mediaRange("d", 5)}
	r, _, _ := newTestResolver(stored, sets)

	// Offset lands in the middle of the expanded external pack.
	page, more, err := r.Resolve(context.Background(), 1, "cats", 3, 2, storage.MatchExact)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []entry.Entry{media("d02"), media("d03")}, page)
}

func TestResolveSkipsUntouchedExternalPacks(t *testing.T) {
	stored := []entry.Entry{media("a"), media("b"), external("late")}
	sets := map[string][]entry.Entry{"late": mediaRange("l", 4)}
	r, src, _ := newTestResolver(stored, sets)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 0, 2, storage.MatchExact)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, more)
	assert.Empty(t, src.lookups, "external pack past the window must not be resolved")
}

func TestResolveTruncatesExternalPack(t *testing.T) {
	stored := []entry.Entry{external("dogs")}
	sets := map[string][]entry.Entry{"dogs": mediaRange("d", 10)}
	r, _, _ := newTestResolver(stored, sets)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 0, 4, storage.MatchExact)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, mediaRange("d", 4), page)
}

func TestResolveScrubsRemovedExternalPack(t *testing.T) {
	stored := []entry.Entry{media("a"), external("gone"), media("b")}
	r, _, scr := newTestResolver(stored, nil)

	page, more, err := r.Resolve(context.Background(), 7, "cats", 0, 10, storage.MatchExact)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []entry.Entry{media("a"), media("b")}, page)
	assert.Equal(t, []string{"gone"}, scr.scrubbed)
}

func TestResolveRemovedExternalPackDoesNotShiftOffset(t *testing.T) {
	stored := []entry.Entry{external("gone"), media("a"), media("b"), media("c")}
	r, _, _ := newTestResolver(stored, nil)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 1, 2, storage.MatchExact)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []entry.Entry{media("b"), media("c")}, page)
}

func TestResolveEmptyExternalPackBehavesAsAbsent(t *testing.T) {
	stored := []entry.Entry{external("empty"), media("a"), media("b")}
	sets := map[string][]entry.Entry{"empty": {}}
	r, _, scr := newTestResolver(stored, sets)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 1, 5, storage.MatchExact)
	require.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, []entry.Entry{media("b")}, page)
	assert.Empty(t, scr.scrubbed)
}

func TestResolveOffsetOverrun(t *testing.T) {
	r, _, _ := newTestResolver(mediaRange("m", 3), nil)
	_, _, err := r.Resolve(context.Background(), 1, "cats", 10, 5, storage.MatchExact)
	assert.ErrorIs(t, err, ErrOffsetOverrun)
}

func TestResolveOffsetEqualToSize(t *testing.T) {
	// Offset exactly at the total expandable size yields an empty page and
	// no overrun: nothing remains to discard after the loop.
	r, _, _ := newTestResolver(mediaRange("m", 3), nil)
	page, more, err := r.Resolve(context.Background(), 1, "cats", 3, 5, storage.MatchExact)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.False(t, more)
}

func TestResolveRejectsBadWindow(t *testing.T) {
	r, _, _ := newTestResolver(nil, nil)
	_, _, err := r.Resolve(context.Background(), 1, "cats", -1, 5, storage.MatchExact)
	assert.Error(t, err)
	_, _, err = r.Resolve(context.Background(), 1, "cats", 0, 0, storage.MatchExact)
	assert.Error(t, err)
}

func TestResolveHasMoreExactBoundaryWithExternal(t *testing.T) {
	stored := []entry.Entry{external("dogs"), media("tail")}
	sets := map[string][]entry.Entry{"dogs": mediaRange("d", 4)}
	r, _, _ := newTestResolver(stored, sets)

	page, more, err := r.Resolve(context.Background(), 1, "cats", 0, 4, storage.MatchExact)
	require.NoError(t, err)
	assert.Len(t, page, 4)
	assert.True(t, more)

	page, more, err = r.Resolve(context.Background(), 1, "cats", 4, 4, storage.MatchExact)
	require.NoError(t, err)
	assert.Equal(t, []entry.Entry{media("tail")}, page)
	assert.False(t, more)
}
