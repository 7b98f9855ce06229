package limits

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCounter int

func (c staticCounter) CountEntries(context.Context, int64) (int, error) {
	return int(c), nil
}

func TestCheckInsertionAtBoundary(t *testing.T) {
	ctx := context.Background()

	// At the quota: one more is rejected.
	ok, usage, err := NewGate(staticCounter(10), 10).CheckInsertion(ctx, 1, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 10, usage.Current)

	// One below the quota: one more fills it exactly.
	ok, usage, err = NewGate(staticCounter(9), 10).CheckInsertion(ctx, 1, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, usage.Remaining())
}

func TestUnlimitedGate(t *testing.T) {
	ok, usage, err := NewGate(staticCounter(1_000_000), 0).CheckInsertion(context.Background(), 1, 500)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, usage.Unlimited())
}

func TestUsagePercent(t *testing.T) {
	assert.Equal(t, 50, Usage{Current: 5, Max: 10}.Percent())
	assert.Equal(t, 0, Usage{Current: 5, Max: 0}.Percent())
}
