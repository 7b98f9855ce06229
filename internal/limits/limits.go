// Package limits enforces the per-owner entry quota.
package limits

import (
	"context"
	"fmt"
)

// Counter exposes the owner's current entry usage.
type Counter interface {
	CountEntries(ctx context.Context, ownerID int64) (int, error)
}

// Usage is a snapshot of an owner's quota consumption.
type Usage struct {
	Current int
	Max     int
}

// Unlimited reports whether no quota is configured.
func (u Usage) Unlimited() bool { return u.Max <= 0 }

// Remaining returns how many entries the owner may still add.
func (u Usage) Remaining() int {
	if u.Unlimited() {
		return 0
	}
	if u.Max < u.Current {
		return 0
	}
	return u.Max - u.Current
}

// Percent returns the used share in whole percents.
func (u Usage) Percent() int {
	if u.Unlimited() || u.Max == 0 {
		return 0
	}
	return u.Current * 100 / u.Max
}

// Allows reports whether n more entries fit under the quota.
func (u Usage) Allows(n int) bool {
	return u.Unlimited() || u.Current+n <= u.Max
}

// Gate checks insertions against the configured maximum. A non-positive
// maximum disables the quota.
type Gate struct {
	counter Counter
	max     int
}

// NewGate builds a Gate over a usage counter.
func NewGate(counter Counter, max int) *Gate {
	return &Gate{counter: counter, max: max}
}

// Usage returns the owner's current consumption snapshot.
func (g *Gate) Usage(ctx context.Context, ownerID int64) (Usage, error) {
	current, err := g.counter.CountEntries(ctx, ownerID)
	if err != nil {
		return Usage{}, fmt.Errorf("count entries: %w", err)
	}
	return Usage{Current: current, Max: g.max}, nil
}

// CheckInsertion reports whether inserting n more entries is allowed along
// with the usage snapshot the decision was based on.
func (g *Gate) CheckInsertion(ctx context.Context, ownerID int64, n int) (bool, Usage, error) {
	usage, err := g.Usage(ctx, ownerID)
	if err != nil {
		return false, Usage{}, err
	}
	return usage.Allows(n), usage, nil
}
