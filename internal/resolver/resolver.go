// Package resolver flattens stored pack entries into a bounded results
// window. External pack references are indirections: each expands into a
// variable-length list of concrete items, so the offset/limit window is
// computed over the expanded sequence, not over stored rows. Expansion is
// lazy: external packs entirely before or after the window are never looked
// up.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"log/slog"

	"github.com/packdb/packdb/core/logger"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/storage"
)

var (
	// ErrSetNotFound is returned by a SetSource when the external pack no
	// longer exists. The resolver treats it as non-fatal: the reference is
	// scrubbed and skipped.
	ErrSetNotFound = errors.New("external pack not found")

	// ErrOffsetOverrun reports an offset beyond the total expandable size.
	// It indicates a logic or data error and must abort the operation
	// rather than silently return a short page.
	ErrOffsetOverrun = errors.New("offset exceeds resolvable pack size")
)

// SetSource resolves an external pack name into its ordered concrete items.
type SetSource interface {
	SetItems(ctx context.Context, setName string) ([]entry.Entry, error)
}

// Scrubber reacts to an external pack that disappeared upstream: it removes
// every stored reference to it for the owner and may notify them.
type Scrubber interface {
	ExternalPackRemoved(ctx context.Context, ownerID int64, setName string)
}

// EntryLister is the slice of the entry store the resolver reads from.
type EntryLister interface {
	ListEntries(ctx context.Context, ownerID int64, pack string, mode storage.MatchMode) ([]entry.Entry, error)
}

// Resolver expands pack entries into pages.
type Resolver struct {
	store    EntryLister
	source   SetSource
	scrubber Scrubber
}

// New builds a resolver over its three collaborators.
func New(store EntryLister, source SetSource, scrubber Scrubber) *Resolver {
	return &Resolver{store: store, source: source, scrubber: scrubber}
}

// Resolve returns at most limit expanded items starting at offset, plus
// whether more items remain past the returned page.
func (r *Resolver) Resolve(ctx context.Context, ownerID int64, pack string, offset, limit int, mode storage.MatchMode) ([]entry.Entry, bool, error) {
	if offset < 0 {
		return nil, false, fmt.Errorf("negative offset %d", offset)
	}
	if limit <= 0 {
		return nil, false, fmt.Errorf("non-positive limit %d", limit)
	}

	stored, err := r.store.ListEntries(ctx, ownerID, pack, mode)
	if err != nil {
		return nil, false, err
	}

	discardRemaining := offset
	remaining := limit
	result := make([]entry.Entry, 0, limit)
	more := false

	for _, e := range stored {
		if remaining <= 0 {
			more = true
			break
		}

		if e.Type == entry.TypeExternalPack {
			items, err := r.source.SetItems(ctx, e.Data)
			if err != nil {
				if errors.Is(err, ErrSetNotFound) {
					// The indirection target is gone: scrub every
					// reference and skip the entry without touching
					// the offset accounting.
					r.scrubber.ExternalPackRemoved(ctx, ownerID, e.Data)
					continue
				}
				return nil, false, fmt.Errorf("resolve external pack %q: %w", e.Data, err)
			}
			if len(items) <= discardRemaining {
				discardRemaining -= len(items)
				continue
			}
			if discardRemaining > 0 {
				items = items[discardRemaining:]
				discardRemaining = 0
			}
			if len(items) > remaining {
				items = items[:remaining]
				more = true
			}
			remaining -= len(items)
			result = append(result, items...)
			continue
		}

		if discardRemaining > 0 {
			discardRemaining--
			continue
		}
		remaining--
		result = append(result, e)
	}

	if discardRemaining != 0 {
		logger.Error(ctx, "service.resolver", "resolver.overrun",
			slog.Int64("owner_id", ownerID),
			slog.String("pack", pack),
			slog.Int("offset", offset),
			slog.Int("discard_remaining", discardRemaining),
		)
		return nil, false, fmt.Errorf("%w: pack %q offset %d", ErrOffsetOverrun, pack, offset)
	}

	return result, more, nil
}
