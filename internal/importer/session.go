// Package importer reconciles bulk-imported pack documents against existing
// storage: it detects name conflicts, collects per-pack resolutions from the
// user, and applies the result in a single transaction.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"log/slog"

	"github.com/packdb/packdb/core/logger"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/limits"
	"github.com/packdb/packdb/internal/storage"
)

// Phase is the current step of an import conversation.
type Phase int

const (
	// PhaseSelectFile awaits the import document.
	PhaseSelectFile Phase = iota
	// PhaseResolveConflict awaits a resolution for the next conflicting pack.
	PhaseResolveConflict
	// PhaseLastConfirm awaits the final confirmation.
	PhaseLastConfirm
	// PhaseApply means every conflict is resolved and the user confirmed.
	PhaseApply
)

// Resolution is the user's choice for a conflicting pack.
type Resolution int

const (
	// ResolutionNone means the conflict has not been resolved yet.
	ResolutionNone Resolution = iota
	// ResolutionOverride deletes the existing pack before importing.
	ResolutionOverride
	// ResolutionMerge keeps existing entries and adds the missing ones.
	ResolutionMerge
	// ResolutionSkip excludes the pack from the apply phase.
	ResolutionSkip
)

func (r Resolution) String() string {
	switch r {
	case ResolutionOverride:
		return "OVERRIDE"
	case ResolutionMerge:
		return "MERGE"
	case ResolutionSkip:
		return "SKIP"
	}
	return "UNRESOLVED"
}

// PackImport tracks one imported pack through the session.
type PackImport struct {
	Name       string
	Entries    []entry.Entry
	Conflict   bool
	Resolution Resolution
	// AddedCount is how many imported entries are not already present in
	// the existing pack (or all of them for a fresh pack).
	AddedCount int
}

// ConflictStore is the read side used for conflict analysis.
type ConflictStore interface {
	PackExists(ctx context.Context, ownerID int64, pack string) (bool, error)
	EntryExists(ctx context.Context, ownerID int64, pack string, e entry.Entry) (bool, error)
}

// Transactor runs a function inside one storage transaction.
type Transactor interface {
	Transact(ctx context.Context, fn func(q storage.Queries) error) error
}

// Gate checks the insertion quota before the apply phase.
type Gate interface {
	CheckInsertion(ctx context.Context, ownerID int64, n int) (bool, limits.Usage, error)
}

// QuotaError reports an apply rejected by the entry quota.
type QuotaError struct {
	Usage limits.Usage
	Need  int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %d new entries, %d/%d used", e.Need, e.Usage.Current, e.Usage.Max)
}

// ErrUnresolvedConflict reports an apply attempted while a conflicting pack
// still lacks a resolution.
var ErrUnresolvedConflict = errors.New("unresolved import conflict")

// Session drives one import conversation for a single owner.
type Session struct {
	ownerID   int64
	packs     []*PackImport
	current   *PackImport
	confirmed bool
}

// NewSession starts an empty import session.
func NewSession(ownerID int64) *Session {
	return &Session{ownerID: ownerID}
}

// OwnerID returns the owner the session belongs to.
func (s *Session) OwnerID() int64 { return s.ownerID }

// Phase derives the current step from the session contents.
func (s *Session) Phase() Phase {
	if len(s.packs) == 0 {
		return PhaseSelectFile
	}
	for _, p := range s.packs {
		if p.Conflict && p.Resolution == ResolutionNone {
			return PhaseResolveConflict
		}
	}
	if !s.confirmed {
		return PhaseLastConfirm
	}
	return PhaseApply
}

// Packs exposes the parsed packs in file order.
func (s *Session) Packs() []*PackImport { return s.packs }

// ReceiveDocument parses raw, validates it, and runs conflict analysis
// against existing storage. On error the session stays in PhaseSelectFile.
func (s *Session) ReceiveDocument(ctx context.Context, store ConflictStore, raw []byte) error {
	doc, err := ParseDocument(raw)
	if err != nil {
		return err
	}

	packs := make([]*PackImport, 0, len(doc.Packs))
	for _, dp := range doc.Packs {
		p := &PackImport{Name: dp.Name, Entries: dp.decodeEntries()}
		exists, err := store.PackExists(ctx, s.ownerID, p.Name)
		if err != nil {
			return err
		}
		if exists {
			p.Conflict = true
			for _, e := range p.Entries {
				present, err := store.EntryExists(ctx, s.ownerID, p.Name, e)
				if err != nil {
					return err
				}
				if !present {
					p.AddedCount++
				}
			}
		} else {
			p.AddedCount = len(p.Entries)
		}
		packs = append(packs, p)
	}
	s.packs = packs
	s.current = nil
	s.confirmed = false

	logger.Debug(ctx, "service.import", "import.analyzed",
		slog.Int64("owner_id", s.ownerID),
		slog.Int("packs", len(packs)),
		slog.Int("new_entries", s.NewEntryCount()),
	)
	return nil
}

// NextConflict returns the first conflicting pack without a resolution, in
// file order, and remembers it as the one ResolveCurrent applies to.
func (s *Session) NextConflict() *PackImport {
	for _, p := range s.packs {
		if p.Conflict && p.Resolution == ResolutionNone {
			s.current = p
			return p
		}
	}
	s.current = nil
	return nil
}

// ResolveCurrent assigns a resolution to the pack returned by NextConflict.
func (s *Session) ResolveCurrent(res Resolution) error {
	if s.current == nil {
		return errors.New("no conflict awaiting resolution")
	}
	if res == ResolutionNone {
		return errors.New("resolution required")
	}
	s.current.Resolution = res
	s.current = nil
	return nil
}

// Confirm records the final user confirmation.
func (s *Session) Confirm() { s.confirmed = true }

// NewEntryCount is the total number of entries the apply phase would insert
// across all non-skipped packs.
func (s *Session) NewEntryCount() int {
	count := 0
	for _, p := range s.packs {
		if p.Resolution != ResolutionSkip {
			count += p.AddedCount
		}
	}
	return count
}

// Summary renders the confirmation overview: one line per pack, with the
// chosen resolution tag for conflicting packs.
func (s *Session) Summary() string {
	var b strings.Builder
	for i, p := range s.packs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.Name)
		if p.Conflict {
			b.WriteString(" (")
			b.WriteString(p.Resolution.String())
			b.WriteString(")")
		}
	}
	return b.String()
}

// Apply checks the quota and writes every non-skipped pack inside one
// transaction. Override deletes the existing pack first; both merge and the
// post-override case then reduce to insert-if-absent.
func (s *Session) Apply(ctx context.Context, tr Transactor, gate Gate) error {
	if s.Phase() != PhaseApply {
		return ErrUnresolvedConflict
	}

	need := s.NewEntryCount()
	ok, usage, err := gate.CheckInsertion(ctx, s.ownerID, need)
	if err != nil {
		return err
	}
	if !ok {
		return &QuotaError{Usage: usage, Need: need}
	}

	return tr.Transact(ctx, func(q storage.Queries) error {
		for _, p := range s.packs {
			if p.Conflict && p.Resolution == ResolutionSkip {
				continue
			}
			if p.Conflict && p.Resolution == ResolutionOverride {
				if _, err := q.RemovePack(ctx, s.ownerID, p.Name); err != nil {
					return err
				}
			}
			if _, err := q.InsertMissing(ctx, s.ownerID, p.Name, p.Entries); err != nil {
				return err
			}
		}
		logger.Info(ctx, "service.import", "import.applied",
			slog.Int64("owner_id", s.ownerID),
			slog.Int("packs", len(s.packs)),
			slog.Int("new_entries", need),
		)
		return nil
	})
}
