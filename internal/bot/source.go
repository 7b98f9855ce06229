package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/packdb/packdb/core/logger"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/resolver"

	tele "gopkg.in/telebot.v4"
)

// stickerSetSource resolves external pack references through the bot API.
type stickerSetSource struct {
	h *Handlers
}

func (s *stickerSetSource) SetItems(ctx context.Context, setName string) ([]entry.Entry, error) {
	set, err := s.h.tp.StickerSet(setName)
	if err != nil {
		var terr *tele.Error
		if errors.As(err, &terr) && terr.Code == 400 {
			return nil, resolver.ErrSetNotFound
		}
		return nil, err
	}
	items := make([]entry.Entry, 0, len(set.Stickers))
	for _, st := range set.Stickers {
		items = append(items, entry.Entry{Type: entry.TypeMedia, Data: st.FileID})
	}
	return items, nil
}

// packScrubber drops every reference to a vanished external pack and tells
// the owner why their pack just shrank.
type packScrubber struct {
	h *Handlers
}

func (s *packScrubber) ExternalPackRemoved(ctx context.Context, ownerID int64, setName string) {
	if err := s.h.store.RemoveAllReferencesTo(ctx, ownerID, setName); err != nil {
		logger.Error(ctx, "service.packs", "scrub.failed",
			slog.Int64("owner_id", ownerID),
			slog.String("set", setName),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "service.packs", "scrub.done",
		slog.Int64("owner_id", ownerID),
		slog.String("set", setName),
	)
	_, err := s.h.tp.Send(&tele.User{ID: ownerID},
		"The sticker set «"+setName+"» no longer exists; its references were removed from your packs.")
	if err != nil {
		logger.Warn(ctx, "service.packs", "scrub.notify_failed",
			slog.Int64("owner_id", ownerID),
			slog.String("err", err.Error()),
		)
	}
}
