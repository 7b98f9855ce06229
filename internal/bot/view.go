package bot

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/packdb/packdb/core/logger"
	"github.com/packdb/packdb/core/telegram/callbacks"
	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/keyboard"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/resolver"
	"github.com/packdb/packdb/internal/storage"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onView(c tele.Context) error {
	return h.pickPackList(c, ActionViewPage, "Which pack do you want to browse?")
}

func (h *Handlers) cbViewPage(c tele.Context) error {
	payload := callbacks.CallbackPayload(c)
	if payload == "" {
		return h.onView(c)
	}
	target, err := parseViewTarget(payload)
	if err != nil {
		return tghelpers.SendText(c, "That button has gone stale. Open the pack again.")
	}
	return h.renderPage(c, target.Pack, target.Page)
}

// renderPage deletes the previously shown media, resolves one page and sends
// each item as its own message followed by a navigation message.
func (h *Handlers) renderPage(c tele.Context, pack string, page int) error {
	ctx := ctxOf(c)
	owner := ownerOf(c)

	h.clearShownMedia(c)

	items, hasMore, err := h.resolver.Resolve(ctx, owner, pack, page*h.cfg.ViewPageSize, h.cfg.ViewPageSize, storage.MatchExact)
	if err != nil {
		if errors.Is(err, resolver.ErrOffsetOverrun) {
			return tghelpers.SendText(c, "Something went wrong while turning the page. Try opening the pack again.")
		}
		return err
	}
	if len(items) == 0 && page == 0 {
		return tghelpers.SendText(c, "Pack «"+pack+"» is empty or does not exist.")
	}

	shown := make([]tele.StoredMessage, 0, len(items))
	halted := false
	for _, item := range items {
		var what interface{}
		switch item.Type {
		case entry.TypeMedia:
			what = &tele.Sticker{File: tele.File{FileID: item.Data}}
		case entry.TypeAnimatedMedia:
			what = &tele.Animation{File: tele.File{FileID: item.Data}}
		default:
			continue
		}
		msg, err := h.tp.Send(c.Chat(), what)
		if err != nil {
			var terr *tele.Error
			if errors.As(err, &terr) {
				logger.Warn(ctx, "service.packs", "view.delivery_failed",
					slog.String("pack", pack),
					slog.Int("code", terr.Code),
					slog.String("desc", terr.Description),
				)
				halted = true
				break
			}
			return err
		}
		shown = append(shown, tele.StoredMessage{
			MessageID: strconv.Itoa(msg.ID),
			ChatID:    c.Chat().ID,
		})
	}
	h.fsm.SetTemp(owner, tempLastMessages, shown)

	if halted {
		if err := tghelpers.SendText(c, "One of the stored items can no longer be delivered; stopping here."); err != nil {
			return err
		}
	}

	return tghelpers.SendText(c, "Pack «"+pack+"», page "+strconv.Itoa(page+1), &tele.SendOptions{
		ReplyMarkup: h.navMarkup(pack, page, hasMore),
	})
}

func (h *Handlers) navMarkup(pack string, page int, hasMore bool) *tele.ReplyMarkup {
	var nav []keyboard.InlineBtn
	if page > 0 {
		nav = append(nav, keyboard.InlineBtn{
			Text:   "« Back",
			Unique: ActionViewPage.Key(),
			Data:   viewTarget{Pack: pack, Page: page - 1}.encode(),
		})
	}
	if hasMore {
		nav = append(nav, keyboard.InlineBtn{
			Text:   "Next »",
			Unique: ActionViewPage.Key(),
			Data:   viewTarget{Pack: pack, Page: page + 1}.encode(),
		})
	}
	rows := [][]keyboard.InlineBtn{}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows,
		[]keyboard.InlineBtn{
			{Text: "➕ Add", Unique: ActionAddTo.Key(), Data: pack},
			{Text: "📎 Append set", Unique: ActionAppendTo.Key(), Data: pack},
		},
		[]keyboard.InlineBtn{
			{Text: "🗑 Remove", Unique: ActionRemovePack.Key(), Data: pack},
			{Text: "📤 Export", Unique: ActionExportPack.Key(), Data: pack},
		},
		[]keyboard.InlineBtn{
			{Text: "« Menu", Unique: ActionMenu.Key()},
		},
	)
	return keyboard.InlineButtonsRows(rows...)
}

func (h *Handlers) clearShownMedia(c tele.Context) {
	owner := ownerOf(c)
	v, ok := h.fsm.GetTemp(owner, tempLastMessages)
	if !ok {
		return
	}
	if msgs, ok := v.([]tele.StoredMessage); ok {
		for _, m := range msgs {
			_ = h.tp.Delete(m)
		}
	}
	h.fsm.ClearTemp(owner, tempLastMessages)
}
