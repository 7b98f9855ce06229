package bot

import (
	"github.com/packdb/packdb/core/telegram/callbacks"
	tghelpers "github.com/packdb/packdb/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onRemove(c tele.Context) error {
	return h.pickPackList(c, ActionRemovePack, "Which pack do you want to delete?")
}

func (h *Handlers) cbRemovePack(c tele.Context) error {
	pack := callbacks.CallbackPayload(c)
	if pack == "" {
		return h.onRemove(c)
	}
	removed, err := h.store.RemovePack(ctxOf(c), ownerOf(c), pack)
	if err != nil {
		return err
	}
	if !removed {
		return tghelpers.SendText(c, "Pack «"+pack+"» does not exist.")
	}
	h.clearShownMedia(c)
	if err := tghelpers.SendText(c, "Pack «"+pack+"» deleted."); err != nil {
		return err
	}
	return h.showMenu(c)
}
