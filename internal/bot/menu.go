package bot

import (
	"context"
	"strings"

	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/keyboard"
	"github.com/packdb/packdb/internal/entry"

	tele "gopkg.in/telebot.v4"
)

const deeplinkCreatePrefix = "create-"

func ownerOf(c tele.Context) int64 {
	return c.Sender().ID
}

func ctxOf(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}

func menuMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "👀 View", Unique: ActionViewPage.Key()},
			{Text: "➕ Create", Unique: ActionCreate.Key()},
		},
		[]keyboard.InlineBtn{
			{Text: "📥 Import", Unique: ActionImport.Key()},
			{Text: "📤 Export", Unique: ActionExportPack.Key()},
		},
		[]keyboard.InlineBtn{
			{Text: "📊 Limits", Unique: ActionLimits.Key()},
		},
	)
}

func (h *Handlers) showMenu(c tele.Context) error {
	return tghelpers.SendText(c, "What would you like to do?", &tele.SendOptions{
		ReplyMarkup: menuMarkup(),
	})
}

func (h *Handlers) onStart(c tele.Context) error {
	if msg := c.Message(); msg != nil {
		if payload := strings.TrimSpace(msg.Payload); strings.HasPrefix(payload, deeplinkCreatePrefix) {
			return h.startCreateWithName(c, strings.TrimPrefix(payload, deeplinkCreatePrefix))
		}
	}
	return h.showMenu(c)
}

func (h *Handlers) cbMenu(c tele.Context) error {
	h.fsm.Clear(ownerOf(c))
	return h.showMenu(c)
}

func (h *Handlers) onCancel(c tele.Context) error {
	return h.cancelFlow(c)
}

func (h *Handlers) cbCancel(c tele.Context) error {
	return h.cancelFlow(c)
}

// cancelFlow drops every bit of transient session state and re-shows the menu.
func (h *Handlers) cancelFlow(c tele.Context) error {
	h.fsm.Clear(ownerOf(c))
	if err := tghelpers.SendText(c, "Cancelled.", &tele.SendOptions{
		ReplyMarkup: keyboard.RemoveKeyboard(),
	}); err != nil {
		return err
	}
	return h.showMenu(c)
}

// maybeCancel lets a typed /cancel or /done escape any awaiting state.
func (h *Handlers) maybeCancel(c tele.Context) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Text())) {
	case "/cancel", "cancel", "/menu":
		return true, h.cancelFlow(c)
	case "/done", "done":
		h.fsm.Clear(ownerOf(c))
		if err := tghelpers.SendText(c, "Done.", &tele.SendOptions{
			ReplyMarkup: keyboard.RemoveKeyboard(),
		}); err != nil {
			return true, err
		}
		return true, h.showMenu(c)
	}
	return false, nil
}

// pickPackList renders the owner's packs as buttons carrying the given
// action, or reports that there is nothing to pick from.
func (h *Handlers) pickPackList(c tele.Context, action Action, prompt string) error {
	packs, err := h.store.ListPacks(ctxOf(c), ownerOf(c))
	if err != nil {
		return err
	}
	if len(packs) == 0 {
		return tghelpers.SendText(c, "You have no packs yet. Create one first.")
	}
	buttons := make([]keyboard.InlineBtn, 0, len(packs)+1)
	for _, pack := range packs {
		data := pack
		if action == ActionViewPage {
			data = viewTarget{Pack: pack, Page: 0}.encode()
		}
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   pack,
			Unique: action.Key(),
			Data:   data,
		})
	}
	buttons = append(buttons, keyboard.InlineBtn{Text: "« Menu", Unique: ActionMenu.Key()})
	return tghelpers.SendText(c, prompt, &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtonsNPerRow(buttons, 2),
	})
}

func (h *Handlers) startCreateWithName(c tele.Context, raw string) error {
	name := entry.NormalizeName(raw)
	if err := entry.ValidateName(name); err != nil {
		return tghelpers.SendText(c, "That name will not work: "+err.Error())
	}
	userID := ownerOf(c)
	h.fsm.SetTemp(userID, tempPack, name)
	h.fsm.SetState(userID, StateAwaitingMedia)
	return tghelpers.SendText(c, "Pack «"+name+"» is ready. Send stickers or GIFs to fill it; type /done when finished.")
}
