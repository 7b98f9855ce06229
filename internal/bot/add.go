package bot

import (
	"github.com/packdb/packdb/core/telegram/callbacks"
	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/state"
	"github.com/packdb/packdb/internal/entry"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onAdd(c tele.Context) error {
	return h.pickPackList(c, ActionAddTo, "Which pack should the media go into?")
}

func (h *Handlers) cbAddTo(c tele.Context) error {
	pack := callbacks.CallbackPayload(c)
	if pack == "" {
		return h.onAdd(c)
	}
	return h.startContentFlow(c, pack, StateAwaitingMedia,
		"Send stickers or GIFs for «"+pack+"». Sending the same item again removes it. Type /done when finished.")
}

func (h *Handlers) onAppend(c tele.Context) error {
	return h.pickPackList(c, ActionAppendTo, "Which pack should the sticker set be appended to?")
}

func (h *Handlers) cbAppendTo(c tele.Context) error {
	pack := callbacks.CallbackPayload(c)
	if pack == "" {
		return h.onAppend(c)
	}
	return h.startContentFlow(c, pack, StateAwaitingSubpack,
		"Send any sticker from the set you want to append to «"+pack+"». Type /done when finished.")
}

func (h *Handlers) startContentFlow(c tele.Context, pack string, st state.State, prompt string) error {
	userID := ownerOf(c)
	h.fsm.SetTemp(userID, tempPack, pack)
	h.fsm.SetState(userID, st)
	return tghelpers.SendText(c, prompt)
}

// stateAwaitingMedia stores individual stickers and animations; the flow
// stays in place after every item so the user can keep sending.
func (h *Handlers) stateAwaitingMedia(c tele.Context) error {
	if done, err := h.maybeCancel(c); done {
		return err
	}
	pack, ok := h.fsm.GetTempString(ownerOf(c), tempPack)
	if !ok {
		return h.cancelFlow(c)
	}
	e, ok := mediaEntryFrom(c.Message())
	if !ok {
		return tghelpers.SendText(c, "Send a sticker or a GIF, or type /done.")
	}
	return h.toggle(c, pack, e)
}

// stateAwaitingSubpack stores a reference to a whole external sticker set.
func (h *Handlers) stateAwaitingSubpack(c tele.Context) error {
	if done, err := h.maybeCancel(c); done {
		return err
	}
	pack, ok := h.fsm.GetTempString(ownerOf(c), tempPack)
	if !ok {
		return h.cancelFlow(c)
	}
	msg := c.Message()
	if msg == nil || msg.Sticker == nil || msg.Sticker.SetName == "" {
		return tghelpers.SendText(c, "Send a sticker that belongs to a set, or type /done.")
	}
	e := entry.Entry{Type: entry.TypeExternalPack, Data: msg.Sticker.SetName}
	return h.toggle(c, pack, e)
}

func mediaEntryFrom(msg *tele.Message) (entry.Entry, bool) {
	switch {
	case msg == nil:
		return entry.Entry{}, false
	case msg.Sticker != nil:
		return entry.Entry{Type: entry.TypeMedia, Data: msg.Sticker.FileID}, true
	case msg.Animation != nil:
		return entry.Entry{Type: entry.TypeAnimatedMedia, Data: msg.Animation.FileID}, true
	case msg.Document != nil && msg.Document.MIME == "video/mp4":
		return entry.Entry{Type: entry.TypeAnimatedMedia, Data: msg.Document.FileID}, true
	}
	return entry.Entry{}, false
}

// toggle is the shared add-or-remove step. Insertion goes through the quota
// gate first; removals always pass.
func (h *Handlers) toggle(c tele.Context, pack string, e entry.Entry) error {
	if err := e.Validate(); err != nil {
		return tghelpers.SendText(c, "That item cannot be stored: "+err.Error())
	}
	ctx := ctxOf(c)
	owner := ownerOf(c)

	exists, err := h.store.EntryExists(ctx, owner, pack, e)
	if err != nil {
		return err
	}
	if !exists {
		ok, usage, err := h.gate.CheckInsertion(ctx, owner, 1)
		if err != nil {
			return err
		}
		if !ok {
			return h.quotaReply(c, usage)
		}
	}

	added, err := h.store.ToggleEntry(ctx, owner, pack, e, false)
	if err != nil {
		return err
	}
	if added {
		return tghelpers.SendText(c, "Added to «"+pack+"». Send more or type /done.")
	}
	return tghelpers.SendText(c, "Removed from «"+pack+"».")
}
