package bot

import (
	"errors"

	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/keyboard"
	"github.com/packdb/packdb/internal/entry"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onCreate(c tele.Context) error {
	return h.promptCreate(c)
}

func (h *Handlers) cbCreate(c tele.Context) error {
	return h.promptCreate(c)
}

func (h *Handlers) promptCreate(c tele.Context) error {
	h.fsm.SetState(ownerOf(c), StateAwaitingName)
	return tghelpers.SendText(c, "Name the new pack (lowercase letters, digits, a little punctuation; up to 50 characters).", &tele.SendOptions{
		ReplyMarkup: keyboard.SingleCancelMarkup(ActionCancel.Key()),
	})
}

func (h *Handlers) stateAwaitingName(c tele.Context) error {
	if done, err := h.maybeCancel(c); done {
		return err
	}
	name := entry.NormalizeName(c.Text())
	if err := entry.ValidateName(name); err != nil {
		var nameErr *entry.NameError
		if errors.As(err, &nameErr) {
			return tghelpers.SendText(c, "That name will not work: "+nameErr.Reason+". Try another one.")
		}
		return err
	}
	return h.startCreateWithName(c, name)
}
