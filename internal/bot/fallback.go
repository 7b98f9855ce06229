package bot

import (
	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

var _ ui.FallbackProvider = (*Handlers)(nil)

// UnknownText answers text that matches no command and no active flow.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "I did not understand that. Try /start.")
	}
}

// UnknownDocument answers a file sent outside the import flow.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, "Use /import first if you want to import a file.")
	}
}

// UnknownCallback answers presses on buttons whose action no longer exists.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		return c.Respond(&tele.CallbackResponse{Text: "This button is no longer active"})
	}
}
