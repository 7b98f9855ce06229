package bot

import (
	"fmt"

	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/keyboard"
	"github.com/packdb/packdb/internal/limits"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onLimits(c tele.Context) error {
	return h.reportUsage(c)
}

func (h *Handlers) cbLimits(c tele.Context) error {
	return h.reportUsage(c)
}

func (h *Handlers) reportUsage(c tele.Context) error {
	usage, err := h.gate.Usage(ctxOf(c), ownerOf(c))
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, usageLine(usage))
}

func usageLine(u limits.Usage) string {
	if u.Unlimited() {
		return fmt.Sprintf("Entries stored: %d. No quota applies.", u.Current)
	}
	return fmt.Sprintf("Entries stored: %d/%d (%d%%), %d remaining.", u.Current, u.Max, u.Percent(), u.Remaining())
}

// quotaReply is the shared rejection message for any insert over quota.
func (h *Handlers) quotaReply(c tele.Context, u limits.Usage) error {
	return tghelpers.SendText(c, "Quota reached. "+usageLine(u), &tele.SendOptions{
		ReplyMarkup: keyboard.InlineButtons([]keyboard.InlineBtn{
			{Text: "📊 Check limits", Unique: ActionLimits.Key()},
		}),
	})
}
