package bot

import (
	"errors"
	"fmt"
	"io"
	"strings"

	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/core/telegram/keyboard"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/importer"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onImport(c tele.Context) error {
	return h.startImport(c)
}

func (h *Handlers) cbImport(c tele.Context) error {
	return h.startImport(c)
}

func (h *Handlers) startImport(c tele.Context) error {
	userID := ownerOf(c)
	h.fsm.SetTemp(userID, tempImport, importer.NewSession(userID))
	h.fsm.SetState(userID, StateImportSelectFile)
	return tghelpers.SendText(c, "Send the JSON export file you want to import.", &tele.SendOptions{
		ReplyMarkup: keyboard.SingleCancelMarkup(ActionCancel.Key()),
	})
}

func (h *Handlers) importSession(userID int64) (*importer.Session, bool) {
	v, ok := h.fsm.GetTemp(userID, tempImport)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*importer.Session)
	return sess, ok
}

func (h *Handlers) stateImportSelectFile(c tele.Context) error {
	if done, err := h.maybeCancel(c); done {
		return err
	}
	sess, ok := h.importSession(ownerOf(c))
	if !ok {
		return h.cancelFlow(c)
	}
	msg := c.Message()
	if msg == nil || msg.Document == nil {
		return tghelpers.SendText(c, "That is not a file. Send the JSON export, or type /cancel.")
	}
	if msg.Document.FileSize > maxImportFileSize {
		return tghelpers.SendText(c, "That file is too large to import.")
	}

	rc, err := h.tp.File(&msg.Document.File)
	if err != nil {
		return err
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, maxImportFileSize))
	if err != nil {
		return err
	}

	if err := sess.ReceiveDocument(ctxOf(c), h.store, raw); err != nil {
		if reason, ok := importReject(err); ok {
			return tghelpers.SendText(c, reason+" Fix the file and send it again, or type /cancel.")
		}
		return err
	}
	if len(sess.Packs()) == 0 {
		return tghelpers.SendText(c, "The file contains no packs. Send another file, or type /cancel.")
	}
	return h.stepImport(c, sess)
}

// importReject maps parse/validation failures to user-facing text; anything
// else propagates as a generic error.
func importReject(err error) (string, bool) {
	var nameErr *entry.NameError
	switch {
	case errors.Is(err, importer.ErrUnsupportedVersion):
		return "This file format version is not supported.", true
	case errors.Is(err, importer.ErrMalformed):
		return "The file is not a valid pack export.", true
	case errors.Is(err, entry.ErrUnknownType):
		return "The file references an unknown entry type.", true
	case errors.As(err, &nameErr):
		return "A pack in the file has an invalid name: " + nameErr.Reason + ".", true
	}
	return "", false
}

// stepImport advances the conversation to whatever the session says comes
// next: the first unresolved conflict, the final confirmation, or nothing.
func (h *Handlers) stepImport(c tele.Context, sess *importer.Session) error {
	userID := ownerOf(c)
	switch sess.Phase() {
	case importer.PhaseResolveConflict:
		p := sess.NextConflict()
		h.fsm.SetState(userID, StateImportResolveConflict)
		text := fmt.Sprintf("Pack «%s» already exists; the file adds %d new entries to it.\nOverride it, merge into it, or skip it?", p.Name, p.AddedCount)
		return tghelpers.SendText(c, text, &tele.SendOptions{
			ReplyMarkup: keyboard.ReplyButtons(
				[]string{"Override", "Merge"},
				[]string{"Skip", "Cancel"},
			),
		})
	case importer.PhaseLastConfirm:
		h.fsm.SetState(userID, StateImportLastConfirm)
		text := fmt.Sprintf("About to import:\n%s\n%d new entries in total. Confirm?", sess.Summary(), sess.NewEntryCount())
		return tghelpers.SendText(c, text, &tele.SendOptions{
			ReplyMarkup: keyboard.ReplyButtons(
				[]string{"Confirm"},
				[]string{"Cancel"},
			),
		})
	}
	return h.applyImport(c, sess)
}

func (h *Handlers) stateImportResolveConflict(c tele.Context) error {
	if done, err := h.maybeCancel(c); done {
		return err
	}
	sess, ok := h.importSession(ownerOf(c))
	if !ok {
		return h.cancelFlow(c)
	}
	var res importer.Resolution
	switch strings.ToLower(strings.TrimSpace(c.Text())) {
	case "override":
		res = importer.ResolutionOverride
	case "merge":
		res = importer.ResolutionMerge
	case "skip":
		res = importer.ResolutionSkip
	default:
		return tghelpers.SendText(c, "Answer Override, Merge, Skip, or Cancel.")
	}
	if err := sess.ResolveCurrent(res); err != nil {
		return h.cancelFlow(c)
	}
	return h.stepImport(c, sess)
}

func (h *Handlers) stateImportLastConfirm(c tele.Context) error {
	if done, err := h.maybeCancel(c); done {
		return err
	}
	sess, ok := h.importSession(ownerOf(c))
	if !ok {
		return h.cancelFlow(c)
	}
	if strings.ToLower(strings.TrimSpace(c.Text())) != "confirm" {
		return tghelpers.SendText(c, "Answer Confirm or Cancel.")
	}
	sess.Confirm()
	return h.applyImport(c, sess)
}

func (h *Handlers) applyImport(c tele.Context, sess *importer.Session) error {
	userID := ownerOf(c)
	err := sess.Apply(ctxOf(c), h.store, h.gate)
	if err != nil {
		var quotaErr *importer.QuotaError
		if errors.As(err, &quotaErr) {
			h.fsm.Clear(userID)
			return tghelpers.SendText(c,
				fmt.Sprintf("The import needs %d new entries but the quota does not allow it. %s", quotaErr.Need, usageLine(quotaErr.Usage)),
				&tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()},
			)
		}
		return err
	}

	added := sess.NewEntryCount()
	h.fsm.Clear(userID)
	if err := tghelpers.SendText(c,
		fmt.Sprintf("Import finished: %d new entries across %d packs.", added, len(sess.Packs())),
		&tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()},
	); err != nil {
		return err
	}
	return h.showMenu(c)
}
