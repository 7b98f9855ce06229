package bot

import (
	"bytes"

	"github.com/packdb/packdb/core/telegram/callbacks"
	tghelpers "github.com/packdb/packdb/core/telegram/helpers"
	"github.com/packdb/packdb/internal/entry"
	"github.com/packdb/packdb/internal/importer"
	"github.com/packdb/packdb/internal/storage"

	tele "gopkg.in/telebot.v4"
)

func (h *Handlers) onExport(c tele.Context) error {
	return h.pickPackList(c, ActionExportPack, "Which pack do you want to export?")
}

// cbExportPack sends the pack back as the same JSON document the import
// flow accepts.
func (h *Handlers) cbExportPack(c tele.Context) error {
	pack := callbacks.CallbackPayload(c)
	if pack == "" {
		return h.onExport(c)
	}
	ctx := ctxOf(c)
	owner := ownerOf(c)

	entries, err := h.store.ListEntries(ctx, owner, pack, storage.MatchExact)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return tghelpers.SendText(c, "Pack «"+pack+"» is empty or does not exist.")
	}

	raw, err := importer.ExportDocument(map[string][]entry.Entry{pack: entries}, []string{pack})
	if err != nil {
		return err
	}
	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(raw)),
		FileName: pack + ".json",
		MIME:     "application/json",
	}
	_, err = h.tp.Send(c.Chat(), doc)
	return err
}
