package bot

import (
	"context"
	"fmt"
	"io"

	tg "github.com/packdb/packdb/core/telegram"
	"github.com/packdb/packdb/core/telegram/commands"
	"github.com/packdb/packdb/core/telegram/state"
	"github.com/packdb/packdb/internal/limits"
	"github.com/packdb/packdb/internal/resolver"
	"github.com/packdb/packdb/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// Store is the persistence surface the flows depend on.
type Store interface {
	storage.Queries
	Transact(ctx context.Context, fn func(q storage.Queries) error) error
}

// transport is the slice of the bot API the flows call directly.
// *tele.Bot satisfies it.
type transport interface {
	StickerSet(name string) (*tele.StickerSet, error)
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Delete(msg tele.Editable) error
	File(file *tele.File) (io.ReadCloser, error)
}

// Config tunes page sizes; zero values pick the defaults.
type Config struct {
	ViewPageSize   int
	InlinePageSize int
}

const (
	defaultViewPageSize   = 25
	defaultInlinePageSize = 50

	// maxImportFileSize bounds the document accepted by the import flow.
	maxImportFileSize = 1 << 20
)

// Handlers wires every conversation flow to the registry and the FSM.
type Handlers struct {
	store    Store
	gate     *limits.Gate
	fsm      state.Manager
	resolver *resolver.Resolver
	tp       transport
	cfg      Config
}

// New builds the handler set. The transport is attached later via AttachBot,
// once the bot instance exists; no handler runs before that.
func New(store Store, gate *limits.Gate, fsm state.Manager, cfg Config) *Handlers {
	if cfg.ViewPageSize <= 0 {
		cfg.ViewPageSize = defaultViewPageSize
	}
	if cfg.InlinePageSize <= 0 {
		cfg.InlinePageSize = defaultInlinePageSize
	}
	h := &Handlers{
		store: store,
		gate:  gate,
		fsm:   fsm,
		cfg:   cfg,
	}
	h.resolver = resolver.New(store, &stickerSetSource{h: h}, &packScrubber{h: h})
	return h
}

// AttachBot connects the live bot API to the flows.
func (h *Handlers) AttachBot(tp transport) {
	h.tp = tp
}

// Register declares commands and callback routes on the registry.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.onStart,
		Description: "Open the main menu",
		Aliases:     []string{"menu"},
	})
	reg.RegisterCommand("/create", commands.Command{
		Handler:     h.onCreate,
		Description: "Create a new pack",
	})
	reg.RegisterCommand("/add", commands.Command{
		Handler:     h.onAdd,
		Description: "Add media to a pack",
	})
	reg.RegisterCommand("/append", commands.Command{
		Handler:     h.onAppend,
		Description: "Append a whole sticker set to a pack",
	})
	reg.RegisterCommand("/view", commands.Command{
		Handler:     h.onView,
		Description: "Browse a pack",
	})
	reg.RegisterCommand("/remove", commands.Command{
		Handler:     h.onRemove,
		Description: "Delete a pack",
	})
	reg.RegisterCommand("/export", commands.Command{
		Handler:     h.onExport,
		Description: "Export a pack as a JSON file",
	})
	reg.RegisterCommand("/import", commands.Command{
		Handler:     h.onImport,
		Description: "Import packs from a JSON file",
	})
	reg.RegisterCommand("/limits", commands.Command{
		Handler:     h.onLimits,
		Description: "Show entry quota usage",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.onCancel,
		Description: "Cancel the current flow",
		Hidden:      true,
	})

	for _, a := range AllActions() {
		var fn tele.HandlerFunc
		switch a {
		case ActionMenu:
			fn = h.cbMenu
		case ActionCreate:
			fn = h.cbCreate
		case ActionAddTo:
			fn = h.cbAddTo
		case ActionAppendTo:
			fn = h.cbAppendTo
		case ActionViewPage:
			fn = h.cbViewPage
		case ActionRemovePack:
			fn = h.cbRemovePack
		case ActionExportPack:
			fn = h.cbExportPack
		case ActionImport:
			fn = h.cbImport
		case ActionLimits:
			fn = h.cbLimits
		case ActionCancel:
			fn = h.cbCancel
		default:
			return fmt.Errorf("bot: unroutable action %q", a.Key())
		}
		if err := reg.RegisterCallback(a.Key(), fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterStates binds FSM states to their content handlers.
func (h *Handlers) RegisterStates() {
	state.RegisterHandler(StateAwaitingName, h.stateAwaitingName)
	state.RegisterHandler(StateAwaitingMedia, h.stateAwaitingMedia)
	state.RegisterHandler(StateAwaitingSubpack, h.stateAwaitingSubpack)
	state.RegisterHandler(StateImportSelectFile, h.stateImportSelectFile)
	state.RegisterHandler(StateImportResolveConflict, h.stateImportResolveConflict)
	state.RegisterHandler(StateImportLastConfirm, h.stateImportLastConfirm)
}
