package bot

import "github.com/packdb/packdb/core/telegram/state"

// Conversation states. One active flow per user at a time; every state
// accepts a cancel which drops the session back to the menu.
const (
	StateAwaitingName    state.State = "awaiting_name"
	StateAwaitingMedia   state.State = "awaiting_media"
	StateAwaitingSubpack state.State = "awaiting_subpack"

	StateImportSelectFile      state.State = "import_select_file"
	StateImportResolveConflict state.State = "import_resolve_conflict"
	StateImportLastConfirm     state.State = "import_last_confirm"
)

// Session temp keys.
const (
	tempPack         = "pack"
	tempLastMessages = "last_messages"
	tempImport       = "import_session"
)
