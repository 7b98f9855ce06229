package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Action is the closed set of callback routes the bot understands. Every
// inline button carries one of these keys; dispatch over them is exhaustive.
type Action int

const (
	ActionMenu Action = iota
	ActionCreate
	ActionAddTo
	ActionAppendTo
	ActionViewPage
	ActionRemovePack
	ActionExportPack
	ActionImport
	ActionLimits
	ActionCancel
)

// Key returns the callback key used on the wire for this action.
func (a Action) Key() string {
	switch a {
	case ActionMenu:
		return "menu"
	case ActionCreate:
		return "create"
	case ActionAddTo:
		return "addto"
	case ActionAppendTo:
		return "append"
	case ActionViewPage:
		return "view"
	case ActionRemovePack:
		return "rmpack"
	case ActionExportPack:
		return "export"
	case ActionImport:
		return "import"
	case ActionLimits:
		return "limits"
	case ActionCancel:
		return "cancel"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// AllActions lists every routable action for registration.
func AllActions() []Action {
	return []Action{
		ActionMenu,
		ActionCreate,
		ActionAddTo,
		ActionAppendTo,
		ActionViewPage,
		ActionRemovePack,
		ActionExportPack,
		ActionImport,
		ActionLimits,
		ActionCancel,
	}
}

// viewTarget is the payload of an ActionViewPage button. Pack names never
// contain '|', so the trailing page index splits off unambiguously.
type viewTarget struct {
	Pack string
	Page int
}

func (t viewTarget) encode() string {
	return t.Pack + "|" + strconv.Itoa(t.Page)
}

func parseViewTarget(payload string) (viewTarget, error) {
	i := strings.LastIndex(payload, "|")
	if i < 0 {
		return viewTarget{}, fmt.Errorf("view payload missing page: %q", payload)
	}
	page, err := strconv.Atoi(payload[i+1:])
	if err != nil || page < 0 {
		return viewTarget{}, fmt.Errorf("view payload bad page: %q", payload)
	}
	return viewTarget{Pack: payload[:i], Page: page}, nil
}
