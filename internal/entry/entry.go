// Package entry defines the entry model shared by storage, resolution, and
// import. Entries are stored with single-character type codes; the code is
// decoded into Type immediately after reads and encoded right before writes,
// so business logic never sees raw codes.
package entry

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Type enumerates the kinds of entries a pack can hold.
type Type int

const (
	// TypeMedia is a single cached media item (sticker).
	TypeMedia Type = iota
	// TypeExternalPack is a reference to an externally hosted sticker set,
	// expanded to its concrete items at resolution time.
	TypeExternalPack
	// TypeAnimatedMedia is a single cached animation (mp4 gif).
	TypeAnimatedMedia
)

const (
	codeMedia        = "s"
	codeExternalPack = "p"
	codeAnimated     = "g"
)

const (
	// MaxPackNameLen bounds pack names in storage.
	MaxPackNameLen = 50
	// MaxDataLen bounds entry payloads (file IDs, set names) in storage.
	MaxDataLen = 32
)

// ErrUnknownType reports an entry type code outside the supported set.
var ErrUnknownType = errors.New("unknown entry type")

// Code returns the single-character storage code for the type.
func (t Type) Code() string {
	switch t {
	case TypeMedia:
		return codeMedia
	case TypeExternalPack:
		return codeExternalPack
	case TypeAnimatedMedia:
		return codeAnimated
	}
	return ""
}

func (t Type) String() string {
	switch t {
	case TypeMedia:
		return "media"
	case TypeExternalPack:
		return "external_pack"
	case TypeAnimatedMedia:
		return "animated_media"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType decodes a storage code into a Type.
func ParseType(code string) (Type, error) {
	switch code {
	case codeMedia:
		return TypeMedia, nil
	case codeExternalPack:
		return TypeExternalPack, nil
	case codeAnimated:
		return TypeAnimatedMedia, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, code)
}

// Entry is one stored item of a pack.
type Entry struct {
	Type Type
	Data string
}

// Validate checks the entry payload against storage constraints.
func (e Entry) Validate() error {
	if e.Data == "" {
		return errors.New("empty entry data")
	}
	if len(e.Data) > MaxDataLen {
		return fmt.Errorf("entry data too long: %d > %d", len(e.Data), MaxDataLen)
	}
	if e.Type.Code() == "" {
		return fmt.Errorf("%w: %d", ErrUnknownType, int(e.Type))
	}
	return nil
}

var packNameRe = regexp.MustCompile(`^[a-z0-9;:\-_\s'*^$%&]+$`)

// NameError describes why a pack name was rejected. The message is safe to
// show to the user.
type NameError struct{ Reason string }

func (e *NameError) Error() string { return e.Reason }

// NormalizeName lowercases a pack name; names are case-insensitive everywhere.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks a normalized pack name against the length and character
// class constraints.
func ValidateName(name string) error {
	if name == "" {
		return &NameError{Reason: "Name is empty"}
	}
	if len(name) > MaxPackNameLen {
		return &NameError{Reason: fmt.Sprintf("Name too long, max: %d characters", MaxPackNameLen)}
	}
	if !packNameRe.MatchString(name) {
		return &NameError{Reason: "Name characters invalid"}
	}
	return nil
}

var deeplinkSafeRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsDeeplinkSafe reports whether s survives a Telegram start parameter
// unescaped.
func IsDeeplinkSafe(s string) bool {
	return s != "" && deeplinkSafeRe.MatchString(s)
}
