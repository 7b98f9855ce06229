package importer

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/packdb/packdb/internal/entry"
)

// FormatVersion is the only supported import/export document version.
const FormatVersion = "1.0"

var (
	// ErrUnsupportedVersion reports a document with an unknown version tag.
	ErrUnsupportedVersion = errors.New("unsupported file version")
	// ErrMalformed reports a structurally invalid import document.
	ErrMalformed = errors.New("invalid file")
)

// Document is the wire format of exported packs:
// {"version":"1.0","packs":[{"name":...,"entries":[[code,data],...]},...]}.
type Document struct {
	Version string         `json:"version"`
	Packs   []DocumentPack `json:"packs"`
}

// DocumentPack is one pack within a Document. Entries stay encoded as
// [code, data] pairs on the wire and are decoded at the parse boundary.
type DocumentPack struct {
	Name    string     `json:"name"`
	Entries [][]string `json:"entries"`
}

// ParseDocument decodes and validates an import document. Pack names are
// normalized to lowercase and checked against the storage constraints;
// entry type codes must be known.
func ParseDocument(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, doc.Version)
	}
	for i := range doc.Packs {
		p := &doc.Packs[i]
		p.Name = entry.NormalizeName(p.Name)
		if err := entry.ValidateName(p.Name); err != nil {
			return nil, fmt.Errorf("%w: pack %d: %v", ErrMalformed, i, err)
		}
		for _, pair := range p.Entries {
			if len(pair) != 2 {
				return nil, fmt.Errorf("%w: pack %q: entry is not a [type, data] pair", ErrMalformed, p.Name)
			}
			typ, err := entry.ParseType(pair[0])
			if err != nil {
				return nil, fmt.Errorf("%w: pack %q: %v", ErrMalformed, p.Name, err)
			}
			if err := (entry.Entry{Type: typ, Data: pair[1]}).Validate(); err != nil {
				return nil, fmt.Errorf("%w: pack %q: %v", ErrMalformed, p.Name, err)
			}
		}
	}
	return &doc, nil
}

func (p DocumentPack) decodeEntries() []entry.Entry {
	entries := make([]entry.Entry, 0, len(p.Entries))
	for _, pair := range p.Entries {
		typ, _ := entry.ParseType(pair[0])
		entries = append(entries, entry.Entry{Type: typ, Data: pair[1]})
	}
	return entries
}

// ExportDocument encodes packs into the wire format, compact separators.
func ExportDocument(packs map[string][]entry.Entry, order []string) ([]byte, error) {
	doc := Document{Version: FormatVersion}
	for _, name := range order {
		entries := packs[name]
		pairs := make([][]string, 0, len(entries))
		for _, e := range entries {
			pairs = append(pairs, []string{e.Type.Code(), e.Data})
		}
		doc.Packs = append(doc.Packs, DocumentPack{Name: name, Entries: pairs})
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return out, nil
}
