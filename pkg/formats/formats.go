// Package formats provides the binary layouts of the asset library and the
// parsers for external model formats that feed it.
//
// Library files come in two layouts. LayoutLegacy has no header at all;
// LayoutTagged prefixes the same body with a 4-byte magic and a u32 version.
// Readers accept both and reject tagged files with an unknown version.
package formats

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Faultbox/libforge/pkg/binio"
)

// Layout selects how library files are written.
type Layout int

const (
	LayoutTagged Layout = iota // magic + version + body
	LayoutLegacy               // body only
)

// String returns the layout name used in config and logs.
func (l Layout) String() string {
	switch l {
	case LayoutTagged:
		return "tagged"
	case LayoutLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// Library file tags.
const (
	MeshMagic  = "LMSH"
	ModelMagic = "LMDL"

	// CurrentVersion is the body version written by LayoutTagged.
	CurrentVersion uint32 = 1

	// LegacyVersion is reported for files without a tag header.
	LegacyVersion uint32 = 0

	tagSize = 8
)

// Header errors.
var (
	ErrBadMagic           = errors.New("unexpected file magic")
	ErrUnsupportedVersion = errors.New("unsupported library file version")
)

// TagSize returns the size of the header written for layout.
func TagSize(layout Layout) int {
	if layout == LayoutTagged {
		return tagSize
	}
	return 0
}

// WriteTag writes the tag header for layout (nothing for LayoutLegacy).
func WriteTag(w *binio.Writer, magic string, layout Layout) error {
	if layout != LayoutTagged {
		return nil
	}
	if len(magic) != 4 {
		return fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}
	if err := w.Raw([]byte(magic)); err != nil {
		return err
	}
	return w.Uint32(CurrentVersion)
}

// ReadTag consumes a tag header if the data starts with magic and returns the
// body version. Data without the magic is treated as LegacyVersion and the
// cursor is left untouched.
func ReadTag(r *binio.Reader, magic string) (uint32, error) {
	head, err := r.Peek(4)
	if err != nil || !bytes.Equal(head, []byte(magic)) {
		return LegacyVersion, nil
	}
	if err := r.Skip(4); err != nil {
		return 0, err
	}
	version, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	if version != CurrentVersion {
		return version, fmt.Errorf("%w: %s version %d", ErrUnsupportedVersion, magic, version)
	}
	return version, nil
}
