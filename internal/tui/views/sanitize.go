package views

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/tview"
)

// clean makes endpoint-supplied text safe for a table cell: control
// characters and zero-width joiners are dropped and tview color tags
// are escaped.
func clean(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == utf8.RuneError && size == 1:
			continue
		case r == '\n', r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r), r == 0x200D:
			continue
		case r >= 0xFE00 && r <= 0xFE0F:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return tview.Escape(b.String())
}

// cell builds a padded table cell from untrusted text.
func cell(s string) *tview.TableCell {
	return tview.NewTableCell(" " + clean(s))
}
