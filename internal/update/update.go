// Package update merges a generated documentation payload into a source
// unit's text. Every edit is a byte-range replacement computed against
// pre-edit offsets, so bytes outside the edited spans are untouched and
// applying the same payload twice is a fixed point.
package update

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phobologic/codescribe/internal/model"
)

// ErrStaleEdit indicates a computed insertion span no longer fits the
// unit's text: an internal invariant violation, fatal for that unit.
var ErrStaleEdit = errors.New("stale insertion span")

// Apply merges payload into the unit's raw text and returns the updated
// bytes. The second return reports whether anything changed; an unchanged
// result means the unit was already documented with exactly this payload.
func Apply(unit *model.SourceUnit, payload *model.DocPayload, logger *slog.Logger) ([]byte, bool, error) {
	source := unit.Raw
	var edits []Edit

	if payload.ModuleDoc != "" {
		if edit, ok := moduleEdit(unit, payload.ModuleDoc); ok {
			edits = append(edits, edit)
		}
	}

	for i := range unit.Symbols {
		sym := &unit.Symbols[i]
		text := payload.Symbols[sym.Name]
		if text == "" {
			continue
		}
		edit, ok, err := symbolEdit(source, sym, text, logger)
		if err != nil {
			return nil, false, err
		}
		if ok {
			edits = append(edits, edit)
		}
	}

	if len(edits) == 0 {
		return source, false, nil
	}

	updated, err := ApplyEdits(source, edits)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrStaleEdit, err)
	}
	return updated, true, nil
}

// moduleEdit computes the edit for the file-level docstring: replace the
// existing one in place, or insert at the top of the file.
func moduleEdit(unit *model.SourceUnit, text string) (Edit, bool) {
	rendered := renderDocstring(text, "")
	source := unit.Raw

	if unit.ModuleDocStart >= 0 && unit.ModuleDocEnd <= len(source) {
		if string(source[unit.ModuleDocStart:unit.ModuleDocEnd]) == rendered {
			return Edit{}, false
		}
		return Edit{
			Start:       unit.ModuleDocStart,
			End:         unit.ModuleDocEnd,
			Replacement: []byte(rendered),
		}, true
	}

	at := unit.ModuleDocAt
	if at < 0 || at > len(source) {
		at = 0
	}
	return Edit{Start: at, End: at, Replacement: []byte(rendered + "\n")}, true
}

// symbolEdit computes the edit for one symbol: replace the existing
// docstring span, or insert a new docstring as the first statement of the
// body.
func symbolEdit(source []byte, sym *model.Symbol, text string, logger *slog.Logger) (Edit, bool, error) {
	rendered := renderDocstring(text, sym.Indent)

	if sym.DocStart >= 0 {
		if sym.DocEnd > len(source) || sym.DocEnd < sym.DocStart {
			return Edit{}, false, fmt.Errorf("%w: %s docstring span [%d,%d) outside %d bytes",
				ErrStaleEdit, sym.Name, sym.DocStart, sym.DocEnd, len(source))
		}
		if string(source[sym.DocStart:sym.DocEnd]) == rendered {
			return Edit{}, false, nil
		}
		return Edit{Start: sym.DocStart, End: sym.DocEnd, Replacement: []byte(rendered)}, true, nil
	}

	if sym.BodyStart < 0 || sym.BodyStart > len(source) {
		return Edit{}, false, fmt.Errorf("%w: %s body offset %d outside %d bytes",
			ErrStaleEdit, sym.Name, sym.BodyStart, len(source))
	}
	if sym.Indent == "" {
		// Body on the same line as the definition; a docstring cannot be
		// inserted without restructuring the statement.
		logger.Warn("cannot insert docstring into single-line body", "symbol", sym.Name)
		return Edit{}, false, nil
	}

	insert := rendered + "\n" + sym.Indent
	return Edit{Start: sym.BodyStart, End: sym.BodyStart, Replacement: []byte(insert)}, true, nil
}

// renderDocstring produces a triple-quoted docstring literal. Continuation
// lines and the closing quotes carry the body indentation so the literal
// sits correctly inside the block. Triple-double-quote runs inside the text
// are softened to single quotes to keep the literal well formed.
func renderDocstring(text, indent string) string {
	text = strings.ReplaceAll(strings.TrimSpace(text), `"""`, "'''")

	lines := strings.Split(text, "\n")
	if len(lines) == 1 {
		return `"""` + text + `"""`
	}

	var b strings.Builder
	b.WriteString(`"""`)
	b.WriteString(lines[0])
	for _, line := range lines[1:] {
		b.WriteString("\n")
		if strings.TrimSpace(line) != "" {
			b.WriteString(indent)
			b.WriteString(strings.TrimRight(line, " \t"))
		}
	}
	b.WriteString("\n")
	b.WriteString(indent)
	b.WriteString(`"""`)
	return b.String()
}
