package receipt

import (
	"strings"
	"unicode/utf8"
)

// MinWidth is the narrowest layout Text produces.
const MinWidth = 24

// Text lays the document out as fixed-width plain text, one line per row,
// as a 58mm or 80mm thermal printer would print it.
func (d Document) Text(width int) string {
	if width < MinWidth {
		width = MinWidth
	}

	var b strings.Builder
	for _, l := range d.Lines {
		switch l.Kind {
		case KindSeparator:
			b.WriteString(strings.Repeat("-", width))
		case KindHeader, KindFooter:
			b.WriteString(center(l.Label, width))
		case KindItem:
			b.WriteString(keyValue(l.Label, l.Value, width))
			if l.Detail != "" {
				b.WriteByte('\n')
				b.WriteString(truncate("  "+l.Detail, width))
			}
		default:
			b.WriteString(keyValue(l.Label, l.Value, width))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// keyValue left-aligns key and right-aligns value, truncating the key when
// both do not fit.
func keyValue(key, value string, width int) string {
	vw := utf8.RuneCountInString(value)
	if vw >= width {
		return truncate(value, width)
	}
	key = truncate(key, width-vw-1)
	pad := width - utf8.RuneCountInString(key) - vw
	return key + strings.Repeat(" ", pad) + value
}

func center(s string, width int) string {
	s = truncate(s, width)
	pad := (width - utf8.RuneCountInString(s)) / 2
	return strings.TrimRight(strings.Repeat(" ", pad)+s, " ")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	r := []rune(s)
	return string(r[:width])
}
