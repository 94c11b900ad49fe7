package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// glyphs are three rows tall, drawn with half blocks.
var glyphs = map[rune][3]string{
	'0': {"█▀█", "█ █", "▀▀▀"},
	'1': {"▀█ ", " █ ", "▀▀▀"},
	'2': {"▀▀█", "█▀▀", "▀▀▀"},
	'3': {"▀▀█", " ▀█", "▀▀▀"},
	'4': {"█ █", "▀▀█", "  ▀"},
	'5': {"█▀▀", "▀▀█", "▀▀▀"},
	'6': {"█▀▀", "█▀█", "▀▀▀"},
	'7': {"▀▀█", "  █", "  ▀"},
	'8': {"█▀█", "█▀█", "▀▀▀"},
	'9': {"█▀█", "▀▀█", "▀▀▀"},
	':': {"▄", "▄", " "},
	'+': {" ▄ ", "▀█▀", "   "},
}

// renderBigClock draws text (digits, colons and a leading plus) in the
// block font. Unknown runes are skipped.
func renderBigClock(text string, color lipgloss.Color) string {
	var rows [3][]string
	for _, ch := range text {
		g, ok := glyphs[ch]
		if !ok {
			continue
		}
		for i := range rows {
			rows[i] = append(rows[i], g[i])
		}
	}

	style := lipgloss.NewStyle().Bold(true).Foreground(color)
	lines := make([]string, len(rows))
	for i, parts := range rows {
		lines[i] = style.Render(strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}
