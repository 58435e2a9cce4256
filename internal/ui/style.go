package ui

import (
	"strconv"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/borrowscope/borrowscope/internal/decoration"
)

// parseHexColor converts "#rrggbb" to a tcell color. Malformed input
// falls back to the terminal default.
func parseHexColor(s string) tcell.Color {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return tcell.ColorDefault
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return tcell.ColorDefault
	}
	return tcell.NewRGBColor(int32(v>>16&0xff), int32(v>>8&0xff), int32(v&0xff))
}

// overlayStyle converts a paint style into the tcell attributes applied
// on top of the base cell style. Background paints tint the cell;
// everything else underlines in the paint color.
func overlayStyle(base tcell.Style, s decoration.Style) tcell.Style {
	if s.Color == "" {
		return base
	}
	color := parseHexColor(s.Color)
	if s.Background {
		return base.Background(color)
	}
	style := base.Foreground(color).Underline(true)
	if s.Thickness >= 2 {
		style = style.Bold(true)
	}
	return style
}
