package styles

import (
	"image/color"
	"maps"
	"slices"

	lipgloss "charm.land/lipgloss/v2"
)

// Palette is the set of semantic colors every style is derived from.
type Palette struct {
	Primary    color.Color
	Secondary  color.Color
	Foreground color.Color
	Muted      color.Color
	Surface    color.Color
	Success    color.Color
	Warning    color.Color
	Error      color.Color
}

const DefaultTheme = "ember"

// hexPalette builds a Palette from hex strings given in field order.
func hexPalette(primary, secondary, fg, muted, surface, success, warning, errc string) Palette {
	return Palette{
		Primary:    lipgloss.Color(primary),
		Secondary:  lipgloss.Color(secondary),
		Foreground: lipgloss.Color(fg),
		Muted:      lipgloss.Color(muted),
		Surface:    lipgloss.Color(surface),
		Success:    lipgloss.Color(success),
		Warning:    lipgloss.Color(warning),
		Error:      lipgloss.Color(errc),
	}
}

var themes = map[string]Palette{
	"ember":       hexPalette("#f08a4b", "#f4c06a", "#ece4d8", "#7d7168", "#3a2f2a", "#9fc37a", "#e8b04c", "#e0604f"),
	"tokyo-night": hexPalette("#7aa2f7", "#7dcfff", "#c0caf5", "#565f89", "#3b4261", "#9ece6a", "#e0af68", "#f7768e"),
	"gruvbox":     hexPalette("#83a598", "#8ec07c", "#ebdbb2", "#665c54", "#3c3836", "#b8bb26", "#fabd2f", "#fb4934"),
	"nord":        hexPalette("#88c0d0", "#81a1c1", "#eceff4", "#4c566a", "#3b4252", "#a3be8c", "#ebcb8b", "#bf616a"),
	"porcelain":   hexPalette("#1f6feb", "#8250df", "#24292f", "#8c959f", "#d0d7de", "#1a7f37", "#9a6700", "#cf222e"),
}

// ThemeNames returns the built-in theme names, sorted.
func ThemeNames() []string {
	return slices.Sorted(maps.Keys(themes))
}

func GetPalette(name string) (Palette, bool) {
	p, ok := themes[name]
	return p, ok
}
