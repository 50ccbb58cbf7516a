// Package styles provides the lipgloss styles and glamour theme used by
// kiln's command line output.
package styles

import (
	"hash/fnv"
	"image/color"

	lipgloss "charm.land/lipgloss/v2"
	glamouransi "github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/colonyops/kiln/internal/core/task"
)

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

var (
	HeaderStyle  lipgloss.Style
	MutedStyle   lipgloss.Style
	SuccessStyle lipgloss.Style
	WarningStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	InfoStyle    lipgloss.Style
	PathStyle    lipgloss.Style
	DividerStyle lipgloss.Style

	statusStyles map[task.Status]lipgloss.Style
)

// colorPool is used for deterministic coloring of workspace names.
var colorPool []color.Color

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	HeaderStyle = lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
	MutedStyle = lipgloss.NewStyle().Foreground(p.Muted)
	SuccessStyle = lipgloss.NewStyle().Foreground(p.Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(p.Warning).Bold(true)
	ErrorStyle = lipgloss.NewStyle().Foreground(p.Error).Bold(true)
	InfoStyle = lipgloss.NewStyle().Foreground(p.Secondary).Bold(true)
	PathStyle = lipgloss.NewStyle().Foreground(p.Foreground)
	DividerStyle = lipgloss.NewStyle().Foreground(p.Surface)

	statusStyles = map[task.Status]lipgloss.Style{
		task.StatusRunning:                  lipgloss.NewStyle().Foreground(p.Secondary),
		task.StatusCompleted:                lipgloss.NewStyle().Foreground(p.Success),
		task.StatusError:                    lipgloss.NewStyle().Foreground(p.Error),
		task.StatusPendingConfirmation:      lipgloss.NewStyle().Foreground(p.Warning),
		task.StatusPendingBlueprintApproval: lipgloss.NewStyle().Foreground(p.Warning).Italic(true),
	}

	colorPool = []color.Color{p.Primary, p.Secondary, p.Success, p.Warning, p.Error}
}

// Status renders a task status in its theme color.
func Status(s task.Status) string {
	st, ok := statusStyles[s]
	if !ok {
		return string(s)
	}
	return st.Render(string(s))
}

// ColorForString picks a palette color for s. The same string always gets
// the same color under a given theme.
func ColorForString(s string) color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return colorPool[h.Sum32()%uint32(len(colorPool))]
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}

// hex converts c to "#rrggbb" for glamour, which takes colors as strings.
func hex(c color.Color) *string {
	if c == nil {
		return nil
	}
	cc, ok := colorful.MakeColor(c)
	if !ok {
		return nil
	}
	v := cc.Hex()
	return &v
}

// GlamourStyle adapts glamour's dark style to the active palette. It renders
// assistant replies and blueprints.
func GlamourStyle() glamouransi.StyleConfig {
	cfg := glamourstyles.DarkStyleConfig
	p := CurrentPalette

	paint := func(c color.Color, blocks ...*glamouransi.StylePrimitive) {
		v := hex(c)
		for _, b := range blocks {
			b.Color = v
		}
	}

	paint(p.Foreground, &cfg.Document.StylePrimitive, &cfg.Paragraph.StylePrimitive)
	paint(p.Primary, &cfg.Heading.StylePrimitive, &cfg.H1.StylePrimitive, &cfg.H2.StylePrimitive)
	paint(p.Secondary, &cfg.H3.StylePrimitive, &cfg.Link, &cfg.LinkText, &cfg.Code.StylePrimitive)
	paint(p.Muted, &cfg.BlockQuote.StylePrimitive, &cfg.HorizontalRule, &cfg.CodeBlock.StylePrimitive)

	return cfg
}
