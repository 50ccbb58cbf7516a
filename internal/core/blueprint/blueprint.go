// Package blueprint models the structural plan a model proposes before it
// writes any files.
package blueprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Category tags a style guideline.
type Category string

const (
	CategoryColor       Category = "color"
	CategoryTypography  Category = "typography"
	CategoryLayout      Category = "layout"
	CategoryIconography Category = "iconography"
	CategoryAnimation   Category = "animation"
	CategoryGeneral     Category = "general"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryColor,
	CategoryTypography,
	CategoryLayout,
	CategoryIconography,
	CategoryAnimation,
	CategoryGeneral,
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// UnmarshalJSON accepts categories case-insensitively.
func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	cat := Category(strings.ToLower(strings.TrimSpace(s)))
	if !cat.IsValid() {
		return fmt.Errorf("unknown style category %q", s)
	}
	*c = cat
	return nil
}

type Feature struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StyleGuideline describes one aspect of the visual style. Colors is only
// meaningful for CategoryColor.
type StyleGuideline struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Colors      []string `json:"colors,omitempty"`
}

type Blueprint struct {
	Name            string           `json:"name"`
	Features        []Feature        `json:"features"`
	StyleGuidelines []StyleGuideline `json:"styleGuidelines"`
}

// Validate checks the fields a blueprint needs before it can be shown for
// approval.
func (b *Blueprint) Validate() error {
	var errs []error
	if strings.TrimSpace(b.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	for i, f := range b.Features {
		if strings.TrimSpace(f.Title) == "" {
			errs = append(errs, fmt.Errorf("features[%d]: title is required", i))
		}
	}
	for i, g := range b.StyleGuidelines {
		if !g.Category.IsValid() {
			errs = append(errs, fmt.Errorf("styleGuidelines[%d]: unknown category %q", i, g.Category))
		}
	}
	return errors.Join(errs...)
}

// Normalize drops colors from guidelines outside the color category.
func (b *Blueprint) Normalize() {
	for i := range b.StyleGuidelines {
		if b.StyleGuidelines[i].Category != CategoryColor {
			b.StyleGuidelines[i].Colors = nil
		}
	}
}

// Markdown renders the blueprint for display in an approval prompt.
func (b *Blueprint) Markdown() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n", b.Name)

	if len(b.Features) > 0 {
		sb.WriteString("\n## Features\n\n")
		for _, f := range b.Features {
			if f.Description == "" {
				fmt.Fprintf(&sb, "- **%s**\n", f.Title)
				continue
			}
			fmt.Fprintf(&sb, "- **%s**: %s\n", f.Title, f.Description)
		}
	}

	if len(b.StyleGuidelines) > 0 {
		sb.WriteString("\n## Style\n\n")
		for _, g := range b.StyleGuidelines {
			fmt.Fprintf(&sb, "- _%s_: %s", g.Category, g.Description)
			if len(g.Colors) > 0 {
				codes := make([]string, len(g.Colors))
				for i, c := range g.Colors {
					codes[i] = "`" + c + "`"
				}
				fmt.Fprintf(&sb, " (%s)", strings.Join(codes, ", "))
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
