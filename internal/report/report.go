// Package report compiles inspections into paginated technical reports.
//
// Compilation happens in two steps. The Compiler lays out an in-memory
// Document (pages of positioned text, rectangles, lines and images) and
// stamps page numbers once the page count is known. The PDFRenderer then
// draws that document with fpdf. Keeping layout separate from drawing makes
// the layout deterministic and testable without parsing PDF output.
package report

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// Colors
// =============================================================================

// RGB is a color with 0-255 channels.
type RGB struct {
	R, G, B int
}

// Palette defines the fixed colors shared by both themes.
var Palette = struct {
	Primary    string // Titles and labels
	Secondary  string // Body text, footer
	CardBorder string // Standard cover card
	PhotoFrame string // Evidence photo frame
	White      string
}{
	Primary:    "#0F172A",
	Secondary:  "#475569",
	CardBorder: "#CBD5E1",
	PhotoFrame: "#C8C8C8",
	White:      "#FFFFFF",
}

// RiskColors maps risk levels to badge colors.
var RiskColors = map[string]string{
	"critical": "#991B1B",
	"medium":   "#B45309",
	"low":      "#15803D",
}

// RiskColor returns the badge color for a risk level, medium when unknown.
func RiskColor(level string) RGB {
	if hex, ok := RiskColors[level]; ok {
		return MustRGB(hex)
	}
	return MustRGB(RiskColors["medium"])
}

// =============================================================================
// Color Conversion Helpers
// =============================================================================

// HexToRGB converts a hex color string to RGB values.
// Input format: "#RRGGBB" or "RRGGBB"
func HexToRGB(hex string) (r, g, b int) {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	if len(hex) != 6 {
		return 0, 0, 0
	}

	r = hexToDec(hex[0:2])
	g = hexToDec(hex[2:4])
	b = hexToDec(hex[4:6])
	return
}

// MustRGB converts a hex color string to an RGB value.
func MustRGB(hex string) RGB {
	r, g, b := HexToRGB(hex)
	return RGB{R: r, G: g, B: b}
}

// hexToDec converts a 2-character hex string to decimal.
func hexToDec(hex string) int {
	val := 0
	for _, c := range hex {
		val *= 16
		switch {
		case c >= '0' && c <= '9':
			val += int(c - '0')
		case c >= 'a' && c <= 'f':
			val += int(c - 'a' + 10)
		case c >= 'A' && c <= 'F':
			val += int(c - 'A' + 10)
		}
	}
	return val
}

// =============================================================================
// Text Formatting Helpers
// =============================================================================

var (
	upper = cases.Upper(language.BrazilianPortuguese)
	lower = cases.Lower(language.BrazilianPortuguese)

	whitespace = regexp.MustCompile(`\s`)
)

// Upper uppercases text using Portuguese casing rules.
func Upper(s string) string {
	return upper.String(s)
}

// TruncateRunes cuts s to at most n characters.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// FormatDate formats a date the way Brazilian readers expect (dd/mm/yyyy).
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// Filename derives the download name of the report of an establishment.
// Every whitespace character becomes an underscore.
func Filename(establishmentName string) string {
	name := whitespace.ReplaceAllString(establishmentName, "_")
	return "relatorio_tecnico_" + lower.String(name) + ".pdf"
}

// =============================================================================
// Branding
// =============================================================================

// Branding holds the company identity printed on reports.
type Branding struct {
	CompanyName string
	Website     string
}

// DefaultBranding returns the branding used when none is configured.
func DefaultBranding() Branding {
	return Branding{
		CompanyName: "Qualiseg Gestão de Riscos",
		Website:     "www.qualisegcorretora.com.br",
	}
}

func (b Branding) withDefaults() Branding {
	d := DefaultBranding()
	if strings.TrimSpace(b.CompanyName) == "" {
		b.CompanyName = d.CompanyName
	}
	if strings.TrimSpace(b.Website) == "" {
		b.Website = d.Website
	}
	return b
}
