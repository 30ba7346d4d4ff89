package report

import (
	"slices"
	"strings"

	"github.com/go-pdf/fpdf"
)

// TextMeasurer reports the rendered width of a string in millimetres.
type TextMeasurer interface {
	StringWidth(font Font, s string) float64
}

// LineSplitter is a TextMeasurer that breaks text into lines itself.
// wrapText defers to it when available.
type LineSplitter interface {
	Split(font Font, text string, width float64) []string
}

// FPDFMeasurer measures text with the core font metrics of fpdf, the same
// metrics the PDFRenderer draws with. It is not safe for concurrent use.
type FPDFMeasurer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

// NewFPDFMeasurer creates a measurer backed by a scratch fpdf document.
func NewFPDFMeasurer() *FPDFMeasurer {
	pdf := fpdf.New("P", "mm", "A4", "")
	// SplitText reserves the cell margin on both sides; lines here are drawn
	// with Text, not Cell.
	pdf.SetCellMargin(0)
	return &FPDFMeasurer{
		pdf: pdf,
		tr:  pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// StringWidth returns the width of s set in font.
func (m *FPDFMeasurer) StringWidth(font Font, s string) float64 {
	m.pdf.SetFont(font.Family, font.Style, font.Size)
	return m.pdf.GetStringWidth(m.tr(s))
}

// Split breaks text into lines no wider than width with fpdf's SplitText,
// the line breaking MultiCell uses.
func (m *FPDFMeasurer) Split(font Font, text string, width float64) []string {
	m.pdf.SetFont(font.Family, font.Style, font.Size)

	// SplitText looks glyph widths up by rune, so it is fed the code page
	// bytes as runes. The translator emits one byte per rune, which keeps
	// positions aligned with the original text.
	src := []rune(text)
	coded := []rune(string(src))
	for i, b := range []byte(m.tr(text)) {
		coded[i] = rune(b)
	}

	lines := m.pdf.SplitText(string(coded), width)
	out := make([]string, 0, len(lines))
	pos := 0
	for _, line := range lines {
		lr := []rune(line)
		// Skip the separators SplitText dropped between lines.
		for pos < len(coded) && !hasRunePrefix(coded[pos:], lr) {
			pos++
		}
		end := min(pos+len(lr), len(src))
		out = append(out, string(src[pos:end]))
		pos = end
	}
	if len(out) == 0 {
		out = append(out, "")
	}
	return out
}

func hasRunePrefix(s, prefix []rune) bool {
	return len(s) >= len(prefix) && slices.Equal(s[:len(prefix)], prefix)
}

// wrapText breaks text into lines no wider than width. Explicit newlines
// start a new line; words longer than a line are split by character.
func wrapText(m TextMeasurer, font Font, text string, width float64) []string {
	if s, ok := m.(LineSplitter); ok {
		return s.Split(font, text, width)
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if m.StringWidth(font, candidate) <= width {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			for m.StringWidth(font, word) > width {
				head, tail := splitWord(m, font, word, width)
				lines = append(lines, head)
				word = tail
			}
			current = word
		}
		lines = append(lines, current)
	}
	return lines
}

// splitWord returns the longest prefix of word that fits width (at least
// one character) and the remainder.
func splitWord(m TextMeasurer, font Font, word string, width float64) (string, string) {
	r := []rune(word)
	n := 1
	for n < len(r) && m.StringWidth(font, string(r[:n+1])) <= width {
		n++
	}
	return string(r[:n]), string(r[n:])
}
