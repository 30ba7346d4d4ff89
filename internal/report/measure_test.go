package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFPDFMeasurer_Split(t *testing.T) {
	m := NewFPDFMeasurer()
	font := Font{Family: "Helvetica", Size: 9}

	t.Run("wraps within the width", func(t *testing.T) {
		text := "A instalação elétrica do depósito apresenta fiação exposta próxima às prateleiras de papelão, com risco de curto-circuito e ignição."
		width := 40.0

		lines := m.Split(font, text, width)
		require.Greater(t, len(lines), 1)
		for _, line := range lines {
			assert.LessOrEqual(t, m.StringWidth(font, line), width+0.01, line)
		}
		assert.Equal(t, text, strings.Join(lines, " "))
		assert.Equal(t, lines, wrapText(m, font, text, width))
	})

	t.Run("keeps newlines", func(t *testing.T) {
		assert.Equal(t, []string{"Linha um", "", "Linha três"}, m.Split(font, "Linha um\n\nLinha três", 100))
	})

	t.Run("splits long words", func(t *testing.T) {
		word := strings.Repeat("m", 40)
		lines := m.Split(font, word, 20)
		require.Greater(t, len(lines), 1)
		assert.Equal(t, word, strings.Join(lines, ""))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Equal(t, []string{""}, m.Split(font, "", 50))
	})
}
