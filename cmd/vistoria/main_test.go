package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

// writeInspection writes an inspection fixture and returns its path.
func writeInspection(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inspection.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const emptyInspection = `{
	"id": "6f1c7e7a-8d33-4d59-9b61-2f0a4b3c5d10",
	"establishmentName": "Mercado Bom Preço",
	"address": "Rua das Palmeiras, 45, Centro, Maringá",
	"type": "internal",
	"date": "2026-05-04T10:30:00Z",
	"metadata": {"cnpj": "12.345.678/0001-90"},
	"instances": []
}`

func TestCatalogCommand(t *testing.T) {
	t.Run("yaml round trips through catalog.Load", func(t *testing.T) {
		out, err := execute(t, "catalog")
		require.NoError(t, err)

		cat, err := catalog.Load(strings.NewReader(out))
		require.NoError(t, err)

		def, err := catalog.Default()
		require.NoError(t, err)
		assert.Equal(t, def.All(), cat.All())
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "catalog", "--format", "json")
		require.NoError(t, err)

		var points []catalog.PointOfInterest
		require.NoError(t, json.Unmarshal([]byte(out), &points))
		require.NotEmpty(t, points)
		assert.Equal(t, "1", points[0].ID)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := execute(t, "catalog", "--format", "xml")
		assert.ErrorContains(t, err, "unknown format")
	})
}

func TestReportCommand(t *testing.T) {
	t.Run("writes the pdf", func(t *testing.T) {
		input := writeInspection(t, emptyInspection)
		outDir := filepath.Join(t.TempDir(), "out")

		stdout, err := execute(t, "report", "--input", input, "--theme", "premium", "--out", outDir)
		require.NoError(t, err)

		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasSuffix(entries[0].Name(), ".pdf"))
		assert.Contains(t, stdout, entries[0].Name())

		data, err := os.ReadFile(filepath.Join(outDir, entries[0].Name()))
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
	})

	t.Run("input is required", func(t *testing.T) {
		_, err := execute(t, "report")
		assert.ErrorContains(t, err, "input")
	})

	t.Run("unknown theme", func(t *testing.T) {
		input := writeInspection(t, emptyInspection)
		_, err := execute(t, "report", "--input", input, "--theme", "neon", "--out", t.TempDir())
		assert.Error(t, err)
	})

	t.Run("malformed inspection", func(t *testing.T) {
		input := writeInspection(t, `{"establishmentName": `)
		_, err := execute(t, "report", "--input", input, "--out", t.TempDir())
		assert.ErrorContains(t, err, "parse inspection")
	})

	t.Run("missing establishment name", func(t *testing.T) {
		input := writeInspection(t, `{"address": "Rua A"}`)
		_, err := execute(t, "report", "--input", input, "--out", t.TempDir())
		assert.ErrorContains(t, err, "establishmentName")
	})
}
