package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func dataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type mapSource map[string][]byte

func (m mapSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	if data, ok := m[ref]; ok {
		return data, nil
	}
	return nil, errors.New("not found")
}

// =============================================================================
// Renderer
// =============================================================================

func TestPDFRenderer_Render(t *testing.T) {
	photo := dataURL("image/png", encodePNG(t, 40, 48))

	inst := domain.NewPoiInstance("1")
	inst.CurrentPhase = 2
	inst.RiskLevel = domain.RiskCritical
	inst.Phases[0] = &domain.PhasePhoto{DataURL: photo, SelectedRecommendationIDs: []string{"1.1"}}
	inst.Phases[1] = &domain.PhasePhoto{DataURL: "uploads/missing.jpg", Status: domain.PhaseStatusSatisfactory}

	logo := &stubLogo{data: encodePNG(t, 10, 4)}
	doc := compile(t, testInspection(inst, reportableInstance("2", domain.RiskLow)), domain.ReportThemePremium, WithLogo(logo))

	r := NewPDFRenderer(NewPhotoSource(nil, nil), discardLogger())
	var buf bytes.Buffer
	n, err := r.Render(context.Background(), doc, &buf)

	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestPDFRenderer_RenderBothThemes(t *testing.T) {
	for _, theme := range []domain.ReportTheme{domain.ReportThemeStandard, domain.ReportThemePremium} {
		t.Run(string(theme), func(t *testing.T) {
			inst := reportableInstance("1", domain.RiskMedium)
			inst.Phases[0].DataURL = "photo"
			inst.Phases[0].SelectedRecommendationIDs = []string{"1.1", "1.2"}
			doc := compile(t, testInspection(inst), theme)

			r := NewPDFRenderer(mapSource{"photo": encodeJPEG(t, 30, 30)}, discardLogger())
			var buf bytes.Buffer
			_, err := r.Render(context.Background(), doc, &buf)

			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		})
	}
}

func TestPDFRenderer_SkipsUndecodableImages(t *testing.T) {
	inst := reportableInstance("1", domain.RiskLow)
	inst.Phases[0].DataURL = "broken"
	doc := compile(t, testInspection(inst), domain.ReportThemeStandard)

	r := NewPDFRenderer(mapSource{"broken": []byte("definitely not an image")}, discardLogger())
	var buf bytes.Buffer
	_, err := r.Render(context.Background(), doc, &buf)

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestPDFRenderer_CancelledContext(t *testing.T) {
	doc := compile(t, testInspection(), domain.ReportThemeStandard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewPDFRenderer(nil, discardLogger())
	_, err := r.Render(ctx, doc, &bytes.Buffer{})

	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Images
// =============================================================================

func TestDecodeDataURL(t *testing.T) {
	data, err := DecodeDataURL("data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = DecodeDataURL("data:image/png;base64")
	assert.Error(t, err)

	_, err = DecodeDataURL("data:text/plain,hello")
	assert.Error(t, err)

	_, err = DecodeDataURL("data:image/png;base64,***")
	assert.Error(t, err)
}

func TestNormalizeImage(t *testing.T) {
	t.Run("png stays png", func(t *testing.T) {
		out, typ, err := NormalizeImage(encodePNG(t, 20, 10), 1600)
		require.NoError(t, err)
		assert.Equal(t, "PNG", typ)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, 20, cfg.Width)
	})

	t.Run("jpeg is re-encoded", func(t *testing.T) {
		_, typ, err := NormalizeImage(encodeJPEG(t, 20, 10), 1600)
		require.NoError(t, err)
		assert.Equal(t, "JPEG", typ)
	})

	t.Run("large images are bounded", func(t *testing.T) {
		out, _, err := NormalizeImage(encodeJPEG(t, 400, 200), 100)
		require.NoError(t, err)

		cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Width)
		assert.Equal(t, 50, cfg.Height)
	})

	t.Run("garbage fails", func(t *testing.T) {
		_, _, err := NormalizeImage([]byte("nope"), 1600)
		assert.Error(t, err)
	})
}

func TestPhotoSource_Fetch(t *testing.T) {
	src := NewPhotoSource(nil, nil)

	data, err := src.Fetch(context.Background(), dataURL("image/png", []byte("xyz")))
	require.NoError(t, err)
	assert.Equal(t, []byte("xyz"), data)

	_, err = src.Fetch(context.Background(), "https://example.com/a.jpg")
	assert.Error(t, err)

	_, err = src.Fetch(context.Background(), "inspections/a/photo.jpg")
	assert.Error(t, err)
}
