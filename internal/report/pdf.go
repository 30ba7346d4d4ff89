package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/go-pdf/fpdf"
)

// =============================================================================
// PDF Renderer
// =============================================================================

// PDFRenderer draws compiled documents as PDF.
type PDFRenderer struct {
	images ImageSource
	logger *slog.Logger
}

// NewPDFRenderer creates a renderer resolving evidence photos through images.
// A nil source leaves every photo frame empty.
func NewPDFRenderer(images ImageSource, logger *slog.Logger) *PDFRenderer {
	return &PDFRenderer{images: images, logger: logger}
}

// registeredImage is an image already loaded into the PDF.
type registeredImage struct {
	name string
	typ  string
}

// Render writes doc as a PDF to w and returns the number of bytes written.
//
// Photos that cannot be fetched or decoded are left out and their frame is
// drawn empty. Any other error aborts rendering.
func (r *PDFRenderer) Render(ctx context.Context, doc *Document, w io.Writer) (int64, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)
	pdf.SetCreator(doc.Author, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCatalogSort(true)
	if !doc.CreatedAt.IsZero() {
		pdf.SetCreationDate(doc.CreatedAt)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	images := r.registerImages(ctx, pdf, doc)

	for _, page := range doc.Pages {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		pdf.AddPage()
		for _, el := range page.Elements {
			switch e := el.(type) {
			case Text:
				drawText(pdf, tr, e)
			case Rect:
				drawRect(pdf, e)
			case Line:
				pdf.SetDrawColor(e.Color.R, e.Color.G, e.Color.B)
				pdf.SetLineWidth(e.Width)
				pdf.Line(e.X1, e.Y1, e.X2, e.Y2)
			case Image:
				img, ok := images[e.Ref]
				if !ok {
					continue
				}
				pdf.ImageOptions(img.name, e.X, e.Y, e.W, e.H, false,
					fpdf.ImageOptions{ImageType: img.typ}, 0, "")
			}
		}
	}

	// Check for errors during generation
	if err := pdf.Error(); err != nil {
		return 0, fmt.Errorf("pdf generation error: %w", err)
	}

	// Write to buffer to count bytes
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("pdf output error: %w", err)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// registerImages loads every distinct image reference of the document.
func (r *PDFRenderer) registerImages(ctx context.Context, pdf *fpdf.Fpdf, doc *Document) map[string]registeredImage {
	out := make(map[string]registeredImage)
	seen := make(map[string]bool)

	for _, page := range doc.Pages {
		for _, img := range page.Images() {
			if seen[img.Ref] {
				continue
			}
			seen[img.Ref] = true

			data, err := r.load(ctx, doc, img.Ref)
			if err != nil {
				r.logger.Warn("image left out of report", "ref", logRef(img.Ref), "error", err)
				continue
			}
			normalized, typ, err := NormalizeImage(data, domain.ReportImageMaxPixels)
			if err != nil {
				r.logger.Warn("image could not be decoded", "ref", logRef(img.Ref), "error", err)
				continue
			}

			name := fmt.Sprintf("img%d", len(out))
			pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: typ}, bytes.NewReader(normalized))
			out[img.Ref] = registeredImage{name: name, typ: typ}
		}
	}
	return out
}

func (r *PDFRenderer) load(ctx context.Context, doc *Document, ref string) ([]byte, error) {
	if data, ok := doc.Assets[ref]; ok {
		return data, nil
	}
	if r.images == nil {
		return nil, fmt.Errorf("no image source configured")
	}
	return r.images.Fetch(ctx, ref)
}

// logRef shortens inline data URLs for logging.
func logRef(ref string) string {
	return TruncateRunes(ref, 64)
}

func drawText(pdf *fpdf.Fpdf, tr func(string) string, t Text) {
	pdf.SetFont(t.Font.Family, t.Font.Style, t.Font.Size)
	pdf.SetTextColor(t.Color.R, t.Color.G, t.Color.B)
	s := tr(t.Content)
	x := t.X
	switch t.Align {
	case AlignCenter:
		x -= pdf.GetStringWidth(s) / 2
	case AlignRight:
		x -= pdf.GetStringWidth(s)
	}
	pdf.Text(x, t.Y, s)
}

func drawRect(pdf *fpdf.Fpdf, rc Rect) {
	style := ""
	if rc.Fill != nil {
		pdf.SetFillColor(rc.Fill.R, rc.Fill.G, rc.Fill.B)
		style += "F"
	}
	if rc.Stroke != nil {
		pdf.SetDrawColor(rc.Stroke.R, rc.Stroke.G, rc.Stroke.B)
		pdf.SetLineWidth(rc.LineWidth)
		style += "D"
	}
	if style == "" {
		return
	}
	if rc.Radius > 0 {
		pdf.RoundedRect(rc.X, rc.Y, rc.W, rc.H, rc.Radius, "1234", style)
		return
	}
	pdf.Rect(rc.X, rc.Y, rc.W, rc.H, style)
}
