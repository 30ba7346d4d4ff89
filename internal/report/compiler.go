package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/DukeRupert/vistoria/internal/catalog"
	"github.com/DukeRupert/vistoria/internal/domain"
	"github.com/DukeRupert/vistoria/internal/lifecycle"
)

// Layout constants in millimetres.
const (
	margin           = 15.0
	printableWidth   = PageWidth - 2*margin
	lineHeight       = 4.0
	bottomLimit      = PageHeight - 20
	photoGap         = 5.0
	photoMaxWidth    = 85.0
	photoAspect      = 1.2
	badgeWidth       = 25.0
	badgeHeight      = 7.0
	defaultLineWidth = 0.2
	headerNameMax    = 40
)

// Fixed report wording.
const (
	coverTitle       = "RELATÓRIO DE VISTORIA"
	coverSubtitle    = "ANÁLISE DE RISCOS E MELHORIAS"
	headerSubtitle   = "RELATÓRIO TÉCNICO"
	analysisHeading  = "ANÁLISE TÉCNICA"
	analysisFallback = "Em conformidade ou aguardando análise."
	bullet           = "• "
)

// PhaseCaptions labels the evidence photo of each phase.
var PhaseCaptions = [domain.PhaseCount]string{
	"Situação Encontrada",
	"Tratativa Realizada",
	"Validação",
}

// Compiler lays out inspections into report documents.
//
// Compile keeps all layout state local to the call, so a Compiler may be
// shared by concurrent callers.
type Compiler struct {
	catalog     *catalog.Catalog
	logo        LogoFetcher
	branding    Branding
	newMeasurer func() TextMeasurer
	logger      *slog.Logger
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithLogo sets the logo source. Without one reports carry no logo.
func WithLogo(f LogoFetcher) CompilerOption {
	return func(c *Compiler) { c.logo = f }
}

// WithBranding sets the company identity printed on reports.
func WithBranding(b Branding) CompilerOption {
	return func(c *Compiler) { c.branding = b.withDefaults() }
}

// WithMeasurer sets the factory of text measurers, one per compilation.
func WithMeasurer(fn func() TextMeasurer) CompilerOption {
	return func(c *Compiler) { c.newMeasurer = fn }
}

// NewCompiler creates a Compiler resolving POI titles and recommendation
// texts from cat.
func NewCompiler(cat *catalog.Catalog, logger *slog.Logger, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		catalog:     cat,
		branding:    DefaultBranding(),
		newMeasurer: func() TextMeasurer { return NewFPDFMeasurer() },
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile lays out the report of insp in the given theme.
//
// Reportable instances are sorted critical first. Instances whose POI is
// missing from the catalog are skipped. A logo that cannot be fetched is
// left out. Any other problem fails the whole compilation.
func (c *Compiler) Compile(ctx context.Context, insp *domain.Inspection, theme domain.ReportTheme) (doc *Document, err error) {
	const op = "report.compile"

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = domain.CompilationFailure(fmt.Errorf("panic: %v", r), op)
		}
	}()

	if insp == nil {
		return nil, domain.CompilationFailure(fmt.Errorf("nil inspection"), op)
	}
	style, err := StyleFor(theme)
	if err != nil {
		return nil, domain.CompilationFailure(err, op)
	}

	l := &layout{
		style:    style,
		measure:  c.newMeasurer(),
		branding: c.branding,
		doc: &Document{
			Title:     "Relatório Técnico - " + insp.EstablishmentName,
			Author:    c.branding.CompanyName,
			Filename:  Filename(insp.EstablishmentName),
			CreatedAt: insp.Date,
			Assets:    make(map[string][]byte),
		},
		header: headerInfo{
			Title:    Upper(TruncateRunes(insp.EstablishmentName, headerNameMax)),
			Subtitle: headerSubtitle + " • " + FormatDate(insp.Date),
		},
	}

	if logo := c.fetchLogo(ctx); len(logo) > 0 {
		l.doc.Assets[LogoRef] = logo
		l.header.HasLogo = true
	}

	l.cover(insp)

	instances := make([]domain.PoiInstance, 0, len(insp.Instances))
	for i := range insp.Instances {
		if lifecycle.IsReportable(&insp.Instances[i]) {
			instances = append(instances, insp.Instances[i])
		}
	}
	lifecycle.SortByRisk(instances)

	for i := range instances {
		inst := &instances[i]
		poi, ok := c.catalog.Lookup(inst.PoiID)
		if !ok {
			c.logger.Warn("skipping instance with unknown point of interest",
				"inspection_id", insp.ID,
				"instance_id", inst.ID,
				"poi_id", inst.PoiID,
			)
			continue
		}
		texts := c.catalog.RecommendationTexts(poi.ID, selectedRecommendations(inst))
		l.item(inst, poi, texts)
	}

	l.stampFooters()

	c.logger.Debug("report compiled",
		"inspection_id", insp.ID,
		"theme", theme,
		"pages", l.doc.PageCount(),
		"items", len(instances),
	)
	return l.doc, nil
}

func (c *Compiler) fetchLogo(ctx context.Context) []byte {
	if c.logo == nil {
		return nil
	}
	data, err := c.logo.FetchLogo(ctx)
	if err != nil {
		c.logger.Warn("logo unavailable, compiling without it", "error", err)
		return nil
	}
	return data
}

func selectedRecommendations(inst *domain.PoiInstance) []string {
	if f := inst.Finding(); f != nil {
		return f.SelectedRecommendationIDs
	}
	return nil
}

// =============================================================================
// Layout
// =============================================================================

// layout holds the state of a single compilation.
type layout struct {
	style    ThemeStyle
	measure  TextMeasurer
	branding Branding
	doc      *Document
	header   headerInfo

	page *Page
	y    float64
}

func (l *layout) primary() RGB   { return MustRGB(Palette.Primary) }
func (l *layout) secondary() RGB { return MustRGB(Palette.Secondary) }

func (l *layout) cover(insp *domain.Inspection) {
	s := &l.style
	p := l.doc.addPage()

	bg := s.BodyBg
	p.add(Rect{X: 0, Y: 0, W: PageWidth, H: PageHeight, Fill: &bg})
	s.coverDeco(p, s, l.header.HasLogo)

	y := 100.0
	p.add(Text{X: PageWidth / 2, Y: y, Content: coverTitle, Font: s.font("B", 24), Color: l.primary(), Align: AlignCenter})
	y += 10
	p.add(Text{X: PageWidth / 2, Y: y, Content: coverSubtitle, Font: s.font("", 14), Color: l.secondary(), Align: AlignCenter})

	y += 40
	const cardW = 160.0
	cardX := PageWidth/2 - cardW/2
	s.card(p, s, cardX, y, cardW)

	cnpj := insp.Metadata.CNPJ
	if strings.TrimSpace(cnpj) == "" {
		cnpj = "-"
	}
	site := insp.Site()
	if site == "" {
		site = "-"
	}
	rows := [][2]string{
		{"Cliente", insp.EstablishmentName},
		{"CNPJ", cnpj},
		{"Local", site},
		{"Data", FormatDate(insp.Date)},
		{"Tipo", insp.Type.Label()},
	}
	cy := y + 15
	for _, row := range rows {
		p.add(Text{X: cardX + 10, Y: cy, Content: Upper(row[0]), Font: s.font("B", 9), Color: l.primary()})
		p.add(Text{X: cardX + 60, Y: cy, Content: row[1], Font: s.font("", 9), Color: l.secondary()})
		cy += 12
	}

	p.add(Text{X: PageWidth / 2, Y: PageHeight - 30, Content: l.branding.Website, Font: s.font("", 8), Color: l.secondary(), Align: AlignCenter})
}

// newContentPage starts a page with the running header and resets the cursor.
func (l *layout) newContentPage() {
	l.page = l.doc.addPage()
	l.style.header(l.page, &l.style, l.header)
	l.y = l.style.ContentTop
}

func (l *layout) item(inst *domain.PoiInstance, poi catalog.PointOfInterest, recTexts []string) {
	s := &l.style
	l.newContentPage()

	l.page.add(Text{X: margin, Y: l.y, Content: fmt.Sprintf("%s. %s", poi.ID, poi.Title), Font: s.font("B", 14), Color: l.primary()})

	riskColor := RiskColor(string(inst.RiskLevel))
	s.badge(l.page, PageWidth-40, l.y-5, riskColor)
	l.page.add(Text{X: PageWidth - 27.5, Y: l.y - 0.5, Content: inst.RiskLevel.Label(), Font: s.font("", 7), Color: riskColor, Align: AlignCenter})

	l.y += 15
	l.page.add(Text{X: margin, Y: l.y, Content: analysisHeading, Font: s.font("B", 9), Color: l.primary()})
	l.y += 5

	body := analysisFallback
	if len(recTexts) > 0 {
		bulleted := make([]string, len(recTexts))
		for i, t := range recTexts {
			bulleted[i] = bullet + t
		}
		body = strings.Join(bulleted, "\n")
	}
	bodyFont := s.font("", 9)
	for _, line := range wrapText(l.measure, bodyFont, body, printableWidth) {
		if l.y+lineHeight > bottomLimit {
			l.newContentPage()
		}
		l.page.add(Text{X: margin, Y: l.y, Content: line, Font: bodyFont, Color: l.secondary()})
		l.y += lineHeight
	}
	l.y += 10

	if days, ok := inst.Deadline(); ok && days > 0 {
		l.page.add(Text{X: margin, Y: l.y, Content: fmt.Sprintf("Prazo de Adequação: %d dias", days), Font: s.font("B", 9), Color: l.primary()})
		l.y += 10
	}
	l.y += 5

	l.evidence(inst)
}

// evidence lays out the photos of the instance in a single centred row.
func (l *layout) evidence(inst *domain.PoiInstance) {
	type slot struct {
		ref     string
		caption string
	}
	var slots []slot
	for i, ph := range inst.Phases {
		if ph.HasPhoto() {
			slots = append(slots, slot{ref: ph.DataURL, caption: PhaseCaptions[i]})
		}
	}
	if len(slots) == 0 {
		return
	}

	n := float64(len(slots))
	w := (printableWidth - (n-1)*photoGap) / n
	if w > photoMaxWidth {
		w = photoMaxWidth
	}
	h := w * photoAspect

	if l.y+h+10 > PageHeight {
		l.newContentPage()
	}

	x := margin
	if rowW := n*w + (n-1)*photoGap; rowW < printableWidth {
		x = margin + (printableWidth-rowW)/2
	}

	frame := MustRGB(Palette.PhotoFrame)
	for _, sl := range slots {
		l.page.add(Rect{X: x, Y: l.y, W: w, H: h, Stroke: &frame, LineWidth: defaultLineWidth})
		l.page.add(Image{X: x + 0.5, Y: l.y + 0.5, W: w - 1, H: h - 1, Ref: sl.ref})
		l.page.add(Text{X: x + w/2, Y: l.y + h + 5, Content: Upper(sl.caption), Font: l.style.font("B", 7), Color: l.secondary(), Align: AlignCenter})
		x += w + photoGap
	}
	l.y += h + 10
}

// stampFooters writes "Página i de N" on every page after the cover. It runs
// once layout is complete because N is only known then.
func (l *layout) stampFooters() {
	total := l.doc.PageCount()
	for i := 1; i < total; i++ {
		l.doc.Pages[i].add(Text{
			X:       PageWidth / 2,
			Y:       PageHeight - 10,
			Content: fmt.Sprintf("%s • Página %d de %d", l.branding.CompanyName, i+1, total),
			Font:    l.style.font("", 7),
			Color:   l.secondary(),
			Align:   AlignCenter,
		})
	}
}
