package report

import (
	"fmt"

	"github.com/DukeRupert/vistoria/internal/domain"
)

// ThemeStyle carries everything that differs between report themes.
// It is resolved once per compilation.
type ThemeStyle struct {
	Theme      domain.ReportTheme
	FontFamily string
	HeaderBg   RGB
	HeaderText RGB
	Accent     RGB
	BodyBg     RGB

	// ContentTop is the baseline of the first line below the header.
	ContentTop float64

	header    func(p *Page, s *ThemeStyle, h headerInfo)
	coverDeco func(p *Page, s *ThemeStyle, hasLogo bool)
	card      func(p *Page, s *ThemeStyle, x, y, w float64)
	badge     func(p *Page, x, y float64, color RGB)
}

// headerInfo is the text shown in the running header.
type headerInfo struct {
	Title    string
	Subtitle string
	HasLogo  bool
}

// StyleFor resolves the style of a theme.
func StyleFor(theme domain.ReportTheme) (ThemeStyle, error) {
	switch theme {
	case domain.ReportThemePremium:
		return premiumStyle(), nil
	case domain.ReportThemeStandard, "":
		return standardStyle(), nil
	}
	return ThemeStyle{}, fmt.Errorf("unknown report theme %q", theme)
}

func standardStyle() ThemeStyle {
	return ThemeStyle{
		Theme:      domain.ReportThemeStandard,
		FontFamily: "Helvetica",
		HeaderBg:   MustRGB(Palette.White),
		HeaderText: MustRGB(Palette.Secondary),
		Accent:     MustRGB("#E2E8F0"),
		BodyBg:     MustRGB("#F8FAFC"),
		ContentTop: 35,
		header:     standardHeader,
		coverDeco:  standardCoverDeco,
		card:       standardCard,
		badge:      filledBadge,
	}
}

func premiumStyle() ThemeStyle {
	return ThemeStyle{
		Theme:      domain.ReportThemePremium,
		FontFamily: "Times",
		HeaderBg:   MustRGB(Palette.Primary),
		HeaderText: MustRGB(Palette.White),
		Accent:     MustRGB("#D4AF37"),
		BodyBg:     MustRGB(Palette.White),
		ContentTop: 45,
		header:     premiumHeader,
		coverDeco:  premiumCoverDeco,
		card:       premiumCard,
		badge:      outlinedBadge,
	}
}

func (s *ThemeStyle) font(style string, size float64) Font {
	return Font{Family: s.FontFamily, Style: style, Size: size}
}

// =============================================================================
// Headers
// =============================================================================

func premiumHeader(p *Page, s *ThemeStyle, h headerInfo) {
	bg := s.HeaderBg
	p.add(Rect{X: 0, Y: 0, W: PageWidth, H: 35, Fill: &bg})
	p.add(Line{X1: margin, Y1: 34, X2: PageWidth - margin, Y2: 34, Color: s.Accent, Width: 1})
	if h.HasLogo {
		p.add(Image{X: margin, Y: 8, W: 30, H: 8, Ref: LogoRef})
	}
	p.add(Text{X: PageWidth - margin, Y: 15, Content: h.Title, Font: s.font("B", 10), Color: s.HeaderText, Align: AlignRight})
	p.add(Text{X: PageWidth - margin, Y: 20, Content: h.Subtitle, Font: s.font("", 8), Color: RGB{200, 200, 200}, Align: AlignRight})
}

func standardHeader(p *Page, s *ThemeStyle, h headerInfo) {
	bg := s.HeaderBg
	p.add(Rect{X: 0, Y: 0, W: PageWidth, H: 25, Fill: &bg})
	if h.HasLogo {
		p.add(Image{X: margin, Y: 8, W: 25, H: 6, Ref: LogoRef})
	}
	p.add(Text{X: PageWidth - margin, Y: 10, Content: h.Title, Font: s.font("", 8), Color: s.HeaderText, Align: AlignRight})
	p.add(Text{X: PageWidth - margin, Y: 14, Content: h.Subtitle, Font: s.font("", 8), Color: s.HeaderText, Align: AlignRight})
	p.add(Line{X1: margin, Y1: 20, X2: PageWidth - margin, Y2: 20, Color: s.Accent, Width: defaultLineWidth})
}

// =============================================================================
// Cover decoration
// =============================================================================

func premiumCoverDeco(p *Page, s *ThemeStyle, hasLogo bool) {
	accent := s.Accent
	p.add(Rect{X: 20, Y: 20, W: PageWidth - 40, H: PageHeight - 40, Stroke: &accent, LineWidth: defaultLineWidth})
	if hasLogo {
		p.add(Image{X: PageWidth/2 - 25, Y: 60, W: 50, H: 12, Ref: LogoRef})
	}
}

func standardCoverDeco(p *Page, _ *ThemeStyle, hasLogo bool) {
	if hasLogo {
		p.add(Image{X: PageWidth/2 - 25, Y: 40, W: 50, H: 12, Ref: LogoRef})
	}
}

func premiumCard(p *Page, s *ThemeStyle, x, y, w float64) {
	p.add(Line{X1: x, Y1: y, X2: x + w, Y2: y, Color: s.Accent, Width: 0.5})
}

func standardCard(p *Page, _ *ThemeStyle, x, y, w float64) {
	border := MustRGB(Palette.CardBorder)
	fill := MustRGB(Palette.White)
	p.add(Rect{X: x, Y: y, W: w, H: 80, Stroke: &border, Fill: &fill, LineWidth: defaultLineWidth, Radius: 1})
}

// =============================================================================
// Risk badges
// =============================================================================

func outlinedBadge(p *Page, x, y float64, color RGB) {
	c := color
	p.add(Rect{X: x, Y: y, W: badgeWidth, H: badgeHeight, Stroke: &c, LineWidth: defaultLineWidth})
}

func filledBadge(p *Page, x, y float64, color RGB) {
	c := color
	fill := MustRGB(Palette.White)
	p.add(Rect{X: x, Y: y, W: badgeWidth, H: badgeHeight, Stroke: &c, Fill: &fill, LineWidth: defaultLineWidth, Radius: 1})
}
