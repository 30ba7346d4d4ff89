package report

import "time"

// A4 page geometry in millimetres.
const (
	PageWidth  = 210.0
	PageHeight = 297.0
)

// LogoRef is the image reference of the company logo in Document.Assets.
const LogoRef = "asset:logo"

// Align is the horizontal alignment of a text anchor.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Font selects a core font face.
type Font struct {
	Family string  // "Helvetica" or "Times"
	Style  string  // "" or "B"
	Size   float64 // points
}

// Element is a drawable item positioned on a page.
type Element interface {
	element()
}

// Text is a single line of text anchored at its baseline.
type Text struct {
	X, Y    float64
	Content string
	Font    Font
	Color   RGB
	Align   Align
}

// Rect is a rectangle, optionally filled and rounded.
type Rect struct {
	X, Y, W, H float64
	Stroke     *RGB
	Fill       *RGB
	LineWidth  float64
	Radius     float64
}

// Line is a straight stroke.
type Line struct {
	X1, Y1, X2, Y2 float64
	Color          RGB
	Width          float64
}

// Image places a referenced image. Ref is either an asset key or an
// evidence photo reference resolved at render time.
type Image struct {
	X, Y, W, H float64
	Ref        string
}

func (Text) element()  {}
func (Rect) element()  {}
func (Line) element()  {}
func (Image) element() {}

// Page is an ordered list of elements; later elements draw on top.
type Page struct {
	Elements []Element
}

func (p *Page) add(e Element) {
	p.Elements = append(p.Elements, e)
}

// Texts returns the content of every text element in drawing order.
func (p *Page) Texts() []string {
	var out []string
	for _, e := range p.Elements {
		if t, ok := e.(Text); ok {
			out = append(out, t.Content)
		}
	}
	return out
}

// Images returns the image elements of the page.
func (p *Page) Images() []Image {
	var out []Image
	for _, e := range p.Elements {
		if img, ok := e.(Image); ok {
			out = append(out, img)
		}
	}
	return out
}

// Document is a fully laid out report.
type Document struct {
	Title     string
	Author    string
	Filename  string
	CreatedAt time.Time
	Pages     []*Page
	Assets    map[string][]byte
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

func (d *Document) addPage() *Page {
	p := &Page{}
	d.Pages = append(d.Pages, p)
	return p
}
