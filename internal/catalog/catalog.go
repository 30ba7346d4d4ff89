// Package catalog provides the immutable reference data of inspectable
// points of interest (POIs) and their candidate recommendations.
//
// The catalog is loaded once at process start and shared by pointer with
// every component that needs titles or recommendation text. Nothing mutates
// it after Load returns.
package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"github.com/DukeRupert/vistoria/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed pois.yaml
var defaultCatalog []byte

// Recommendation is a candidate remediation for a POI.
type Recommendation struct {
	ID   string `yaml:"id" json:"id"`
	Text string `yaml:"text" json:"text"`
}

// PointOfInterest is a catalogued inspectable item.
type PointOfInterest struct {
	ID              string           `yaml:"id" json:"id"`
	Title           string           `yaml:"title" json:"title"`
	Recommendations []Recommendation `yaml:"recommendations" json:"recommendations"`
}

// Catalog is the ordered, read-only set of POIs.
type Catalog struct {
	points []PointOfInterest
	index  map[string]int
	recs   map[string]map[string]int
}

type document struct {
	Points []PointOfInterest `yaml:"points"`
}

// Load parses a YAML catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(doc.Points)
}

// New builds a catalog from an ordered list of POIs.
func New(points []PointOfInterest) (*Catalog, error) {
	c := &Catalog{
		points: make([]PointOfInterest, len(points)),
		index:  make(map[string]int, len(points)),
		recs:   make(map[string]map[string]int, len(points)),
	}
	for i, p := range points {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog entry %d: missing id", i)
		}
		if p.Title == "" {
			return nil, fmt.Errorf("catalog entry %q: missing title", p.ID)
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("catalog entry %q: duplicate id", p.ID)
		}
		recIdx := make(map[string]int, len(p.Recommendations))
		for j, r := range p.Recommendations {
			if _, dup := recIdx[r.ID]; dup {
				return nil, fmt.Errorf("catalog entry %q: duplicate recommendation %q", p.ID, r.ID)
			}
			recIdx[r.ID] = j
		}
		p.Recommendations = append([]Recommendation(nil), p.Recommendations...)
		c.points[i] = p
		c.index[p.ID] = i
		c.recs[p.ID] = recIdx
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load(bytes.NewReader(defaultCatalog))
	})
	return defaultCat, defaultErr
}

// Len returns the number of POIs.
func (c *Catalog) Len() int {
	return len(c.points)
}

// All returns the POIs in catalog order. The slice is a copy.
func (c *Catalog) All() []PointOfInterest {
	return append([]PointOfInterest(nil), c.points...)
}

// IDs returns the POI ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.points))
	for i, p := range c.points {
		ids[i] = p.ID
	}
	return ids
}

// Lookup returns the POI with the given id.
func (c *Catalog) Lookup(poiID string) (PointOfInterest, bool) {
	i, ok := c.index[poiID]
	if !ok {
		return PointOfInterest{}, false
	}
	return c.points[i], true
}

// Position returns the catalog position of a POI, or -1.
func (c *Catalog) Position(poiID string) int {
	if i, ok := c.index[poiID]; ok {
		return i
	}
	return -1
}

// Recommendation returns a recommendation of a POI.
func (c *Catalog) Recommendation(poiID, recID string) (Recommendation, bool) {
	i, ok := c.index[poiID]
	if !ok {
		return Recommendation{}, false
	}
	j, ok := c.recs[poiID][recID]
	if !ok {
		return Recommendation{}, false
	}
	return c.points[i].Recommendations[j], true
}

// ValidateSelection checks that every id belongs to the POI's recommendations.
func (c *Catalog) ValidateSelection(poiID string, ids []string) error {
	const op = "catalog.validate_selection"

	recIdx, ok := c.recs[poiID]
	if !ok {
		return domain.CatalogMiss(op, poiID)
	}
	for _, id := range ids {
		if _, ok := recIdx[id]; !ok {
			return domain.Errorf(domain.EINVALID, op, "recommendation %q does not belong to point of interest %q", id, poiID)
		}
	}
	return nil
}

// RecommendationTexts resolves the selected ids to their texts in selection
// order. Unknown ids are skipped.
func (c *Catalog) RecommendationTexts(poiID string, ids []string) []string {
	texts := make([]string, 0, len(ids))
	for _, id := range ids {
		if r, ok := c.Recommendation(poiID, id); ok {
			texts = append(texts, r.Text)
		}
	}
	return texts
}
