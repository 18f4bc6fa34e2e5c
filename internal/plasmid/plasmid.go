// Package plasmid defines the plasmid record model, the lint engine that
// annotates records with violations, and the summaries and indexes derived
// from a linted record set.
package plasmid

import (
	"fmt"
	"strings"
	"time"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
)

// RawPlasmid is a plasmid record as delivered by a source, before normalization.
type RawPlasmid struct {
	Catalog          int      `json:"catalog" yaml:"catalog"`
	ItemName         string   `json:"item_name" yaml:"item_name"`
	Name             string   `json:"name" yaml:"name"`
	Species          string   `json:"species" yaml:"species"`
	Resistances      []string `json:"resistances,omitempty" yaml:"resistances,omitempty"`
	Types            []string `json:"types,omitempty" yaml:"types,omitempty"`
	StockDate        string   `json:"stock_date" yaml:"stock_date"`
	TechnicalDetails string   `json:"technical_details,omitempty" yaml:"technical_details,omitempty"`
	Attachments      []string `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Vendor           string   `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	AltName          string   `json:"alt_name,omitempty" yaml:"alt_name,omitempty"`
	OwnerID          string   `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
}

// Plasmid is a normalized inventory record.
//
// The violation list is append-only and written exclusively by Linter.Lint.
type Plasmid struct {
	Catalog     int
	Slug        string
	ItemName    string
	Name        string
	Species     string
	Resistances []string
	Types       []string
	StockDate   time.Time
	Details     []string
	Attachments []string
	Vendor      string
	AltName     string
	OwnerID     string

	raw        RawPlasmid
	violations []Violation
}

// Accepted stock date layouts, tried in order.
var stockDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.999999999Z",
	"1/2/2006",
}

// MalformedDateError reports a stock date that matches none of the accepted layouts.
type MalformedDateError struct {
	Raw string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("can't process stock date %q", e.Raw)
}

func (e *MalformedDateError) Unwrap() error { return apperr.ErrMalformedDate }

// ParseStockDate normalizes a raw stock date to a calendar date at UTC midnight.
func ParseStockDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range stockDateLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, &MalformedDateError{Raw: raw}
}

// NewPlasmid normalizes a raw record. Slug is left as the canonical
// catalog slug; Build disambiguates duplicates.
func NewPlasmid(raw RawPlasmid) (*Plasmid, error) {
	date, err := ParseStockDate(raw.StockDate)
	if err != nil {
		return nil, err
	}
	return &Plasmid{
		Catalog:     raw.Catalog,
		Slug:        CatalogSlug(raw.Catalog),
		ItemName:    raw.ItemName,
		Name:        raw.Name,
		Species:     raw.Species,
		Resistances: orEmpty(raw.Resistances),
		Types:       orEmpty(raw.Types),
		StockDate:   date,
		Details:     splitDetails(raw.TechnicalDetails),
		Attachments: orEmpty(raw.Attachments),
		Vendor:      strings.TrimSpace(raw.Vendor),
		AltName:     raw.AltName,
		OwnerID:     raw.OwnerID,
		raw:         raw,
	}, nil
}

// Build normalizes every raw record and assigns each a unique slug. The
// first record holding a catalog key gets pKG<n>; later duplicates get
// pKG<n>-2, pKG<n>-3 and so on, in input order. A single malformed record
// aborts the whole build.
func Build(raws []RawPlasmid) ([]*Plasmid, error) {
	out := make([]*Plasmid, 0, len(raws))
	seen := make(map[int]int, len(raws))
	for i, raw := range raws {
		p, err := NewPlasmid(raw)
		if err != nil {
			return nil, fmt.Errorf("plasmid: record %d (pKG%d): %w", i, raw.Catalog, err)
		}
		seen[p.Catalog]++
		if n := seen[p.Catalog]; n > 1 {
			p.Slug = fmt.Sprintf("%s-%d", p.Slug, n)
		}
		out = append(out, p)
	}
	return out, nil
}

// CatalogSlug is the canonical identifier for a catalog key.
func CatalogSlug(catalog int) string {
	return fmt.Sprintf("pKG%d", catalog)
}

// Raw returns the record the plasmid was built from.
func (p *Plasmid) Raw() RawPlasmid { return p.raw }

// Violations returns every violation in the order the linter recorded them.
func (p *Plasmid) Violations() []Violation {
	out := make([]Violation, len(p.violations))
	copy(out, p.violations)
	return out
}

// Errors returns error-severity violations in recorded order.
func (p *Plasmid) Errors() []Violation { return p.bySeverity(SeverityError) }

// Warnings returns warning-severity violations in recorded order.
func (p *Plasmid) Warnings() []Violation { return p.bySeverity(SeverityWarning) }

// HasErrors reports whether any error was recorded.
func (p *Plasmid) HasErrors() bool { return p.has(SeverityError) }

// HasWarnings reports whether any warning was recorded.
func (p *Plasmid) HasWarnings() bool { return p.has(SeverityWarning) }

func (p *Plasmid) bySeverity(sev Severity) []Violation {
	out := []Violation{}
	for _, v := range p.violations {
		if v.Severity == sev {
			out = append(out, v)
		}
	}
	return out
}

func (p *Plasmid) has(sev Severity) bool {
	for _, v := range p.violations {
		if v.Severity == sev {
			return true
		}
	}
	return false
}

// HasDetail reports whether a technical-detail tag equals tag, ignoring case.
func (p *Plasmid) HasDetail(tag string) bool {
	for _, d := range p.Details {
		if strings.EqualFold(d, tag) {
			return true
		}
	}
	return false
}

func splitDetails(raw string) []string {
	out := []string{}
	for _, part := range strings.Split(raw, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
