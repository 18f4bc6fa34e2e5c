package api

import (
	"time"

	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// PlasmidDTO is a plasmid as returned by the API.
type PlasmidDTO struct {
	Slug        string              `json:"slug" example:"pKG12" validate:"required"`
	Catalog     int                 `json:"catalog" example:"12" validate:"required"`
	ItemName    string              `json:"item_name" example:"pKG12"`
	Name        string              `json:"name" example:"pcDNA3-GFP"`
	Species     string              `json:"species,omitempty" example:"E. coli"`
	Resistances []string            `json:"resistances"`
	Types       []string            `json:"types"`
	StockDate   string              `json:"stock_date" example:"2021-03-04"`
	Details     []string            `json:"details"`
	Attachments []string            `json:"attachments"`
	Vendor      string              `json:"vendor,omitempty" example:"Addgene"`
	AltName     string              `json:"alt_name,omitempty" example:"13031"`
	OwnerID     string              `json:"owner_id,omitempty"`
	Errors      []plasmid.Violation `json:"errors"`
	Warnings    []plasmid.Violation `json:"warnings"`
}

func toPlasmidDTO(p *plasmid.Plasmid) PlasmidDTO {
	return PlasmidDTO{
		Slug:        p.Slug,
		Catalog:     p.Catalog,
		ItemName:    p.ItemName,
		Name:        p.Name,
		Species:     p.Species,
		Resistances: nonNil(p.Resistances),
		Types:       nonNil(p.Types),
		StockDate:   p.StockDate.Format(time.DateOnly),
		Details:     nonNil(p.Details),
		Attachments: nonNil(p.Attachments),
		Vendor:      p.Vendor,
		AltName:     p.AltName,
		OwnerID:     p.OwnerID,
		Errors:      nonNil(p.Errors()),
		Warnings:    nonNil(p.Warnings()),
	}
}

func toPlasmidDTOs(ps []*plasmid.Plasmid) []PlasmidDTO {
	out := make([]PlasmidDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toPlasmidDTO(p))
	}
	return out
}

func refs(ps []*plasmid.Plasmid) []plasmid.Ref {
	out := make([]plasmid.Ref, 0, len(ps))
	for _, p := range ps {
		out = append(out, plasmid.Ref{Slug: p.Slug, Catalog: p.Catalog})
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// PlasmidListResponse wraps plasmid listings.
type PlasmidListResponse struct {
	Plasmids []PlasmidDTO `json:"plasmids" validate:"required"`
	Total    int          `json:"total" example:"42" validate:"required"`
}

// SummaryResponse is the lint summary of the current build.
type SummaryResponse struct {
	BuiltAt  time.Time       `json:"built_at" validate:"required"`
	Plasmids int             `json:"plasmids" example:"42" validate:"required"`
	Summary  plasmid.Summary `json:"summary" validate:"required"`
}

// AltGroupDTO is an alternate-name group.
type AltGroupDTO struct {
	Key     string          `json:"key" example:"addgene" validate:"required"`
	Title   string          `json:"title" example:"Addgene" validate:"required"`
	Page    string          `json:"page" example:"by_addgene"`
	Members []plasmid.Ref   `json:"members" validate:"required"`
	Summary plasmid.Summary `json:"summary"`
}

// AltGroupListResponse wraps alternate-name groups.
type AltGroupListResponse struct {
	Groups []AltGroupDTO `json:"groups" validate:"required"`
}

// OwnerDTO is an owner group with its flagged plasmids.
type OwnerDTO struct {
	Name     string         `json:"name" example:"Ada Lovelace" validate:"required"`
	Users    []plasmid.User `json:"users"`
	Plasmids []plasmid.Ref  `json:"plasmids"`
	Errors   []plasmid.Ref  `json:"errors"`
	Warnings []plasmid.Ref  `json:"warnings"`
}

// OwnerListResponse wraps owner groups.
type OwnerListResponse struct {
	Owners []OwnerDTO `json:"owners" validate:"required"`
}

// ReloadResponse is returned after a rebuild.
type ReloadResponse struct {
	BuiltAt        time.Time `json:"built_at" validate:"required"`
	Plasmids       int       `json:"plasmids" example:"42"`
	ErrorRecords   int       `json:"error_records" example:"3"`
	WarningRecords int       `json:"warning_records" example:"7"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Slug    string `json:"slug" example:"pKG12" validate:"required"`
	Name    string `json:"name" example:"pcDNA3-GFP" validate:"required"`
	Snippet string `json:"snippet" example:"...<b>GFP</b>..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// ViolationDTO is a stored violation.
type ViolationDTO struct {
	Slug     string           `json:"slug" example:"pKG12" validate:"required"`
	Catalog  int              `json:"catalog" example:"12"`
	Severity plasmid.Severity `json:"severity" example:"error"`
	Category string           `json:"category"`
	Message  string           `json:"message"`
}

// ViolationListResponse wraps stored violations.
type ViolationListResponse struct {
	Violations []ViolationDTO `json:"violations" validate:"required"`
}

// BuildDTO is a recorded build.
type BuildDTO struct {
	ID             int64     `json:"id" example:"7"`
	BuiltAt        time.Time `json:"built_at"`
	Plasmids       int       `json:"plasmids" example:"42"`
	ErrorRecords   int       `json:"error_records" example:"3"`
	WarningRecords int       `json:"warning_records" example:"7"`
}

func toBuildDTO(b *index.BuildRow) BuildDTO {
	return BuildDTO{
		ID:             b.ID,
		BuiltAt:        b.BuiltAt,
		Plasmids:       b.Plasmids,
		ErrorRecords:   b.ErrorRecords,
		WarningRecords: b.WarningRecords,
	}
}
