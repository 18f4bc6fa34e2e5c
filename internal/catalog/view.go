package catalog

import (
	"fmt"
	"time"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// View is one fully linted and indexed build. It is never modified after
// it is published.
type View struct {
	BuiltAt   time.Time
	Users     []plasmid.User
	Plasmids  []*plasmid.Plasmid
	Summary   plasmid.Summary
	AltGroups []plasmid.AltGroup
	Owners    []plasmid.OwnerGroup

	bySlug map[string]*plasmid.Plasmid
}

// Assemble builds a View from raw records: normalize, lint the whole set,
// then derive the summary and both indexes. Any malformed record or a
// missing default owner fails the whole build.
func Assemble(rawUsers []plasmid.RawUser, raws []plasmid.RawPlasmid, linter *plasmid.Linter, defaultOwnerID string, builtAt time.Time) (*View, error) {
	users, err := plasmid.BuildUsers(rawUsers)
	if err != nil {
		return nil, err
	}
	plasmids, err := plasmid.Build(raws)
	if err != nil {
		return nil, err
	}

	linter.Lint(plasmids)

	owners, err := plasmid.GroupByOwner(plasmids, users, defaultOwnerID)
	if err != nil {
		return nil, err
	}
	v := &View{
		BuiltAt:   builtAt,
		Users:     users,
		Plasmids:  plasmids,
		Summary:   plasmid.Summarize(plasmids),
		AltGroups: plasmid.GroupByAltAuthority(plasmids),
		Owners:    owners,
		bySlug:    make(map[string]*plasmid.Plasmid, len(plasmids)),
	}
	for _, p := range plasmids {
		v.bySlug[p.Slug] = p
	}
	return v, nil
}

// Plasmid looks a record up by slug.
func (v *View) Plasmid(slug string) (*plasmid.Plasmid, error) {
	p, ok := v.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("plasmid %s: %w", slug, apperr.ErrNotFound)
	}
	return p, nil
}

// Owner returns the owner group with the given display name.
func (v *View) Owner(name string) (*plasmid.OwnerGroup, error) {
	for i := range v.Owners {
		if v.Owners[i].Name == name {
			return &v.Owners[i], nil
		}
	}
	return nil, fmt.Errorf("owner %q: %w", name, apperr.ErrNotFound)
}

// AltGroup returns the alternate-name group with the given key.
func (v *View) AltGroup(key string) (*plasmid.AltGroup, error) {
	for i := range v.AltGroups {
		if v.AltGroups[i].Key == key {
			return &v.AltGroups[i], nil
		}
	}
	return nil, fmt.Errorf("alt group %q: %w", key, apperr.ErrNotFound)
}

// Filter selects plasmids from a view.
type Filter struct {
	// Owner is an owner display name.
	Owner    string
	Category string
	Severity plasmid.Severity
}

// Select returns the plasmids matching every non-empty field of f, in
// record order.
func (v *View) Select(f Filter) []*plasmid.Plasmid {
	pool := v.Plasmids
	if f.Owner != "" {
		g, err := v.Owner(f.Owner)
		if err != nil {
			return []*plasmid.Plasmid{}
		}
		pool = g.Plasmids
	}
	out := make([]*plasmid.Plasmid, 0, len(pool))
	for _, p := range pool {
		if matches(p, f) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p *plasmid.Plasmid, f Filter) bool {
	if f.Category == "" && f.Severity == "" {
		return true
	}
	for _, viol := range p.Violations() {
		if f.Category != "" && viol.Category != f.Category {
			continue
		}
		if f.Severity != "" && viol.Severity != f.Severity {
			continue
		}
		return true
	}
	return false
}
