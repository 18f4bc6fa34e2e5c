package plasmid

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
)

// OwnerGroup collects the plasmids resolved to one owner display name.
type OwnerGroup struct {
	Name     string
	Users    []User
	Plasmids []*Plasmid
	Errors   []*Plasmid
	Warnings []*Plasmid
}

// GroupByOwner buckets plasmids by the display name of their owner. Owner
// ids that do not resolve against users fall back to defaultOwnerID, which
// must itself be one of users. Groups are ordered by name.
func GroupByOwner(plasmids []*Plasmid, users []User, defaultOwnerID string) ([]OwnerGroup, error) {
	byID := make(map[string]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	fallback, ok := byID[defaultOwnerID]
	if !ok {
		return nil, fmt.Errorf("plasmid: owner id %q: %w", defaultOwnerID, apperr.ErrMissingDefaultOwner)
	}

	idx := make(map[string]int)
	var groups []OwnerGroup
	for _, p := range plasmids {
		owner, ok := byID[p.OwnerID]
		if !ok {
			owner = fallback
		}
		i, ok := idx[owner.FullName]
		if !ok {
			i = len(groups)
			idx[owner.FullName] = i
			groups = append(groups, OwnerGroup{Name: owner.FullName})
		}
		g := &groups[i]
		if !slices.ContainsFunc(g.Users, func(u User) bool { return u.ID == owner.ID }) {
			g.Users = append(g.Users, owner)
		}
		g.Plasmids = append(g.Plasmids, p)
		if p.HasErrors() {
			g.Errors = append(g.Errors, p)
		}
		if p.HasWarnings() {
			g.Warnings = append(g.Warnings, p)
		}
	}

	slices.SortFunc(groups, func(a, b OwnerGroup) int { return cmp.Compare(a.Name, b.Name) })
	return groups, nil
}

// FilterOwners keeps the groups whose display name is in names. An empty
// names list keeps every group.
func FilterOwners(groups []OwnerGroup, names []string) []OwnerGroup {
	if len(names) == 0 {
		return groups
	}
	out := make([]OwnerGroup, 0, len(names))
	for _, g := range groups {
		if slices.Contains(names, g.Name) {
			out = append(out, g)
		}
	}
	return out
}
