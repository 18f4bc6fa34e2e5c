package plasmid

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var altPrefixRe = regexp.MustCompile(`^(p[A-Za-z]+)`)

// InferAltAuthority returns the naming authority of an alternate name: the
// vendor when one is set, otherwise a p-prefixed run of letters at the start
// of altName (pcDNA3.1 -> pcDNA). Records matching neither are not indexed.
func InferAltAuthority(vendor, altName string) (string, bool) {
	if vendor != "" {
		return vendor, true
	}
	m := altPrefixRe.FindStringSubmatch(altName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AltGroup is a set of plasmids sharing an alternate naming authority.
type AltGroup struct {
	Key     string
	Title   string
	Members []*Plasmid
	Summary Summary
}

var unsafePageRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PageName is the document name the group is rendered under. Characters
// that are unsafe in a file name or toctree entry collapse to '_'; the raw
// key stays in Title.
func (g AltGroup) PageName() string {
	name := strings.Trim(unsafePageRe.ReplaceAllString(g.Key, "_"), "_.")
	if name == "" {
		name = "unnamed"
	}
	return "by_" + name
}

// GroupByAltAuthority indexes plasmids by alternate naming authority.
// Groups with a single member are dropped. Groups are ordered by size,
// largest first, with ties broken by key; members are ordered by alternate
// name.
func GroupByAltAuthority(plasmids []*Plasmid) []AltGroup {
	buckets := make(map[string][]*Plasmid)
	for _, p := range plasmids {
		key, ok := InferAltAuthority(p.Vendor, p.AltName)
		if !ok {
			continue
		}
		buckets[key] = append(buckets[key], p)
	}

	groups := make([]AltGroup, 0, len(buckets))
	for key, members := range buckets {
		if len(members) < 2 {
			continue
		}
		slices.SortStableFunc(members, func(a, b *Plasmid) int {
			return cmp.Or(cmp.Compare(a.AltName, b.AltName), cmp.Compare(a.Slug, b.Slug))
		})
		groups = append(groups, AltGroup{
			Key:     key,
			Title:   fmt.Sprintf("By %s (%d plasmids)", key, len(members)),
			Members: members,
			Summary: Summarize(members),
		})
	}

	slices.SortFunc(groups, func(a, b AltGroup) int {
		return cmp.Or(cmp.Compare(len(b.Members), len(a.Members)), cmp.Compare(a.Key, b.Key))
	})
	return groups
}
