// Package report prints per-owner lint tables for the userlint command.
package report

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// Show selects which sections are printed.
type Show int

const (
	ShowBoth Show = iota
	ShowErrors
	ShowWarnings
)

// Options configures a report.
type Options struct {
	Show Show
	// Owners restricts the report to these display names; empty means all.
	Owners []string
}

// Write prints a warnings table then an errors table, each listing the
// flagged plasmids of every owner. Owners with nothing to report in a
// section are left out of it; an empty section prints a short notice.
func Write(w io.Writer, groups []plasmid.OwnerGroup, opts Options) {
	groups = plasmid.FilterOwners(groups, opts.Owners)
	if opts.Show != ShowErrors {
		section(w, "Warnings", plasmid.SeverityWarning, groups, func(g plasmid.OwnerGroup) []*plasmid.Plasmid { return g.Warnings })
	}
	if opts.Show != ShowWarnings {
		section(w, "Errors", plasmid.SeverityError, groups, func(g plasmid.OwnerGroup) []*plasmid.Plasmid { return g.Errors })
	}
}

func section(w io.Writer, title string, sev plasmid.Severity, groups []plasmid.OwnerGroup, pick func(plasmid.OwnerGroup) []*plasmid.Plasmid) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Owner", "Plasmid", "Name", "Categories"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})

	rows := 0
	for _, g := range groups {
		for _, p := range pick(g) {
			t.AppendRow(table.Row{g.Name, p.Slug, p.Name, strings.Join(categories(p, sev), ", ")})
			rows++
		}
	}
	if rows == 0 {
		fmt.Fprintf(w, "%s: none\n", title)
		return
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Fprintln(w)
}

// categories lists the distinct categories of p at sev in first-seen order.
func categories(p *plasmid.Plasmid, sev plasmid.Severity) []string {
	var out []string
	for _, v := range p.Violations() {
		if v.Severity == sev && !slices.Contains(out, v.Category) {
			out = append(out, v.Category)
		}
	}
	return out
}
