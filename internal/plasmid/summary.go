package plasmid

// Ref identifies a plasmid within a summary.
type Ref struct {
	Slug    string `json:"slug"`
	Catalog int    `json:"catalog"`
}

// CategoryRefs lists the plasmids exhibiting one violation category.
type CategoryRefs struct {
	Category string `json:"category"`
	Refs     []Ref  `json:"refs"`
}

// Summary aggregates the violations of a plasmid collection.
type Summary struct {
	// ErrorRecords is the number of distinct plasmids with at least one error.
	ErrorRecords int `json:"error_records"`
	// WarningRecords is the number of distinct plasmids with at least one warning.
	WarningRecords int            `json:"warning_records"`
	Errors         []CategoryRefs `json:"errors"`
	Warnings       []CategoryRefs `json:"warnings"`
}

// Summarize groups the violations of plasmids by category. Categories keep
// the order in which they are first met; a plasmid appears once per category
// no matter how many times it was flagged. It works on any subset.
func Summarize(plasmids []*Plasmid) Summary {
	errs := newCategoryAccumulator()
	warns := newCategoryAccumulator()
	for _, p := range plasmids {
		for _, v := range p.violations {
			switch v.Severity {
			case SeverityError:
				errs.add(v.Category, p)
			case SeverityWarning:
				warns.add(v.Category, p)
			}
		}
	}
	return Summary{
		ErrorRecords:   len(errs.records),
		WarningRecords: len(warns.records),
		Errors:         errs.out,
		Warnings:       warns.out,
	}
}

// Categories returns the error then warning categories in summary order.
func (s Summary) Categories() []string {
	out := make([]string, 0, len(s.Errors)+len(s.Warnings))
	for _, c := range s.Errors {
		out = append(out, c.Category)
	}
	for _, c := range s.Warnings {
		out = append(out, c.Category)
	}
	return out
}

type categoryAccumulator struct {
	out     []CategoryRefs
	pos     map[string]int
	seen    map[string]map[string]struct{}
	records map[string]struct{}
}

func newCategoryAccumulator() *categoryAccumulator {
	return &categoryAccumulator{
		out:     []CategoryRefs{},
		pos:     make(map[string]int),
		seen:    make(map[string]map[string]struct{}),
		records: make(map[string]struct{}),
	}
}

func (a *categoryAccumulator) add(category string, p *Plasmid) {
	a.records[p.Slug] = struct{}{}
	i, ok := a.pos[category]
	if !ok {
		i = len(a.out)
		a.pos[category] = i
		a.out = append(a.out, CategoryRefs{Category: category, Refs: []Ref{}})
		a.seen[category] = make(map[string]struct{})
	}
	if _, dup := a.seen[category][p.Slug]; dup {
		return
	}
	a.seen[category][p.Slug] = struct{}{}
	a.out[i].Refs = append(a.out[i].Refs, Ref{Slug: p.Slug, Catalog: p.Catalog})
}
