package plasmid

// LintOptions configures the built-in rule set.
type LintOptions struct {
	// Vendor is the vendor whose alternate names must be numeric catalog numbers.
	Vendor string
	// MapOptOut is the technical-detail tag that excuses a missing plasmid map.
	MapOptOut string
	// DeprecatedResistances lists resistance tags that should no longer be used.
	DeprecatedResistances []string
}

// DefaultLintOptions returns the lab's standing lint settings.
func DefaultLintOptions() LintOptions {
	return LintOptions{
		Vendor:    "Addgene",
		MapOptOut: "no map",
		DeprecatedResistances: []string{
			"Amp/Carb",
			"Kan/Neo",
			"Amp+Kan",
			"Chlor",
			"Carb",
		},
	}
}

// Linter applies an ordered rule set to plasmids.
type Linter struct {
	rules []Rule
}

// NewLinter constructs an empty linter.
func NewLinter() *Linter {
	return &Linter{}
}

// NewDefaultLinter builds a linter with the built-in rules in their fixed order.
func NewDefaultLinter(opts LintOptions) *Linter {
	l := NewLinter()
	l.Register(NewCatalogConsistencyRule())
	l.Register(NewVendorCatalogRule(opts.Vendor))
	l.Register(NewEmptyNameRule())
	l.Register(NewMissingMapRule(opts.MapOptOut))
	l.Register(NewDeprecatedResistanceRule(opts.DeprecatedResistances))
	return l
}

// Register appends a rule; rules run in registration order.
func (l *Linter) Register(rule Rule) {
	l.rules = append(l.rules, rule)
}

// Rules returns the registered rules in run order.
func (l *Linter) Rules() []Rule {
	out := make([]Rule, len(l.rules))
	copy(out, l.rules)
	return out
}

// Lint runs every rule against every plasmid and appends the findings to
// each plasmid. Earlier findings are never cleared, so linting the same
// plasmids twice records every violation twice.
//
// Each plasmid is touched only through its own receiver; callers that split
// the set across goroutines must hand each plasmid to exactly one of them.
func (l *Linter) Lint(plasmids []*Plasmid) {
	for _, p := range plasmids {
		for _, rule := range l.rules {
			if v, ok := rule.Check(p); ok {
				p.violations = append(p.violations, v)
			}
		}
	}
}
