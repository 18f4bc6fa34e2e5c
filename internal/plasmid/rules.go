package plasmid

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Rule inspects one plasmid and reports at most one violation.
type Rule interface {
	Name() string
	Check(p *Plasmid) (Violation, bool)
}

var (
	itemNameCatalogRe = regexp.MustCompile(`^pKG(\d+)$`)
	numericRe         = regexp.MustCompile(`^\d+$`)
)

// NewCatalogConsistencyRule flags item names of the form pKG<n> whose number
// disagrees with the catalog key.
func NewCatalogConsistencyRule() Rule { return catalogConsistencyRule{} }

type catalogConsistencyRule struct{}

func (catalogConsistencyRule) Name() string { return "catalog_consistency" }

func (catalogConsistencyRule) Check(p *Plasmid) (Violation, bool) {
	m := itemNameCatalogRe.FindStringSubmatch(p.ItemName)
	if m == nil {
		return Violation{}, false
	}
	// Digits too large for an int cannot equal the catalog key.
	digits := m[1]
	if n, err := strconv.Atoi(digits); err == nil {
		if n == p.Catalog {
			return Violation{}, false
		}
		digits = strconv.Itoa(n)
	}
	return newError(CategoryInconsistentCatalog, fmt.Sprintf(
		"Item %s has inconsistent pKG numbering. Item name: pKG%s, metadata pKG: pKG%d",
		p.Name, digits, p.Catalog)), true
}

// NewVendorCatalogRule flags records from vendor whose alternate name is not
// a plain vendor catalog number.
func NewVendorCatalogRule(vendor string) Rule { return vendorCatalogRule{vendor: vendor} }

type vendorCatalogRule struct {
	vendor string
}

func (vendorCatalogRule) Name() string { return "vendor_catalog" }

func (r vendorCatalogRule) Check(p *Plasmid) (Violation, bool) {
	if r.vendor == "" || p.Vendor != r.vendor || numericRe.MatchString(p.AltName) {
		return Violation{}, false
	}
	return newError(CategorySuspiciousVendor, fmt.Sprintf(
		"Item %s (%s) lists %s as vendor but its catalog number %q is not numeric",
		p.Name, p.Slug, r.vendor, p.AltName)), true
}

// NewEmptyNameRule flags records without a display name.
func NewEmptyNameRule() Rule { return emptyNameRule{} }

type emptyNameRule struct{}

func (emptyNameRule) Name() string { return "empty_name" }

func (emptyNameRule) Check(p *Plasmid) (Violation, bool) {
	if strings.TrimSpace(p.Name) != "" {
		return Violation{}, false
	}
	return newWarning(CategoryEmptyName, fmt.Sprintf(
		"Item %s (item name %q) has an empty plasmid name", p.Slug, p.ItemName)), true
}

// NewMissingMapRule flags records with no attachments unless a technical
// detail tag equal to optOut says the map is intentionally absent.
func NewMissingMapRule(optOut string) Rule { return missingMapRule{optOut: optOut} }

type missingMapRule struct {
	optOut string
}

func (missingMapRule) Name() string { return "missing_map" }

func (r missingMapRule) Check(p *Plasmid) (Violation, bool) {
	if len(p.Attachments) > 0 {
		return Violation{}, false
	}
	if r.optOut != "" && p.HasDetail(r.optOut) {
		return Violation{}, false
	}
	return newWarning(CategoryMissingMap, fmt.Sprintf(
		"Item %s (%s) has no plasmid map attached", p.Name, p.Slug)), true
}

// NewDeprecatedResistanceRule flags resistance tags found in denied.
func NewDeprecatedResistanceRule(denied []string) Rule {
	return deprecatedResistanceRule{denied: slices.Clone(denied)}
}

type deprecatedResistanceRule struct {
	denied []string
}

func (deprecatedResistanceRule) Name() string { return "deprecated_resistance" }

func (r deprecatedResistanceRule) Check(p *Plasmid) (Violation, bool) {
	var bad []string
	for _, res := range p.Resistances {
		if slices.Contains(r.denied, strings.TrimSpace(res)) {
			bad = append(bad, res)
		}
	}
	if len(bad) == 0 {
		return Violation{}, false
	}
	return newWarning(CategoryDeprecatedResistance, fmt.Sprintf(
		"Item %s (%s) uses deprecated resistance marker(s): %s",
		p.Name, p.Slug, strings.Join(bad, ", "))), true
}
