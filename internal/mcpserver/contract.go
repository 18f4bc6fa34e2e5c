package mcpserver

import (
	"fmt"
	"strings"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// LintRulesDoc describes the active lint rules in Markdown so that LLM
// consumers can explain findings and propose fixes.
func LintRulesDoc(opts plasmid.LintOptions) string {
	var b strings.Builder
	b.WriteString("# Plasmid Lint Rules\n\n")
	b.WriteString("Every record is checked by the rules below, in this order. ")
	b.WriteString("Errors must be fixed in the inventory; warnings should be.\n\n")
	b.WriteString("| Rule | Severity | Category | Triggered when |\n")
	b.WriteString("|------|----------|----------|----------------|\n")

	rows := [][4]string{
		{"catalog_consistency", "error", plasmid.CategoryInconsistentCatalog,
			"the item name has the form `pKG<n>` and `<n>` differs from the catalog number"},
		{"vendor_catalog", "error", plasmid.CategorySuspiciousVendor,
			fmt.Sprintf("the vendor is `%s` and the alternate name is not a plain number", opts.Vendor)},
		{"empty_name", "warning", plasmid.CategoryEmptyName,
			"the plasmid name is empty"},
		{"missing_map", "warning", plasmid.CategoryMissingMap,
			fmt.Sprintf("there are no attachments and no technical detail tag equals `%s`", opts.MapOptOut)},
		{"deprecated_resistance", "warning", plasmid.CategoryDeprecatedResistance,
			"a resistance marker is one of: " + codeList(opts.DeprecatedResistances)},
	}
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r[0], r[1], r[2], r[3])
	}

	b.WriteString(`
## Conventions

- Records are keyed by catalog number; the slug of catalog 12 is ` + "`pKG12`" + `.
- Technical details are ` + "`;`" + `-separated tags, matched case-insensitively.
- Records whose owner is unknown are reported under the lab default owner.
- Stock dates are ` + "`YYYY-MM-DD`" + `, an ISO timestamp, or ` + "`M/D/YYYY`" + `.
`)
	return b.String()
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "(none configured)"
	}
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "`" + s + "`"
	}
	return strings.Join(quoted, ", ")
}
