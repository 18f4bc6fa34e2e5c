package plasmid

// Severity classifies a violation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Violation categories. They are stable and used as grouping keys.
const (
	CategoryInconsistentCatalog  = "Inconsistent catalog numbers"
	CategorySuspiciousVendor     = "Suspicious vendor catalog number"
	CategoryEmptyName            = "Empty plasmid name"
	CategoryMissingMap           = "Missing plasmid map"
	CategoryDeprecatedResistance = "Deprecated antibiotic resistance"
)

// Violation is a lint finding attached to a plasmid.
type Violation struct {
	Severity Severity `json:"severity"`
	Category string   `json:"category"`
	Message  string   `json:"message"`
}

func newError(category, message string) Violation {
	return Violation{Severity: SeverityError, Category: category, Message: message}
}

func newWarning(category, message string) Violation {
	return Violation{Severity: SeverityWarning, Category: category, Message: message}
}
