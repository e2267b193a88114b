package composition

import "fmt"

// IssueKind classifies a validation issue.
type IssueKind string

const (
	UnresolvedRequiredVariable IssueKind = "unresolved_required_variable"
	UnresolvedOptionalVariable IssueKind = "unresolved_optional_variable"
	UnusedDeclaredVariable     IssueKind = "unused_declared_variable"
)

// Severity ranks an issue for presentation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

var severities = map[IssueKind]Severity{
	UnresolvedRequiredVariable: SeverityError,
	UnresolvedOptionalVariable: SeverityInfo,
	UnusedDeclaredVariable:     SeverityWarning,
}

// Issue is a non-fatal finding about a resolution.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Name     string    `json:"name"`
	ModuleID string    `json:"module_id,omitempty"`
}

func newIssue(kind IssueKind, name, moduleID string) Issue {
	return Issue{
		Kind:     kind,
		Severity: severities[kind],
		Name:     name,
		ModuleID: moduleID,
	}
}

func (i Issue) String() string {
	switch i.Kind {
	case UnresolvedRequiredVariable:
		return fmt.Sprintf("required variable %q is not bound", i.Name)
	case UnresolvedOptionalVariable:
		return fmt.Sprintf("variable %q is not bound", i.Name)
	case UnusedDeclaredVariable:
		return fmt.Sprintf("module %q declares %q but never references it", i.ModuleID, i.Name)
	}
	return string(i.Kind)
}

// Validate reports unresolved variables and unused declared variables.
// It reads only the exported fields of result, so a Result decoded from JSON
// validates the same as one fresh from Resolve. Unresolved issues follow
// result.Unresolved order; unused-declared issues follow result.Unused. It
// never fails and returns an empty slice for a clean resolution.
func Validate(result Result, required []string) []Issue {
	issues := make([]Issue, 0)

	requiredSet := make(map[string]struct{}, len(required))
	for _, name := range required {
		requiredSet[name] = struct{}{}
	}

	for _, name := range result.Unresolved {
		if _, ok := requiredSet[name]; ok {
			issues = append(issues, newIssue(UnresolvedRequiredVariable, name, ""))
		} else {
			issues = append(issues, newIssue(UnresolvedOptionalVariable, name, ""))
		}
	}

	for _, u := range result.Unused {
		for _, name := range u.Names {
			issues = append(issues, newIssue(UnusedDeclaredVariable, name, u.ModuleID))
		}
	}

	return issues
}

// HasBlocking reports whether any issue is an unresolved required variable.
func HasBlocking(issues []Issue) bool {
	for _, i := range issues {
		if i.Kind == UnresolvedRequiredVariable {
			return true
		}
	}
	return false
}
