// Package composition assembles prompt text from a root template and a
// registry of reusable modules.
//
// Placeholders use the {{identifier}} syntax. A placeholder whose name is a
// registry key is a module reference and is replaced by that module's
// content, recursively. Any other placeholder is a variable reference and is
// substituted from the caller's bindings after every module has been
// expanded. All functions in this package are pure and safe for concurrent
// use.
package composition

// Module is a named, reusable template fragment.
type Module struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Content           string   `json:"content"`
	DeclaredVariables []string `json:"declared_variables"`
}

// Bindings maps variable names to their substitution values.
type Bindings map[string]string

// Result is the outcome of a single resolution.
type Result struct {
	Output string `json:"output"`
	// Unresolved lists variables left in Output, in first-occurrence order.
	Unresolved []string `json:"unresolved"`
	// ExpandedModules lists the ids of expanded modules in expansion order.
	// A module expanded more than once is listed once.
	ExpandedModules []string `json:"expanded_modules"`
	// Unused lists, per expanded module, declared variables its own content
	// never references. Modules with nothing unused are omitted.
	Unused []UnusedDeclaration `json:"unused_declared,omitempty"`
}

// UnusedDeclaration names the declared variables of one expanded module that
// its content never references, in declaration order.
type UnusedDeclaration struct {
	ModuleID string   `json:"module_id"`
	Names    []string `json:"names"`
}

// IsUnresolved reports whether name remains unbound in the output.
func (r Result) IsUnresolved(name string) bool {
	for _, u := range r.Unresolved {
		if u == name {
			return true
		}
	}
	return false
}
