package composition

import "regexp"

const identifier = `[A-Za-z_][A-Za-z0-9_]*`

var (
	placeholderPattern = regexp.MustCompile(`\{\{(` + identifier + `)\}\}`)
	identifierPattern  = regexp.MustCompile(`^` + identifier + `$`)
)

// Scan returns the unique placeholder names found in template, in
// first-occurrence order. Sequences that are not {{identifier}} are literal
// text and yield no names.
func Scan(template string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)

	names := make([]string, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))

	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}

	return names
}

// IsIdentifier reports whether name can appear inside a placeholder.
func IsIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Placeholder returns the placeholder reference for name.
func Placeholder(name string) string {
	return "{{" + name + "}}"
}
