package composition

// Default resolution budgets.
const (
	DefaultMaxExpansions = 10_000
	DefaultMaxOutput     = 1 << 20
)

// Limits bounds the work of a single resolution. Zero or negative fields
// select the package defaults.
type Limits struct {
	// MaxDepth bounds module nesting and expansion passes.
	MaxDepth int `json:"max_depth"`
	// MaxExpansions bounds the total number of module expansions across
	// every pass, including repeats of the same module.
	MaxExpansions int `json:"max_expansions"`
	// MaxOutput bounds the size in bytes of expanded and substituted text.
	MaxOutput int `json:"max_output"`
}

// DefaultLimits returns the package default budgets.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:      DefaultMaxDepth,
		MaxExpansions: DefaultMaxExpansions,
		MaxOutput:     DefaultMaxOutput,
	}
}

// Normalize replaces unset fields with the package defaults.
func (l Limits) Normalize() Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxDepth
	}
	if l.MaxExpansions <= 0 {
		l.MaxExpansions = DefaultMaxExpansions
	}
	if l.MaxOutput <= 0 {
		l.MaxOutput = DefaultMaxOutput
	}
	return l
}
