package composition

// Assembly pairs a resolution with its validation issues.
type Assembly struct {
	Result Result  `json:"result"`
	Issues []Issue `json:"issues"`
}

// Assembler runs resolution and validation with fixed limits.
// Zero fields use the package defaults.
type Assembler struct {
	MaxDepth      int
	MaxExpansions int
	MaxOutput     int
}

// NewAssembler returns an Assembler bounded by limits.
func NewAssembler(limits Limits) Assembler {
	return Assembler{
		MaxDepth:      limits.MaxDepth,
		MaxExpansions: limits.MaxExpansions,
		MaxOutput:     limits.MaxOutput,
	}
}

// Limits returns the assembler's effective limits.
func (a Assembler) Limits() Limits {
	return Limits{
		MaxDepth:      a.MaxDepth,
		MaxExpansions: a.MaxExpansions,
		MaxOutput:     a.MaxOutput,
	}.Normalize()
}

// Assemble resolves root against registry and bindings, then validates the
// result against the required variable names. Structural failures
// (CycleError, MissingModuleError, DepthExceededError, BudgetError) abort
// with no output;
// validation issues are returned alongside the best-effort output.
func (a Assembler) Assemble(root string, registry Registry, bindings Bindings, required []string) (*Assembly, error) {
	result, err := ResolveWithin(root, registry, bindings, a.Limits())
	if err != nil {
		return nil, err
	}

	return &Assembly{
		Result: result,
		Issues: Validate(result, required),
	}, nil
}

// Assemble runs the zero-value Assembler.
func Assemble(root string, registry Registry, bindings Bindings, required []string) (*Assembly, error) {
	return Assembler{}.Assemble(root, registry, bindings, required)
}
