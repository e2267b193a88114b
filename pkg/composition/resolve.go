package composition

import (
	"slices"
	"strings"
)

// DefaultMaxDepth bounds module nesting and expansion passes when no limit is given.
const DefaultMaxDepth = 32

type frame struct {
	key  string
	text string
	pos  int
}

type expander struct {
	registry   Registry
	limits     Limits
	expansions int
	modules    []Module
	ids        []string
	seen       map[string]struct{}
}

// Resolve expands module references in root and substitutes bindings,
// within the default expansion and output budgets.
//
// Module references are expanded left to right with an explicit stack of
// in-progress module keys. Expansion repeats over the produced text until a
// pass expands nothing, so references formed where fragments meet are also
// expanded. Bindings are applied once, after all module references are gone;
// bound values are inserted verbatim and never rescanned.
//
// A maxDepth of zero or less selects DefaultMaxDepth.
func Resolve(root string, registry Registry, bindings Bindings, maxDepth int) (Result, error) {
	return ResolveWithin(root, registry, bindings, Limits{MaxDepth: maxDepth})
}

// ResolveWithin is Resolve with explicit limits. Nesting past MaxDepth fails
// with DepthExceededError; more than MaxExpansions module expansions, or text
// longer than MaxOutput bytes, fails with BudgetError.
func ResolveWithin(root string, registry Registry, bindings Bindings, limits Limits) (Result, error) {
	limits = limits.Normalize()
	if registry == nil {
		registry = (*Snapshot)(nil)
	}

	e := &expander{
		registry: registry,
		limits:   limits,
		modules:  make([]Module, 0),
		ids:      make([]string, 0),
		seen:     make(map[string]struct{}),
	}

	text := root
	for passes := 0; ; passes++ {
		next, expanded, err := e.pass(text)
		if err != nil {
			return Result{}, err
		}
		if expanded == 0 {
			break
		}
		if passes == limits.MaxDepth {
			return Result{}, &DepthExceededError{Depth: limits.MaxDepth}
		}
		text = next
	}

	output, unresolved, err := substitute(text, bindings, limits.MaxOutput)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Output:          output,
		Unresolved:      unresolved,
		ExpandedModules: e.ids,
		Unused:          unusedDeclarations(e.ids, e.modules),
	}, nil
}

func (e *expander) pass(root string) (string, int, error) {
	var out strings.Builder
	stack := []frame{{text: root}}
	expanded := 0

	for len(stack) > 0 {
		top := &stack[len(stack)-1]

		loc := placeholderPattern.FindStringSubmatchIndex(top.text[top.pos:])
		if loc == nil {
			out.WriteString(top.text[top.pos:])
			if out.Len() > e.limits.MaxOutput {
				return "", 0, &BudgetError{Resource: BudgetOutput, Limit: e.limits.MaxOutput}
			}
			stack = stack[:len(stack)-1]
			continue
		}

		start, end := top.pos+loc[0], top.pos+loc[1]
		name := top.text[top.pos+loc[2] : top.pos+loc[3]]

		out.WriteString(top.text[top.pos:start])
		top.pos = end
		if out.Len() > e.limits.MaxOutput {
			return "", 0, &BudgetError{Resource: BudgetOutput, Limit: e.limits.MaxOutput}
		}

		if !e.registry.Has(name) {
			out.WriteString(top.text[start:end])
			continue
		}

		path := expansionPath(stack, name)

		for _, f := range stack[1:] {
			if f.key == name {
				return "", 0, &CycleError{Path: path}
			}
		}

		if len(stack)-1 >= e.limits.MaxDepth {
			return "", 0, &DepthExceededError{Depth: e.limits.MaxDepth, Path: path}
		}

		m, ok := e.registry.Get(name)
		if !ok {
			return "", 0, &MissingModuleError{Key: name, Path: path}
		}

		e.expansions++
		if e.expansions > e.limits.MaxExpansions {
			return "", 0, &BudgetError{Resource: BudgetExpansions, Limit: e.limits.MaxExpansions}
		}

		e.record(name, m)
		expanded++
		stack = append(stack, frame{key: name, text: m.Content})
	}

	return out.String(), expanded, nil
}

func (e *expander) record(key string, m Module) {
	id := m.ID
	if id == "" {
		id = key
	}
	if _, ok := e.seen[id]; ok {
		return
	}
	e.seen[id] = struct{}{}
	e.ids = append(e.ids, id)
	e.modules = append(e.modules, m)
}

func expansionPath(stack []frame, next string) []string {
	path := make([]string, 0, len(stack))
	for _, f := range stack[1:] {
		path = append(path, f.key)
	}
	return append(path, next)
}

func substitute(text string, bindings Bindings, maxOutput int) (string, []string, error) {
	unresolved := make([]string, 0)
	seen := make(map[string]struct{})

	var out strings.Builder
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		out.WriteString(text[last:loc[0]])
		last = loc[1]

		name := text[loc[2]:loc[3]]
		if v, ok := bindings[name]; ok {
			out.WriteString(v)
		} else {
			out.WriteString(text[loc[0]:loc[1]])
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				unresolved = append(unresolved, name)
			}
		}

		if out.Len() > maxOutput {
			return "", nil, &BudgetError{Resource: BudgetOutput, Limit: maxOutput}
		}
	}
	out.WriteString(text[last:])
	if out.Len() > maxOutput {
		return "", nil, &BudgetError{Resource: BudgetOutput, Limit: maxOutput}
	}

	return out.String(), unresolved, nil
}

// unusedDeclarations reports declared variables each expanded module never
// references in its own content. ids and modules run in parallel.
func unusedDeclarations(ids []string, modules []Module) []UnusedDeclaration {
	var unused []UnusedDeclaration

	for i, m := range modules {
		if len(m.DeclaredVariables) == 0 {
			continue
		}

		referenced := make(map[string]struct{})
		for _, name := range Scan(m.Content) {
			referenced[name] = struct{}{}
		}

		var names []string
		for _, name := range m.DeclaredVariables {
			if _, ok := referenced[name]; ok {
				continue
			}
			if slices.Contains(names, name) {
				continue
			}
			names = append(names, name)
		}
		if len(names) > 0 {
			unused = append(unused, UnusedDeclaration{ModuleID: ids[i], Names: names})
		}
	}

	return unused
}
