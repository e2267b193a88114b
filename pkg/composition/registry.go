package composition

import "fmt"

// Registry resolves module references by key.
type Registry interface {
	Get(key string) (Module, bool)
	Has(key string) bool
}

// KeyScheme selects which module field keys a Snapshot.
type KeyScheme int

const (
	KeyByName KeyScheme = iota
	KeyByID
)

func (s KeyScheme) String() string {
	if s == KeyByID {
		return "id"
	}
	return "name"
}

func (s KeyScheme) key(m Module) string {
	if s == KeyByID {
		return m.ID
	}
	return m.Name
}

func (s KeyScheme) alternate() KeyScheme {
	if s == KeyByID {
		return KeyByName
	}
	return KeyByID
}

// Snapshot is an immutable in-memory Registry.
type Snapshot struct {
	scheme  KeyScheme
	modules map[string]Module
	keys    []string
}

// NewSnapshot builds a Registry keyed by scheme. Under KeyByName a module
// with an empty ID takes its name as ID.
//
// Construction fails when a key is not a placeholder identifier, when two
// modules share a key, or when a module's alternate-scheme key equals
// another module's key.
func NewSnapshot(scheme KeyScheme, modules ...Module) (*Snapshot, error) {
	s := &Snapshot{
		scheme:  scheme,
		modules: make(map[string]Module, len(modules)),
		keys:    make([]string, 0, len(modules)),
	}

	for _, m := range modules {
		if scheme == KeyByName && m.ID == "" {
			m.ID = m.Name
		}

		key := scheme.key(m)
		if !IsIdentifier(key) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if _, ok := s.modules[key]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}

		s.modules[key] = m
		s.keys = append(s.keys, key)
	}

	alt := scheme.alternate()
	for _, key := range s.keys {
		altKey := alt.key(s.modules[key])
		if altKey == "" || altKey == key {
			continue
		}
		if _, ok := s.modules[altKey]; ok {
			return nil, fmt.Errorf("%w: %s %q of module %q", ErrAmbiguousKey, alt, altKey, key)
		}
	}

	return s, nil
}

// Get returns the module stored under key.
func (s *Snapshot) Get(key string) (Module, bool) {
	if s == nil {
		return Module{}, false
	}
	m, ok := s.modules[key]
	return m, ok
}

// Has reports whether key names a module.
func (s *Snapshot) Has(key string) bool {
	if s == nil {
		return false
	}
	_, ok := s.modules[key]
	return ok
}

// Len returns the number of modules.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Keys returns the registry keys in insertion order.
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Scheme returns the key scheme the snapshot was built with.
func (s *Snapshot) Scheme() KeyScheme {
	if s == nil {
		return KeyByName
	}
	return s.scheme
}

// Check expands every module in the snapshot on its own and returns the
// first structural error (cycle, missing module, depth, or budget), annotated
// with the module key it started from. Keys are checked in insertion order.
func (s *Snapshot) Check(limits Limits) error {
	for _, key := range s.Keys() {
		if _, err := ResolveWithin(Placeholder(key), s, nil, limits); err != nil {
			return fmt.Errorf("module %q: %w", key, err)
		}
	}
	return nil
}
