// Package bundle reads and writes module libraries as YAML documents.
//
//	version: 1
//	modules:
//	  - name: intro
//	    content: "Hi {{user}}!"
//	    variables: [user]
//
// JSON documents with the same shape are accepted by Decode.
package bundle

import (
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

// Version is the bundle format version written by Encode.
const Version = 1

// MaxNameLength bounds module names.
const MaxNameLength = 100

var (
	ErrUnsupportedVersion = errors.New("unsupported bundle version")
	ErrInvalid            = errors.New("invalid bundle")
)

// Identifier rejects strings that cannot appear inside a placeholder.
var Identifier = validation.NewStringRule(
	composition.IsIdentifier,
	"must start with a letter or underscore and contain only letters, digits, and underscores",
)

// Module is a single library entry.
type Module struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Content     string   `yaml:"content" json:"content"`
	Variables   []string `yaml:"variables,omitempty" json:"variables,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Validate checks field constraints of a single module.
func (m Module) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required, validation.Length(1, MaxNameLength), Identifier),
		validation.Field(&m.Content, validation.Required),
		validation.Field(&m.Variables, validation.Each(validation.Required, Identifier)),
	)
}

// Bundle is a versioned module library.
type Bundle struct {
	Version int      `yaml:"version" json:"version"`
	Modules []Module `yaml:"modules" json:"modules"`
}

// New returns an empty bundle at the current version.
func New(modules ...Module) *Bundle {
	if modules == nil {
		modules = []Module{}
	}
	return &Bundle{Version: Version, Modules: modules}
}

// Decode reads and validates a bundle. A missing version is treated as
// the current version.
func Decode(r io.Reader) (*Bundle, error) {
	var b Bundle

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if b.Version == 0 {
		b.Version = Version
	}

	if err := b.Validate(); err != nil {
		return nil, err
	}

	return &b, nil
}

// Encode writes b as YAML.
func Encode(w io.Writer, b *Bundle) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}
	return enc.Close()
}

// Validate checks the version, each module, and name uniqueness.
func (b *Bundle) Validate() error {
	if b.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, b.Version)
	}

	seen := make(map[string]int, len(b.Modules))
	for i, m := range b.Modules {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%w: modules[%d]: %v", ErrInvalid, i, err)
		}
		if prev, ok := seen[m.Name]; ok {
			return fmt.Errorf("%w: modules[%d]: name %q already used by modules[%d]", ErrInvalid, i, m.Name, prev)
		}
		seen[m.Name] = i
	}

	return nil
}

// Names returns module names in bundle order.
func (b *Bundle) Names() []string {
	names := make([]string, len(b.Modules))
	for i, m := range b.Modules {
		names[i] = m.Name
	}
	return names
}

// Snapshot builds a name-keyed registry from the bundle.
func (b *Bundle) Snapshot() (*composition.Snapshot, error) {
	modules := make([]composition.Module, len(b.Modules))
	for i, m := range b.Modules {
		modules[i] = composition.Module{
			Name:              m.Name,
			Content:           m.Content,
			DeclaredVariables: m.Variables,
		}
	}
	return composition.NewSnapshot(composition.KeyByName, modules...)
}

// Check expands every module once and returns the first structural
// composition error (cycle, depth, or budget).
func (b *Bundle) Check(limits composition.Limits) error {
	snap, err := b.Snapshot()
	if err != nil {
		return err
	}
	return snap.Check(limits)
}
