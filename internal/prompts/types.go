package prompts

import (
	"encoding/json"
	"slices"
)

// Type describes how a prompt is authored. It drives editor choice only;
// composition treats every type the same way.
type Type string

// Valid prompt types.
const (
	TypeStandard    Type = "standard"
	TypeStructured  Type = "structured"
	TypeModularized Type = "modularized"
	TypeAdvanced    Type = "advanced"
)

var types = []Type{
	TypeStandard,
	TypeStructured,
	TypeModularized,
	TypeAdvanced,
}

// Types returns the list of valid prompt types.
func Types() []Type {
	return types
}

// OrDefault returns t, or TypeStandard when t is empty.
func (t Type) OrDefault() Type {
	if t == "" {
		return TypeStandard
	}
	return t
}

// Validate reports ErrInvalidType for unknown values.
func (t Type) Validate() error {
	if !slices.Contains(types, t) {
		return ErrInvalidType
	}
	return nil
}

// UnmarshalJSON validates that the decoded string is a known type. An empty
// string is accepted and later defaulted.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Type(raw)
	if v != "" && !slices.Contains(types, v) {
		return ErrInvalidType
	}
	*t = v
	return nil
}

// ParseType validates a string as a known prompt type.
// Returns ErrInvalidType if the value is not recognized.
func ParseType(s string) (Type, error) {
	v := Type(s)
	if !slices.Contains(types, v) {
		return "", ErrInvalidType
	}
	return v, nil
}
