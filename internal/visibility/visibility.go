// Package visibility defines the sharing level attached to modules and prompts.
package visibility

import (
	"encoding/json"
	"errors"
	"slices"
)

// Visibility is the sharing level of a library entry. It is stored as the
// visibility_type enum.
type Visibility string

const (
	Private Visibility = "private"
	Team    Visibility = "team"
	Public  Visibility = "public"
)

// ErrInvalid indicates an unknown visibility value.
var ErrInvalid = errors.New("visibility must be private, team, or public")

var values = []Visibility{Private, Team, Public}

// Values returns the accepted visibility levels.
func Values() []Visibility {
	return values
}

// Parse validates s as a visibility level.
func Parse(s string) (Visibility, error) {
	v := Visibility(s)
	if !slices.Contains(values, v) {
		return "", ErrInvalid
	}
	return v, nil
}

// OrDefault returns v, or Private when v is empty.
func (v Visibility) OrDefault() Visibility {
	if v == "" {
		return Private
	}
	return v
}

// Validate reports whether v is a known level.
func (v Visibility) Validate() error {
	if !slices.Contains(values, v) {
		return ErrInvalid
	}
	return nil
}

// UnmarshalJSON accepts known levels and the empty string.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*v = ""
		return nil
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
