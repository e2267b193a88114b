package composition_test

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

func TestAssembleScenarios(t *testing.T) {
	tests := []struct {
		name           string
		root           string
		modules        []composition.Module
		bindings       composition.Bindings
		wantOutput     string
		wantUnresolved []string
		wantErr        error
	}{
		{
			name:           "variable substitution",
			root:           "Hello {{name}}",
			bindings:       composition.Bindings{"name": "Ada"},
			wantOutput:     "Hello Ada",
			wantUnresolved: []string{},
		},
		{
			name: "module expansion",
			root: "{{intro}}\n{{main}}",
			modules: []composition.Module{
				{Name: "intro", Content: "Hi {{user}}!"},
				{Name: "main", Content: "Topic: {{topic}}"},
			},
			bindings:       composition.Bindings{"user": "Bo", "topic": "AI"},
			wantOutput:     "Hi Bo!\nTopic: AI",
			wantUnresolved: []string{},
		},
		{
			name: "cycle",
			root: "{{a}}",
			modules: []composition.Module{
				{Name: "a", Content: "{{b}}"},
				{Name: "b", Content: "{{a}}"},
			},
			wantErr: composition.ErrCycle,
		},
		{
			name:           "missing variable",
			root:           "{{missing_var}}",
			wantOutput:     "{{missing_var}}",
			wantUnresolved: []string{"missing_var"},
		},
		{
			name:           "absent module name is a variable",
			root:           "{{mod}}",
			wantOutput:     "{{mod}}",
			wantUnresolved: []string{"mod"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := mustSnapshot(t, tt.modules...)

			got, err := composition.Assemble(tt.root, snap, tt.bindings, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Assemble() error = %v, want %v", err, tt.wantErr)
				}
				if got != nil {
					t.Errorf("Assemble() = %+v, want nil on structural error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}

			if got.Result.Output != tt.wantOutput {
				t.Errorf("output = %q, want %q", got.Result.Output, tt.wantOutput)
			}
			if !slices.Equal(got.Result.Unresolved, tt.wantUnresolved) {
				t.Errorf("unresolved = %v, want %v", got.Result.Unresolved, tt.wantUnresolved)
			}
		})
	}
}

func TestAssembleDeterministic(t *testing.T) {
	snap := mustSnapshot(t,
		composition.Module{Name: "intro", Content: "Hi {{user}} {{tone}}", DeclaredVariables: []string{"user", "mood"}},
		composition.Module{Name: "body", Content: "{{intro}} / {{topic}} / {{extra}}"},
	)
	bindings := composition.Bindings{"user": "Bo", "topic": "AI", "a": "1", "b": "2", "c": "3"}
	required := []string{"tone", "topic"}

	first, err := composition.Assemble("{{body}} {{intro}}", snap, bindings, required)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	for range 20 {
		again, err := composition.Assemble("{{body}} {{intro}}", snap, bindings, required)
		if err != nil {
			t.Fatalf("Assemble: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Assemble() not deterministic:\nfirst = %+v\nagain = %+v", first, again)
		}
	}
}

func TestAssembleScanIdempotence(t *testing.T) {
	got, err := composition.Assemble(
		"Hello {{name}}",
		nil,
		composition.Bindings{"name": "{{name}}"},
		[]string{"name"},
	)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(got.Result.Unresolved) != 0 {
		t.Errorf("unresolved = %v, want empty", got.Result.Unresolved)
	}
	if len(got.Issues) != 0 {
		t.Errorf("issues = %v, want none", got.Issues)
	}

	names := composition.Scan(got.Result.Output)
	if !slices.Equal(names, []string{"name"}) {
		t.Errorf("Scan(output) = %v, want [name]", names)
	}
}

func TestAssemblerMaxDepth(t *testing.T) {
	snap := mustSnapshot(t, chain(3)...)

	if _, err := (composition.Assembler{MaxDepth: 2}).Assemble("{{m1}}", snap, nil, nil); !errors.Is(err, composition.ErrDepthExceeded) {
		t.Errorf("MaxDepth 2 error = %v, want ErrDepthExceeded", err)
	}

	if _, err := (composition.Assembler{MaxDepth: 3}).Assemble("{{m1}}", snap, nil, nil); err != nil {
		t.Errorf("MaxDepth 3 error = %v, want nil", err)
	}
}
