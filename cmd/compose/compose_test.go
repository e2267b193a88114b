package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mxn2020/prompt-verse-io/pkg/bundle"
	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

const library = `version: 1
modules:
  - name: intro
    content: "Hello {{user}}. {{signature}}"
    variables: [user]
  - name: signature
    content: "-- {{team}}"
`

const fanout = `version: 1
modules:
  - name: a
    content: "{{b}}{{b}}{{b}}"
  - name: b
    content: "{{c}}{{c}}{{c}}"
  - name: c
    content: "0123456789"
`

const cyclic = `version: 1
modules:
  - name: a
    content: "{{b}}"
  - name: b
    content: "{{a}}"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRender(t *testing.T) {
	lib := writeFile(t, "library.yaml", library)

	t.Run("modules and bindings", func(t *testing.T) {
		out, errOut, err := run(t, "",
			"render", "--text", "{{intro}}", "-m", lib,
			"--set", "user=Ada", "--set", "team=Support",
		)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "Hello Ada. -- Support" {
			t.Errorf("output = %q", out)
		}
		if errOut != "" {
			t.Errorf("stderr = %q, want empty", errOut)
		}
	})

	t.Run("template from stdin", func(t *testing.T) {
		out, _, err := run(t, "Dear {{name}}", "render", "--set", "name=Grace")
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "Dear Grace" {
			t.Errorf("output = %q, want %q", out, "Dear Grace")
		}
	})

	t.Run("template from file", func(t *testing.T) {
		tmpl := writeFile(t, "prompt.txt", "{{signature}}")
		out, _, err := run(t, "", "render", "-t", tmpl, "-m", lib, "--set", "team=Ops")
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "-- Ops" {
			t.Errorf("output = %q, want %q", out, "-- Ops")
		}
	})

	t.Run("binding value keeps equals sign", func(t *testing.T) {
		out, _, err := run(t, "", "render", "--text", "{{expr}}", "--set", "expr=a=b")
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "a=b" {
			t.Errorf("output = %q, want a=b", out)
		}
	})

	t.Run("optional variable reported on stderr", func(t *testing.T) {
		out, errOut, err := run(t, "", "render", "--text", "Hi {{user}}")
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if out != "Hi {{user}}" {
			t.Errorf("output = %q", out)
		}
		if !strings.Contains(errOut, "info:") || !strings.Contains(errOut, `"user"`) {
			t.Errorf("stderr = %q, want info issue for user", errOut)
		}
	})

	t.Run("missing required variable blocks", func(t *testing.T) {
		out, errOut, err := run(t, "", "render", "--text", "Hi {{user}}", "--require", "user")
		if !errors.Is(err, errBlocking) {
			t.Fatalf("err = %v, want errBlocking", err)
		}
		if exitCode(err) != 2 {
			t.Errorf("exitCode = %d, want 2", exitCode(err))
		}
		if out != "Hi {{user}}" {
			t.Errorf("output = %q, want best-effort output", out)
		}
		if !strings.Contains(errOut, "error:") {
			t.Errorf("stderr = %q, want error issue", errOut)
		}
	})

	t.Run("cycle is structural", func(t *testing.T) {
		cyc := writeFile(t, "cyclic.yaml", cyclic)
		out, _, err := run(t, "", "render", "--text", "{{a}}", "-m", cyc)
		if !errors.Is(err, composition.ErrCycle) {
			t.Fatalf("err = %v, want ErrCycle", err)
		}
		if exitCode(err) != 1 {
			t.Errorf("exitCode = %d, want 1", exitCode(err))
		}
		if out != "" {
			t.Errorf("output = %q, want none", out)
		}
	})

	t.Run("depth limit", func(t *testing.T) {
		_, _, err := run(t, "", "render", "--text", "{{intro}}", "-m", lib, "--max-depth", "1")
		if !errors.Is(err, composition.ErrDepthExceeded) {
			t.Errorf("err = %v, want ErrDepthExceeded", err)
		}
	})

	t.Run("expansion budget", func(t *testing.T) {
		fan := writeFile(t, "fanout.yaml", fanout)
		_, _, err := run(t, "", "render", "--text", "{{a}}", "-m", fan, "--max-expansions", "12")
		if !errors.Is(err, composition.ErrBudget) {
			t.Errorf("err = %v, want ErrBudget", err)
		}
		if exitCode(err) != 1 {
			t.Errorf("exitCode = %d, want 1", exitCode(err))
		}
	})

	t.Run("output budget", func(t *testing.T) {
		fan := writeFile(t, "fanout.yaml", fanout)
		_, _, err := run(t, "", "render", "--text", "{{a}}", "-m", fan, "--max-output", "64")
		var budget *composition.BudgetError
		if !errors.As(err, &budget) || budget.Resource != composition.BudgetOutput {
			t.Errorf("err = %v, want output BudgetError", err)
		}

		out, _, err := run(t, "", "render", "--text", "{{a}}", "-m", fan, "--max-output", "90")
		if err != nil {
			t.Fatalf("render within budget: %v", err)
		}
		if len(out) != 90 {
			t.Errorf("output length = %d, want 90", len(out))
		}
	})

	t.Run("json output", func(t *testing.T) {
		out, _, err := run(t, "", "render", "--text", "{{signature}}", "-m", lib, "--json")
		if err != nil {
			t.Fatalf("render: %v", err)
		}

		var asm composition.Assembly
		if err := json.Unmarshal([]byte(out), &asm); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if asm.Result.Output != "-- {{team}}" {
			t.Errorf("Output = %q", asm.Result.Output)
		}
		if len(asm.Result.ExpandedModules) != 1 || asm.Result.ExpandedModules[0] != "signature" {
			t.Errorf("ExpandedModules = %v, want [signature]", asm.Result.ExpandedModules)
		}
		if len(asm.Issues) != 1 || asm.Issues[0].Kind != composition.UnresolvedOptionalVariable {
			t.Errorf("Issues = %+v, want one optional variable issue", asm.Issues)
		}
	})
}

func TestRenderInputErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"binding without equals", []string{"render", "--text", "x", "--set", "user"}},
		{"invalid binding name", []string{"render", "--text", "x", "--set", "first-name=Ada"}},
		{"invalid required name", []string{"render", "--text", "x", "--require", "1st"}},
		{"zero max depth", []string{"render", "--text", "x", "--max-depth", "0"}},
		{"zero max expansions", []string{"render", "--text", "x", "--max-expansions", "0"}},
		{"bad max output", []string{"render", "--text", "x", "--max-output", "lots"}},
		{"missing template file", []string{"render", "-t", filepath.Join(t.TempDir(), "absent.txt")}},
		{"missing bundle", []string{"render", "--text", "x", "-m", filepath.Join(t.TempDir(), "absent.yaml")}},
		{"positional argument", []string{"render", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := run(t, "", tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestScan(t *testing.T) {
	lib := writeFile(t, "library.yaml", library)

	t.Run("plain", func(t *testing.T) {
		out, _, err := run(t, "{{b}} {{a}} {{b}}", "scan")
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if out != "b\na\n" {
			t.Errorf("output = %q, want %q", out, "b\na\n")
		}
	})

	t.Run("classified", func(t *testing.T) {
		out, _, err := run(t, "", "scan", "--text", "{{intro}} {{task}}", "-m", lib)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		want := "module\tintro\nvariable\ttask\n"
		if out != want {
			t.Errorf("output = %q, want %q", out, want)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := run(t, "", "scan", "--text", "{{intro}} {{task}}", "-m", lib, "--json")
		if err != nil {
			t.Fatalf("scan: %v", err)
		}

		var got struct {
			Modules   []string `json:"modules"`
			Variables []string `json:"variables"`
		}
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got.Modules) != 1 || got.Modules[0] != "intro" {
			t.Errorf("Modules = %v, want [intro]", got.Modules)
		}
		if len(got.Variables) != 1 || got.Variables[0] != "task" {
			t.Errorf("Variables = %v, want [task]", got.Variables)
		}
	})
}

func TestValidateBundle(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		lib := writeFile(t, "library.yaml", library)
		out, _, err := run(t, "", "validate-bundle", lib)
		if err != nil {
			t.Fatalf("validate-bundle: %v", err)
		}
		if !strings.Contains(out, "2 modules ok") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		cyc := writeFile(t, "cyclic.yaml", cyclic)
		_, _, err := run(t, "", "validate-bundle", cyc)
		if !errors.Is(err, composition.ErrCycle) {
			t.Errorf("err = %v, want ErrCycle", err)
		}
	})

	t.Run("expansion budget", func(t *testing.T) {
		fan := writeFile(t, "fanout.yaml", fanout)
		if _, _, err := run(t, "", "validate-bundle", fan); err != nil {
			t.Fatalf("validate-bundle: %v", err)
		}
		_, _, err := run(t, "", "validate-bundle", fan, "--max-expansions", "5")
		if !errors.Is(err, composition.ErrBudget) {
			t.Errorf("err = %v, want ErrBudget", err)
		}
	})

	t.Run("invalid module name", func(t *testing.T) {
		bad := writeFile(t, "bad.yaml", "version: 1\nmodules:\n  - name: bad-name\n    content: x\n")
		_, _, err := run(t, "", "validate-bundle", bad)
		if !errors.Is(err, bundle.ErrInvalid) {
			t.Errorf("err = %v, want ErrInvalid", err)
		}
	})

	t.Run("requires file argument", func(t *testing.T) {
		if _, _, err := run(t, "", "validate-bundle"); err == nil {
			t.Error("expected error")
		}
	})
}
