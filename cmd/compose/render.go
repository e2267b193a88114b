package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mxn2020/prompt-verse-io/pkg/composition"
)

var errBlocking = errors.New("unresolved required variables")

type renderOptions struct {
	source
	limitFlags
	modules string
	set     []string
	require []string
	json    bool
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Assemble a template against a module bundle",
		Example: `  compose render -t prompt.txt -m library.yaml --set user=Ada --require user
  compose render --text "{{intro}} {{task}}" -m library.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}

	opts.source.register(cmd)
	opts.limitFlags.register(cmd)

	f := cmd.Flags()
	f.StringVarP(&opts.modules, "modules", "m", "", "module bundle (YAML or JSON)")
	f.StringArrayVar(&opts.set, "set", nil, "variable binding as key=value (repeatable)")
	f.StringSliceVar(&opts.require, "require", nil, "required variable names")
	f.BoolVar(&opts.json, "json", false, "print the assembly as JSON")

	return cmd
}

func (o *renderOptions) run(cmd *cobra.Command) error {
	limits, err := o.limitFlags.limits()
	if err != nil {
		return err
	}
	for _, name := range o.require {
		if !composition.IsIdentifier(name) {
			return fmt.Errorf("--require %q: invalid variable name", name)
		}
	}

	template, err := o.source.read(cmd)
	if err != nil {
		return err
	}

	bindings, err := parseBindings(o.set)
	if err != nil {
		return err
	}

	b, err := loadBundle(o.modules)
	if err != nil {
		return err
	}

	snap, err := b.Snapshot()
	if err != nil {
		return err
	}

	asm, err := composition.NewAssembler(limits).Assemble(template, snap, bindings, o.require)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if o.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(asm); err != nil {
			return fmt.Errorf("encode assembly: %w", err)
		}
	} else {
		fmt.Fprint(out, asm.Result.Output)
		for _, issue := range asm.Issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", issue.Severity, issue)
		}
	}

	if composition.HasBlocking(asm.Issues) {
		return errBlocking
	}
	return nil
}
