package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mxn2020/prompt-verse-io/internal/compose"
)

func newScanCmd() *cobra.Command {
	var (
		src     source
		modules string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the placeholders of a template",
		Long: `scan prints each distinct placeholder in first-occurrence order.
With --modules, each line is prefixed by "module" or "variable".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			template, err := src.read(cmd)
			if err != nil {
				return err
			}

			b, err := loadBundle(modules)
			if err != nil {
				return err
			}
			snap, err := b.Snapshot()
			if err != nil {
				return err
			}

			analysis := compose.Analyze(template, snap)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(analysis)
			}

			for _, name := range analysis.Placeholders {
				switch {
				case modules == "":
					fmt.Fprintln(out, name)
				case snap.Has(name):
					fmt.Fprintf(out, "module\t%s\n", name)
				default:
					fmt.Fprintf(out, "variable\t%s\n", name)
				}
			}
			return nil
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&modules, "modules", "m", "", "module bundle used to classify placeholders")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")

	return cmd
}
