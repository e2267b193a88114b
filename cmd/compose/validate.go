package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateBundleCmd() *cobra.Command {
	var flags limitFlags

	cmd := &cobra.Command{
		Use:   "validate-bundle FILE",
		Short: "Check a bundle for invalid modules and cycles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limits, err := flags.limits()
			if err != nil {
				return err
			}
			b, err := loadBundle(args[0])
			if err != nil {
				return err
			}
			if err := b.Check(limits); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d modules ok\n", args[0], len(b.Modules))
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
