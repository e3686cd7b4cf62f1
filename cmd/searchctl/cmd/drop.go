package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDropCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop <type>",
		Short: "Delete the index of an object type",
		Long: `Remove every index generation of a type. Stored objects are kept; the type
cannot be searched or written until the service restarts and a rebuild runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to drop %q without --yes", args[0])
			}
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Backends.Drop(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dropped index of %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the drop")
	return cmd
}
