package cmd

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchcore/internal/usecase/rebuild"
)

func newRebuildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild [type...]",
		Short: "Rebuild indexes from the object store",
		Long: `Stream every stored object of each type into a fresh index and swap it in.
Without arguments every registered type is rebuilt. The live index keeps serving
until the new one is complete; a failed rebuild leaves it untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var (
				reports []rebuild.Report
				runErr  error
			)
			if len(args) == 0 {
				reports, runErr = a.Rebuild.RebuildAll(cmd.Context())
			} else {
				var errs []error
				for _, t := range args {
					rep, err := a.Rebuild.Rebuild(cmd.Context(), t)
					reports = append(reports, rep)
					errs = append(errs, err)
				}
				runErr = errors.Join(errs...)
			}

			if opts.jsonOutput {
				if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
			} else {
				printReports(cmd.OutOrStdout(), reports)
			}
			return runErr
		},
	}
}

func printReports(w io.Writer, reports []rebuild.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tDOCUMENTS\tSKIPPED\tDURATION\tERROR")
	for _, r := range reports {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.ObjectType, r.Documents, r.Skipped, r.Duration.Round(time.Millisecond), r.Error)
	}
	_ = tw.Flush()
}
