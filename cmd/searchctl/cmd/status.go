package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchcore/internal/lifecycle"
	healthuc "github.com/kailas-cloud/searchcore/internal/usecase/health"
)

type statusInfo struct {
	Health  string             `json:"health"`
	Checks  map[string]string  `json:"checks"`
	Indexes []lifecycle.Status `json:"indexes"`
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and index states",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			info := collectStatus(a.Health.Check(cmd.Context()), a.Backends.States())
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), info)
			}
			printStatus(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

func collectStatus(report healthuc.Report, states []lifecycle.Status) statusInfo {
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	return statusInfo{Health: string(report.Status), Checks: checks, Indexes: states}
}

func printStatus(w io.Writer, info statusInfo) {
	_, _ = fmt.Fprintf(w, "health: %s\n", info.Health)
	names := make([]string, 0, len(info.Checks))
	for k := range info.Checks {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		_, _ = fmt.Fprintf(w, "  %-28s %s\n", k, info.Checks[k])
	}

	_, _ = fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tSTATE\tLIVE\tBUILDING")
	for _, s := range info.Indexes {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", s.ObjectType, s.State, s.Live, s.Building)
	}
	_ = tw.Flush()
}
