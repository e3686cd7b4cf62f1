package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/searchcore/internal/domain/search/query"
	searchuc "github.com/kailas-cloud/searchcore/internal/usecase/search"
)

func newSearchCmd(opts *options) *cobra.Command {
	var (
		offset    int
		limit     int
		queryFile string
	)

	cmd := &cobra.Command{
		Use:   "search <type> [text...]",
		Short: "Search one object type",
		Long: `Match free text against every searchable field of a type, or run a JSON
query tree read from --query-file ("-" for stdin).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			objectType, text := args[0], strings.Join(args[1:], " ")
			var page searchuc.Page
			if queryFile != "" {
				q, err := readQuery(cmd.InOrStdin(), queryFile)
				if err != nil {
					return err
				}
				page, err = a.Search.Search(cmd.Context(), objectType, q)
				if err != nil {
					return err
				}
			} else {
				page, err = a.Search.SearchText(cmd.Context(), objectType, text, offset, limit)
				if err != nil {
					return err
				}
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			printPage(cmd.OutOrStdout(), page)
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Number of hits to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size (0 = configured default)")
	cmd.Flags().StringVar(&queryFile, "query-file", "", "JSON query tree file, - for stdin")
	return cmd
}

func readQuery(stdin io.Reader, path string) (query.Node, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read query: %w", err)
	}
	return query.Decode(data)
}

func printPage(w io.Writer, page searchuc.Page) {
	_, _ = fmt.Fprintf(w, "%d matches, showing %d from offset %d\n", page.Total, len(page.Items), page.Offset)
	for i, it := range page.Items {
		title := ""
		if v, ok := it.Object["title"]; ok {
			title = fmt.Sprint(v)
		}
		_, _ = fmt.Fprintf(w, "%3d. %-24s %8.3f  %s\n", page.Offset+i+1, it.ID, it.Score, title)
	}
}
