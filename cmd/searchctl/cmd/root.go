// Package cmd provides the searchctl commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchcore/internal/app"
	"github.com/kailas-cloud/searchcore/internal/config"
	logpkg "github.com/kailas-cloud/searchcore/internal/logger"
	"github.com/kailas-cloud/searchcore/internal/version"
)

type options struct {
	configPath string
	env        string
	jsonOutput bool
	verbose    bool
}

// NewRootCmd creates the root command. Subcommands talk to Redis and the search backends
// directly, using the same configuration as the service.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "searchctl",
		Short:         "Operate searchcore indexes",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("searchctl version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default config/<ENV>.yaml)")
	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "Environment name (default $ENV or local)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")

	cmd.AddCommand(
		newRebuildCmd(opts),
		newSearchCmd(opts),
		newStatusCmd(opts),
		newDropCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// open loads configuration and wires the application.
func (o *options) open(ctx context.Context) (*app.App, error) {
	env := o.env
	if env == "" {
		env = config.GetEnv()
	}

	var (
		cfg config.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = config.LoadFile(o.configPath)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := zap.NewNop()
	if o.verbose {
		logger, err = logpkg.NewLogger(env, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}
	return app.New(ctx, cfg, logger)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
