// Package cli implements notesctl, a command line client that edits scouting
// drafts through the same editor engine the apps embed: local cache first,
// debounced sync to the draft service.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/scoutnotes/internal/config"
	"github.com/okian/scoutnotes/pkg/logger"
)

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	configPath string
	baseURL    string
	evaluator  string
	token      string
	cachePath  string
	logLevel   string
	verbose    bool

	cfg *config.Config
	out io.Writer
}

// NewRootCommand builds the notesctl command tree writing results to out
// and logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	g := &globals{out: out}

	root := &cobra.Command{
		Use:   "notesctl",
		Short: "Edit scouting evaluation drafts from the terminal",
		Long: `notesctl opens an evaluation draft, applies edits and syncs it to the
draft service. Drafts are kept in a local cache first, so edits made
while the service is unreachable are pushed on the next run.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd, errOut)
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", os.Getenv(config.EnvConfigFile), "YAML config file")
	root.PersistentFlags().StringVar(&g.baseURL, "url", "", "Draft service base URL (overrides config)")
	root.PersistentFlags().StringVar(&g.evaluator, "evaluator", "", "Evaluator ID sent to a header-auth service")
	root.PersistentFlags().StringVar(&g.token, "token", "", "Session bearer token")
	root.PersistentFlags().StringVar(&g.cachePath, "cache", "", "Local draft cache file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRubricCmd(g),
		newListCmd(g),
		newShowCmd(g),
		newEditCmd(g),
		newReportCmd(g),
		newScoringCmd(g),
		newDeleteCmd(g),
	)
	return root
}

// Execute runs notesctl against the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func (g *globals) setup(cmd *cobra.Command, errOut io.Writer) error {
	cfg, err := config.LoadFile(g.configPath)
	if err != nil {
		return err
	}
	if g.baseURL != "" {
		cfg.RemoteBaseURL = g.baseURL
	}
	if g.evaluator != "" {
		cfg.EvaluatorID = g.evaluator
	}
	if g.token != "" {
		cfg.SessionToken = g.token
	}
	if g.cachePath != "" {
		cfg.LocalCachePath = g.cachePath
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.verbose {
		cfg.LogLevel = "debug"
	}
	g.cfg = cfg

	if err := logger.Init(logger.WithWriter(errOut), logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	logger.Get().Named("notesctl").Debug(cmd.Context(), "configuration loaded",
		logger.String("url", cfg.RemoteBaseURL),
		logger.String("cache", cfg.LocalCachePath))
	return nil
}
