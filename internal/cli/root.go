// Package cli implements the crewscore command line: offline scoring,
// scheme inspection and load seeding against a running service.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xplor/crewscore/internal/domain/scoring"
	"github.com/xplor/crewscore/pkg/logger"
)

// Version is the CLI version reported by --version.
const Version = "1.0.0"

type rootOptions struct {
	schemeDir string
	logLevel  string
	log       logger.Logger
}

// NewRootCommand builds the crewscore command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "crewscore",
		Short: "Score yacht crew profiles against CRI+ and YCI+ rating schemes",
		Long: `crewscore scores crew profiles offline with the same scheme tables the
service uses, lists and inspects those tables, and seeds a running service
with random crew for load and consistency checks.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			l, err := logger.New(logger.WithOutput(cmd.ErrOrStderr()), logger.WithLevel(opts.logLevel))
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			opts.log = l
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.schemeDir, "schemes-dir", os.Getenv("XPLOR_SCHEME_DIR"), "directory of scheme YAML files overriding the built-ins")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	root.AddCommand(
		newScoreCommand(opts),
		newSchemesCommand(opts),
		newSeedCommand(opts),
	)
	return root
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func (o *rootOptions) registry() (*scoring.Registry, error) {
	return scoring.LoadRegistry(o.schemeDir)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
