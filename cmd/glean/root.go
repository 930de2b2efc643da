package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cortexlib/glean/version"
)

var (
	cfgFile string
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "glean",
	Short: "Resumable LLM knowledge extraction for long documents",
	Long: `Glean distills books and long documents into structured knowledge
using LLM extraction, one chapter at a time.

The pipeline includes:
  - Chapter splitting and chunking for plain text, markdown, and PDF
  - Schema-validated extraction of domains, principles, rules, claims, and warnings
  - Adaptive call concurrency that backs off on rate limits
  - Chunk-level checkpoints so interrupted runs resume where they stopped`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.glean/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "glean home directory (default: ~/.glean)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the CLI logger honoring the --verbose flag.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
