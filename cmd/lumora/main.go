// Command lumora is the CLI entry point: index a repository, serve a
// standing watcher, run the seven read-only query operations, or speak MCP
// over stdio to an editor/agent, all against the same on-disk graph.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagDB     string
	flagFormat string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

var rootCmd = &cobra.Command{
	Use:           "lumora",
	Short:         "Local semantic code graph engine",
	Long:          "Lumora indexes a repository into an embedded SQLite graph of files, symbols, references, and call edges, then answers structural queries over it.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: $LUMORA_STATE_DIR/graph.db, or .lumora/graph.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(printMCPConfigCmd)
	rootCmd.AddCommand(setupCodexCmd)
}

var validFormats = []string{"json", "text"}

func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// resolveTargetDir returns the absolute path of the directory to operate on.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveStateDir returns the directory lumora keeps its own state in:
// $LUMORA_STATE_DIR if set, otherwise <repoRoot>/.lumora.
func resolveStateDir(repoRoot string) string {
	if dir := os.Getenv("LUMORA_STATE_DIR"); dir != "" {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(repoRoot, dir)
	}
	return filepath.Join(repoRoot, ".lumora")
}

// resolveDBPath returns the database path from the --db flag, or the
// default graph.db inside the resolved state directory.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(resolveStateDir(repoRoot), "graph.db")
}

// exitCodeFor maps an error to the CLI's documented exit code: 1 for plain
// user/argument errors, 2 for indexing failures, 3 for I/O failures that
// aren't user error (missing database, unreadable files).
func exitCodeFor(err error) int {
	switch {
	case isIndexingError(err):
		return 2
	case isIOError(err):
		return 3
	default:
		return 1
	}
}
