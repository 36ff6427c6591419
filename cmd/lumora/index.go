package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	lumora "github.com/jward/lumora"
	"github.com/jward/lumora/internal/errs"
)

var flagFull bool
var flagKeepOnError bool
var flagJSON bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build or refresh the semantic code graph for a repository",
	Long:  "Scans the repository, extracts definitions/references/imports/calls for every changed file, and resolves cross-file edges within the affected blast radius.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagFull, "full", false, "treat every file as changed and resolve the whole graph")
	indexCmd.Flags().BoolVar(&flagKeepOnError, "keep-on-error", false, "preserve a file's prior graph records across an extractor failure instead of wiping them")
	indexCmd.Flags().BoolVar(&flagJSON, "json", false, "print the run's counters as a JSON report even when --format is text")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return err
	}
	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	stateDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return errs.Wrap(errs.KindIO, "create state dir", err)
	}

	engine, err := lumora.New(dbPath, repoRoot, lumora.WithStateDir(stateDir), lumora.WithKeepOnError(flagKeepOnError))
	if err != nil {
		return errs.Wrap(errs.KindIO, "open graph store", err)
	}
	defer engine.Close()

	stats, err := engine.IndexDirectory(cmd.Context(), flagFull)
	if err != nil {
		return errs.Wrap(errs.KindStore, "index repository", err)
	}
	duration := time.Since(start)

	if flagFormat == "text" && !flagJSON {
		fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, duration.Round(time.Millisecond))
		fmt.Fprintf(os.Stderr, "  scanned: %d  changed: %d  unchanged: %d  removed: %d  parse errors: %d\n",
			stats.FilesScanned, stats.FilesChanged, stats.FilesUnchanged, stats.FilesRemoved, stats.ParseErrors)
		fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResult{
		Command: "index",
		Results: map[string]any{
			"files_scanned":   stats.FilesScanned,
			"files_changed":   stats.FilesChanged,
			"files_unchanged": stats.FilesUnchanged,
			"files_removed":   stats.FilesRemoved,
			"parse_errors":    stats.ParseErrors,
			"duration_ms":     duration.Milliseconds(),
			"database":        dbPath,
		},
	})
}
