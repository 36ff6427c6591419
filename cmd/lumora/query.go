package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	lumora "github.com/jward/lumora"
	"github.com/jward/lumora/internal/errs"
	"github.com/jward/lumora/internal/tool"
)

var (
	flagLimit            int
	flagOffset           int
	flagOrder            string
	flagFileGlob         string
	flagLanguage         string
	flagMaxAgeHours      float64
	flagVerbosity        string
	flagIncludeFreshness bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a read-only query against the semantic code graph",
	Long:  "Every subcommand is one of the tool-surface operations: symbol-definitions, symbol-references, symbol-callers, dependency-path, minimal-slice, clone-matches, selector-discover.",
}

func init() {
	queryCmd.PersistentFlags().IntVar(&flagLimit, "limit", 50, "pagination limit")
	queryCmd.PersistentFlags().IntVar(&flagOffset, "offset", 0, "pagination offset")
	queryCmd.PersistentFlags().StringVar(&flagOrder, "order", "", "sort order: score_desc|line_asc|line_desc")
	queryCmd.PersistentFlags().StringVar(&flagFileGlob, "file-glob", "", "restrict results to files matching this glob")
	queryCmd.PersistentFlags().StringVar(&flagLanguage, "language", "", "restrict results to this language")
	queryCmd.PersistentFlags().Float64Var(&flagMaxAgeHours, "max-age-hours", 0, "restrict results to files indexed within this many hours")
	queryCmd.PersistentFlags().StringVar(&flagVerbosity, "verbosity", "normal", "result detail: compact|normal|debug")
	queryCmd.PersistentFlags().BoolVar(&flagIncludeFreshness, "include-freshness", false, "include per-file indexed_at timestamps")

	queryCmd.AddCommand(symbolDefinitionsCmd)
	queryCmd.AddCommand(symbolReferencesCmd)
	queryCmd.AddCommand(symbolCallersCmd)
	queryCmd.AddCommand(dependencyPathCmd)
	queryCmd.AddCommand(minimalSliceCmd)
	queryCmd.AddCommand(cloneMatchesCmd)
	queryCmd.AddCommand(selectorDiscoverCmd)
}

// listOptions builds a tool.ListOptions from the query command's persistent
// flags.
func listOptions() tool.ListOptions {
	return tool.ListOptions{
		Limit:            flagLimit,
		Offset:           flagOffset,
		Order:            flagOrder,
		FileGlob:         flagFileGlob,
		Language:         flagLanguage,
		MaxAgeHours:      flagMaxAgeHours,
		Verbosity:        flagVerbosity,
		IncludeFreshness: flagIncludeFreshness,
	}
}

// openAdapter opens the Graph Store at the resolved --db path (failing if it
// doesn't exist — queries never create one) and returns a Tool Surface
// Adapter plus the Engine whose Close the caller is responsible for.
func openAdapter() (*tool.Adapter, *lumora.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIO, "getwd", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, nil, errs.Wrap(errs.KindIO, "open graph store", fmt.Errorf("database not found: %s (run 'lumora index' first)", dbPath))
	}

	engine, err := lumora.New(dbPath, repoRoot)
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindIO, "open graph store", err)
	}
	runner := lumora.NewRunner(engine)
	return tool.New(runner), engine, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		formatResultText(os.Stdout, result)
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError reports a query failure in the selected format and marks it
// handled so main() doesn't print it a second time.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// formatResultText prints a plain-text rendering of a query result. Every
// operation's result is a small struct of slices; a generic field dump is
// enough for a debugging-oriented text mode (--format json is the
// machine-readable surface scripts should parse).
func formatResultText(w io.Writer, result CLIResult) {
	if result.Error != "" {
		fmt.Fprintf(w, "error: %s\n", result.Error)
		return
	}
	fmt.Fprintf(w, "%s:\n%+v\n", result.Command, result.Results)
}

var symbolDefinitionsCmd = &cobra.Command{
	Use:   "symbol-definitions <selector>",
	Short: "List Entities declared under a selector's name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("symbol_definitions", err)
		}
		defer engine.Close()
		res, err := adapter.SymbolDefinitions(args[0], listOptions())
		if err != nil {
			return outputError("symbol_definitions", err)
		}
		return outputResult(CLIResult{Command: "symbol_definitions", Results: res})
	},
}

var (
	flagCallsOnly bool
	flagDedup     bool
	flagTopFiles  bool
)

var symbolReferencesCmd = &cobra.Command{
	Use:   "symbol-references <selector>",
	Short: "List References whose target matches a selector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("symbol_references", err)
		}
		defer engine.Close()
		res, err := adapter.SymbolReferences(args[0], flagCallsOnly, flagDedup, flagTopFiles, listOptions())
		if err != nil {
			return outputError("symbol_references", err)
		}
		return outputResult(CLIResult{Command: "symbol_references", Results: res})
	},
}

func init() {
	symbolReferencesCmd.Flags().BoolVar(&flagCallsOnly, "calls-only", false, "only references that are also calls")
	symbolReferencesCmd.Flags().BoolVar(&flagDedup, "dedup", false, "collapse references at the same file:line")
	symbolReferencesCmd.Flags().BoolVar(&flagTopFiles, "top-files", false, "include a top_files summary")
}

var flagCallersDedup bool

var symbolCallersCmd = &cobra.Command{
	Use:   "symbol-callers <selector>",
	Short: "List CallEdges whose callee matches a selector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("symbol_callers", err)
		}
		defer engine.Close()
		res, err := adapter.SymbolCallers(args[0], flagCallersDedup, listOptions())
		if err != nil {
			return outputError("symbol_callers", err)
		}
		return outputResult(CLIResult{Command: "symbol_callers", Results: res})
	},
}

func init() {
	symbolCallersCmd.Flags().BoolVar(&flagCallersDedup, "dedup", false, "collapse callers at the same file:line")
}

var flagMaxDepth int

var dependencyPathCmd = &cobra.Command{
	Use:   "dependency-path <selectorA> <selectorB>",
	Short: "Find the shortest FileDep path between two selectors",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("dependency_path", err)
		}
		defer engine.Close()
		res, err := adapter.DependencyPath(args[0], args[1], flagMaxDepth)
		if err != nil {
			return outputError("dependency_path", err)
		}
		return outputResult(CLIResult{Command: "dependency_path", Results: res})
	},
}

func init() {
	dependencyPathCmd.Flags().IntVar(&flagMaxDepth, "max-depth", 10, "maximum BFS depth")
}

var (
	flagSliceDepth                    int
	flagSliceMaxNeighbors             int
	flagSliceDedup                    bool
	flagSliceSuppressLowSignalRepeats bool
	flagSliceLowSignalNameCap         int
	flagSlicePreferProjectSymbols     bool
)

var minimalSliceCmd = &cobra.Command{
	Use:   "minimal-slice <file> <line>",
	Short: "Find a minimal call/reference/import neighborhood around a location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := parseIntArg(args[1], "line")
		if err != nil {
			return outputError("minimal_slice", err)
		}
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("minimal_slice", err)
		}
		defer engine.Close()
		res, err := adapter.MinimalSlice(args[0], line, flagSliceDepth, flagSliceMaxNeighbors, tool.SliceFlags{
			Dedup:                    flagSliceDedup,
			SuppressLowSignalRepeats: flagSliceSuppressLowSignalRepeats,
			LowSignalNameCap:         flagSliceLowSignalNameCap,
			PreferProjectSymbols:     flagSlicePreferProjectSymbols,
		})
		if err != nil {
			return outputError("minimal_slice", err)
		}
		return outputResult(CLIResult{Command: "minimal_slice", Results: res})
	},
}

func init() {
	minimalSliceCmd.Flags().IntVar(&flagSliceDepth, "depth", 2, "BFS hop depth")
	minimalSliceCmd.Flags().IntVar(&flagSliceMaxNeighbors, "max-neighbors", 40, "max neighbors per group")
	minimalSliceCmd.Flags().BoolVar(&flagSliceDedup, "dedup", false, "collapse duplicate neighbors")
	minimalSliceCmd.Flags().BoolVar(&flagSliceSuppressLowSignalRepeats, "suppress-low-signal-repeats", false, "lower a neighbor's score by 2 for each earlier neighbor with the same name")
	minimalSliceCmd.Flags().IntVar(&flagSliceLowSignalNameCap, "low-signal-name-cap", 1, "repeats of one name allowed before suppression")
	minimalSliceCmd.Flags().BoolVar(&flagSlicePreferProjectSymbols, "prefer-project-symbols", false, "score project-local symbols above vendored ones")
}

var (
	flagCloneMode          string
	flagCloneMinSimilarity float64
)

var cloneMatchesCmd = &cobra.Command{
	Use:   "clone-matches <file>",
	Short: "Find near-duplicate files or directory clone hotspots",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("clone_matches", err)
		}
		defer engine.Close()
		res, err := adapter.CloneMatches(args[0], flagCloneMode, flagCloneMinSimilarity, listOptions())
		if err != nil {
			return outputError("clone_matches", err)
		}
		return outputResult(CLIResult{Command: "clone_matches", Results: res})
	},
}

func init() {
	cloneMatchesCmd.Flags().StringVar(&flagCloneMode, "mode", "matches", "matches|hotspots")
	cloneMatchesCmd.Flags().Float64Var(&flagCloneMinSimilarity, "min-similarity", 0, "minimum similarity, shared fingerprints / the larger file's fingerprint count (default 0.35)")
}

var (
	flagDiscoverFuzzy      bool
	flagDiscoverEntityType string
)

var selectorDiscoverCmd = &cobra.Command{
	Use:   "selector-discover <query>",
	Short: "Rank candidate selectors against a partial name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter, engine, err := openAdapter()
		if err != nil {
			return outputError("selector_discover", err)
		}
		defer engine.Close()
		res, err := adapter.SelectorDiscover(args[0], flagDiscoverFuzzy, flagFileGlob, flagDiscoverEntityType, listOptions())
		if err != nil {
			return outputError("selector_discover", err)
		}
		return outputResult(CLIResult{Command: "selector_discover", Results: res})
	},
}

func init() {
	selectorDiscoverCmd.Flags().BoolVar(&flagDiscoverFuzzy, "fuzzy", false, "allow subsequence matches")
	selectorDiscoverCmd.Flags().StringVar(&flagDiscoverEntityType, "entity-type", "", "restrict candidates to this entity kind")
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errs.Wrap(errs.KindInvalidArgument, "parse "+name, fmt.Errorf("invalid %s %q: must be an integer", name, value))
	}
	return n, nil
}
