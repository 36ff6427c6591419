package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	lumora "github.com/jward/lumora"
	"github.com/jward/lumora/internal/errs"
)

var flagFullFirst bool

var serveCmd = &cobra.Command{
	Use:   "serve [path]",
	Short: "Watch a repository and keep the graph up to date",
	Long:  "Runs the Watcher Daemon: subscribes to filesystem changes under the repository root and re-indexes incrementally as they debounce in, until interrupted.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagFullFirst, "full-first", false, "run one full index before entering the watch loop")
}

func runServe(cmd *cobra.Command, args []string) error {
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

	engine, err := lumora.New(dbPath, repoRoot, lumora.WithStateDir(stateDir))
	if err != nil {
		return errs.Wrap(errs.KindIO, "open graph store", err)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	fmt.Fprintf(os.Stderr, "Watching %s (database: %s)\n", repoRoot, dbPath)

	if err := engine.Watch(ctx, flagFullFirst, logger); err != nil && ctx.Err() == nil {
		return errs.Wrap(errs.KindStore, "watch", err)
	}
	return nil
}
