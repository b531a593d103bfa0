package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/probeql"
	"github.com/jward/probeql/internal/logging"
)

var (
	flagDB      string
	flagFormat  string
	flagVerbose bool
	flagScripts string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

// logger is configured in PersistentPreRunE.
var logger = logging.Discard()

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "probeql",
	Short:         "Hybrid static/dynamic queries over Java code",
	Long:          "probeql indexes Java sources into a SQLite xref index, compiles YAML queries into probe plans, and evaluates captured execution evidence.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		l, err := buildLogger()
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .probeql/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "debug logging to stderr")
	rootCmd.PersistentFlags().StringVar(&flagScripts, "scripts", "", "directory searched by script predicate imports")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(candidatesCmd)
	rootCmd.AddCommand(applyCmd)
}

// buildLogger honours --verbose first, then the level environment variable.
func buildLogger() (*slog.Logger, error) {
	if flagVerbose {
		return logging.New(os.Stderr, slog.LevelDebug), nil
	}
	level, err := logging.ParseLevel(os.Getenv(logging.EnvLevel))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", logging.EnvLevel, err)
	}
	return logging.New(os.Stderr, level), nil
}

var flagForce bool

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index Java sources into the xref database",
	Long:  "Parses .java files with tree-sitter and records declarations, call sites, field accesses and string constants. Unchanged files are skipped.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete database and reindex from scratch")
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	targetDir, err := resolveTargetDir(args)
	if err != nil {
		return outputError("index", err)
	}

	repoRoot := findRepoRoot(targetDir)
	dbPath := resolveDBPath(repoRoot)

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return outputError("index", fmt.Errorf("creating %s: %w", dbDir, err))
	}

	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError("index", fmt.Errorf("removing database for --force: %w", err))
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	engine, err := probeql.New(dbPath, probeql.WithEngineLogger(logger))
	if err != nil {
		return outputError("index", fmt.Errorf("creating engine: %w", err))
	}
	defer engine.Close()

	stats, err := engine.IndexDirectory(context.Background(), targetDir)
	if err != nil {
		return outputError("index", fmt.Errorf("indexing: %w", err))
	}

	fmt.Fprintf(os.Stderr, "Indexed %s in %s\n", targetDir, time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)

	return outputResult(CLIResult{Command: "index", Results: statsToCLI(stats, dbPath)})
}

// resolveTargetDir returns the absolute path of the directory to index.
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

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".probeql", "index.db")
}
