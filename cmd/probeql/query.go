package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/probeql"
	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/runtime"
	"github.com/jward/probeql/internal/staticfilter"
)

var flagResults string

var planCmd = &cobra.Command{
	Use:   "plan <query.yaml>",
	Short: "Compile a query and describe its probe plan",
	Long:  "Prints the static filter, probe set, capabilities and run budget of a query. Uses the xref index when the database exists.",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlan,
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates <query.yaml>",
	Short: "List methods that survive the static filter",
	Long:  "Runs the query's static filter over the xref index. Queries the index fully decides are answered directly as result rows.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCandidates,
}

var applyCmd = &cobra.Command{
	Use:   "apply <query.yaml>",
	Short: "Evaluate a query against captured execution evidence",
	Long:  "Reads probe results as JSON (an array or a single object) and applies the plan's post filter, projection, ordering and limit.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().StringVar(&flagResults, "results", "-", "captured results JSON file (- for stdin)")
}

// --- Helpers ---

// openEngine opens the index from the --db flag path (or default).
func openEngine() (*probeql.Engine, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'probeql index' first)", dbPath)
	}
	return probeql.New(dbPath, probeql.WithEngineLogger(logger))
}

// plannerOptions wires the CLI logger and script directory into a planner.
func plannerOptions() []probeql.PlannerOption {
	opts := []probeql.PlannerOption{probeql.WithLogger(logger)}
	if flagScripts != "" {
		opts = append(opts, probeql.WithScriptEvaluator(runtime.NewRuntime(
			runtime.WithLogger(logger),
			runtime.WithScriptsDir(flagScripts),
		)))
	}
	return opts
}

// compile loads a query file and plans it. A missing database is not an
// error here: the plan is built without an index and engine is nil.
func compile(path string) (*probeql.ProbePlan, *probeql.Engine, error) {
	q, err := ast.LoadQueryFile(path)
	if err != nil {
		return nil, nil, err
	}
	engine, err := openEngine()
	if err != nil {
		logger.Debug("planning without index", "error", err)
		plan, err := probeql.NewQueryPlanner(nil, plannerOptions()...).Plan(q)
		return plan, nil, err
	}
	plan, err := engine.Planner(plannerOptions()...).Plan(q)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return plan, engine, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// --- Commands ---

func runPlan(cmd *cobra.Command, args []string) error {
	plan, engine, err := compile(args[0])
	if err != nil {
		return outputError("plan", err)
	}
	if engine != nil {
		defer engine.Close()
	}
	return outputResult(CLIResult{Command: "plan", Results: probeql.Explain(plan)})
}

func runCandidates(cmd *cobra.Command, args []string) error {
	plan, engine, err := compile(args[0])
	if err != nil {
		return outputError("candidates", err)
	}
	if engine == nil {
		return outputError("candidates", fmt.Errorf("candidates: %w", staticfilter.ErrNoIndex))
	}
	defer engine.Close()
	ctx := context.Background()

	if probeql.StaticOnly(plan) {
		rows, err := probeql.StaticRows(ctx, plan, engine.Store())
		if err != nil {
			return outputError("candidates", err)
		}
		total := len(rows)
		return outputResult(CLIResult{Command: "candidates", Results: rows, TotalCount: &total})
	}

	cands, err := probeql.Candidates(ctx, plan, engine.Store())
	if err != nil {
		return outputError("candidates", err)
	}
	out := make([]CLICandidate, 0, len(cands))
	for _, c := range cands {
		out = append(out, candidateToCLI(c))
	}
	total := len(out)
	return outputResult(CLIResult{Command: "candidates", Results: out, TotalCount: &total})
}

func runApply(cmd *cobra.Command, args []string) error {
	results, err := readResults(flagResults)
	if err != nil {
		return outputError("apply", err)
	}
	plan, engine, err := compile(args[0])
	if err != nil {
		return outputError("apply", err)
	}
	if engine != nil {
		defer engine.Close()
	}

	rows := probeql.Evaluate(plan, results)
	logger.Debug("applied plan", "results", len(results), "rows", len(rows))
	return outputResult(CLIResult{Command: "apply", Results: rows})
}

// readResults decodes captured evidence from path, or stdin for "-".
func readResults(path string) ([]*probe.Result, error) {
	if path == "-" {
		return probe.ReadResults(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results: %w", err)
	}
	defer f.Close()
	return probe.ReadResults(f)
}
