// Package runtime evaluates Risor script predicates against the evidence
// captured by one execution.
package runtime

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/probeql/internal/logging"
	"github.com/jward/probeql/internal/probe"
)

// Runtime embeds a Risor VM. Scripts see the captured evidence as globals
// and may import helper modules from a scripts directory or fs.FS.
type Runtime struct {
	logger     *slog.Logger
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithLogger routes script log() output and evaluation diagnostics.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithScriptsDir resolves Risor import statements against dir.
func WithScriptsDir(dir string) RuntimeOption {
	return func(r *Runtime) {
		r.scriptsDir = dir
	}
}

// WithRuntimeFS resolves Risor import statements against fsys. It takes
// precedence over WithScriptsDir.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{logger: logging.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "runtime")
	return r
}

// EvalPredicate runs source with res exposed as globals. The script's final
// expression must be a bool.
func (r *Runtime) EvalPredicate(ctx context.Context, source string, res *probe.Result) (bool, error) {
	globals := r.buildGlobals(res)

	opts := make([]risor.Option, 0, len(globals)+1)
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	out, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return false, fmt.Errorf("runtime: script: %w", err)
	}
	b, ok := out.(*object.Bool)
	if !ok {
		return false, fmt.Errorf("runtime: script produced %s, want bool", out.Type())
	}
	return b.Value(), nil
}

// buildImporter returns a Risor importer for the configured script source,
// or nil when none is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// buildGlobals exposes the evidence of res and the helper builtins.
func (r *Runtime) buildGlobals(res *probe.Result) map[string]any {
	return map[string]any{
		"method":            object.NewString(res.MethodSignature()),
		"instruction_count": object.NewInt(res.InstructionCount()),
		"execution_time_ns": object.NewInt(res.ExecutionTimeNs()),
		"allocations":       allocationsObject(res),
		"calls":             callsObject(res),
		"fields":            fieldsObject(res),
		"strings_seen":      stringsObject(res),
		"exceptions":        exceptionsObject(res),
		"branches":          branchesObject(res),

		"alloc_count": makeAllocCountFn(res),
		"has_call":    makeHasCallFn(res),
		"has_string":  makeHasStringFn(res),
		"log":         makeLogFn(r.logger, res.MethodSignature()),
	}
}
