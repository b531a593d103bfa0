package probeql

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jward/probeql/internal/indexer"
	"github.com/jward/probeql/internal/logging"
	"github.com/jward/probeql/internal/store"
)

const (
	metaIndexerVersion = "indexer_version"
	metaDeclPrefix     = "decl:"
)

// Engine builds and serves the xref index: Java file discovery, change
// detection, extraction and planner access.
type Engine struct {
	store  *store.Store
	logger *slog.Logger

	// useParallel enables the worker-pool extraction pipeline.
	useParallel bool
	workers     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallel controls parallel extraction. When true (default), IndexFiles
// parses on a worker pool while a single writer commits to SQLite. Set to
// false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers caps the extraction worker pool. Zero or less means one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// IndexStats counts what one indexing pass did.
type IndexStats struct {
	Indexed             int `json:"indexed"`
	Unchanged           int `json:"unchanged"`
	Removed             int `json:"removed"`
	Failed              int `json:"failed"`
	DeclarationsChanged int `json:"declarations_changed"`
}

// New creates an Engine backed by a SQLite database at dbPath. An index
// built by a different indexer version is cleared so every file is
// re-extracted.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("probeql: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("probeql: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		logger:      logging.Discard(),
		useParallel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")

	if err := e.checkIndexerVersion(); err != nil {
		s.Close()
		return nil, err
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Planner returns a QueryPlanner reading this engine's index.
func (e *Engine) Planner(opts ...PlannerOption) *QueryPlanner {
	return NewQueryPlanner(e.store, append([]PlannerOption{WithLogger(e.logger)}, opts...)...)
}

func (e *Engine) checkIndexerVersion() error {
	stored, err := e.store.GetMetadata(metaIndexerVersion)
	if err != nil {
		return fmt.Errorf("probeql: %w", err)
	}
	if stored != "" && stored != indexer.Version {
		e.logger.Info("indexer version changed, clearing index", "stored", stored, "current", indexer.Version)
		if _, err := e.store.PruneFiles(nil); err != nil {
			return fmt.Errorf("probeql: clear stale index: %w", err)
		}
	}
	if stored != indexer.Version {
		if err := e.store.SetMetadata(metaIndexerVersion, indexer.Version); err != nil {
			return fmt.Errorf("probeql: %w", err)
		}
	}
	return nil
}

// IndexFiles indexes the given file paths. Non-Java paths are ignored and
// unchanged files (same content hash) are skipped.
//
// Errors on individual files are counted and logged; processing continues
// and the first error is returned at the end.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) (IndexStats, error) {
	if e.useParallel {
		return e.IndexFilesParallel(ctx, paths)
	}
	return e.indexFilesSerial(ctx, paths)
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) (IndexStats, error) {
	var stats IndexStats
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item, skip, err := e.prepareFile(path, &stats)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		fi, err := indexer.ExtractJava(ctx, item.path, item.content)
		if err := e.commitFile(item, fi, err, &stats); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return stats, fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return stats, nil
}

// workItem holds everything an extraction worker needs.
type workItem struct {
	path    string
	content []byte
	fileID  int64
	oldDecl string
}

// prepareFile hashes path and replaces its file record when the content
// changed. skip is true for unsupported or unchanged files.
func (e *Engine) prepareFile(path string, stats *IndexStats) (workItem, bool, error) {
	if !indexer.Supported(path) {
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		stats.Unchanged++
		return workItem{}, true, nil
	}

	oldDecl, err := e.store.GetMetadata(metaDeclPrefix + path)
	if err != nil {
		return workItem{}, false, err
	}
	if existing != nil {
		if err := e.store.DeleteFile(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	fileID, err := e.store.InsertFile(&store.File{
		Path:        path,
		Hash:        hash,
		LastIndexed: time.Now(),
	})
	if err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{path: path, content: content, fileID: fileID, oldDecl: oldDecl}, false, nil
}

// commitFile writes an extraction result. A failed extraction drops the
// file record so the next pass retries it.
func (e *Engine) commitFile(item workItem, fi *store.FileIndex, extractErr error, stats *IndexStats) error {
	fail := func(err error) error {
		stats.Failed++
		if derr := e.store.DeleteFile(item.fileID); derr != nil {
			e.logger.Warn("drop failed file", "path", item.path, "error", derr)
		}
		e.logger.Warn("index file failed", "path", item.path, "error", err)
		return err
	}
	if extractErr != nil {
		return fail(fmt.Errorf("extract %s: %w", item.path, extractErr))
	}
	if err := e.store.CommitFileIndex(item.fileID, fi); err != nil {
		return fail(fmt.Errorf("commit %s: %w", item.path, err))
	}

	decl := store.DeclarationHash(fi)
	if item.oldDecl != "" && item.oldDecl != decl {
		stats.DeclarationsChanged++
	}
	if err := e.store.SetMetadata(metaDeclPrefix+item.path, decl); err != nil {
		return fail(err)
	}
	stats.Indexed++
	e.logger.Debug("indexed file", "path", item.path, "classes", len(fi.Classes),
		"methods", fi.MethodCount(), "xrefs", len(fi.Xrefs))
	return nil
}

// skipDirs are excluded from the filesystem walk.
var skipDirs = map[string]bool{
	"build":  true,
	"target": true,
	"out":    true,
}

// IndexDirectory indexes every Java file under root and removes index
// entries for files that no longer exist. If root is inside a git
// repository, git ls-files is used so .gitignore is respected; otherwise
// the filesystem is walked, skipping hidden and build output directories.
func (e *Engine) IndexDirectory(ctx context.Context, root string) (IndexStats, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return IndexStats{}, fmt.Errorf("resolve root: %w", err)
	}
	paths, err := e.gitListFiles(ctx, root)
	if err != nil {
		e.logger.Debug("git ls-files unavailable, walking", "root", root, "error", err)
		paths, err = e.walkListFiles(root)
		if err != nil {
			return IndexStats{}, err
		}
	}
	e.logger.Info("indexing", "root", root, "files", len(paths))

	stats, err := e.IndexFiles(ctx, paths)
	removed, perr := e.store.PruneFiles(paths)
	stats.Removed = removed
	if err != nil {
		return stats, err
	}
	if perr != nil {
		return stats, fmt.Errorf("prune: %w", perr)
	}
	return stats, nil
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) Java files under root.
func (e *Engine) gitListFiles(ctx context.Context, root string) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard", "--", "*.java")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if indexer.Supported(absPath) {
			paths = append(paths, absPath)
		}
	}
	return paths, nil
}

// walkListFiles discovers Java files by walking the filesystem.
func (e *Engine) walkListFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skipDirs[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if indexer.Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
