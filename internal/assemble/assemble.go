// Package assemble combines the output trees of partitioned evaluation jobs
// into one experiment tree.
//
// A source is a run directory holding {proj}/experiments.json and the
// experiment subtree {proj}/{exp}/. The target is a project directory; the
// assembled experiment ends up in {OutDir}/{exp} and the manifest in
// {OutDir}/experiments.json.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/duke-git/lancet/v2/fileutil"
	"github.com/yargevad/filepathx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"yqhp/eval-fanout/pkg/jsondoc"
)

// ManifestFile is the experiment list of a project.
const ManifestFile = "experiments.json"

var (
	// ErrNoSources is returned when nothing is to be assembled.
	ErrNoSources = errors.New("no source directories")
	// ErrLayout is returned when a source does not have the expected layout.
	ErrLayout = errors.New("unexpected output layout")
)

// Options control one assembly.
type Options struct {
	// OutDir is the target project directory.
	OutDir  string
	Sources []string
	// ProjectID and ExperimentID locate the experiment inside each source.
	// When empty they are discovered from the first source.
	ProjectID    string
	ExperimentID string

	CombineMasks []string
	ConfigMasks  []string
	ExcludeMasks []string

	// Reset removes the target experiment subtree first.
	Reset   bool
	Workers int
}

// Report summarises one assembly.
type Report struct {
	Sources      []string
	ProjectID    string
	ExperimentID string
	Copied       int64
	Merged       int64
	Kept         int64
	Excluded     int64
	// Errors holds the per-file failures; those files were skipped.
	Errors []error
}

// Err combines the per-file failures.
func (r *Report) Err() error {
	return multierr.Combine(r.Errors...)
}

// Assembler merges source trees into a target tree.
type Assembler struct {
	logger *zap.Logger
}

// New creates an assembler.
func New(logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{logger: logger}
}

// Assemble merges opts.Sources into opts.OutDir. Sources are processed in
// lexical order and a later source overwrites non-object values of an earlier
// one. Per-file failures are logged and reported; the returned error is set
// only when the assembly as a whole could not run.
func (a *Assembler) Assemble(ctx context.Context, opts Options) (*Report, error) {
	if len(opts.Sources) == 0 {
		return nil, ErrNoSources
	}
	if opts.OutDir == "" {
		return nil, errors.New("output directory is required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	exclude, err := compileMasks(opts.ExcludeMasks)
	if err != nil {
		return nil, err
	}
	configs, err := compileMasks(opts.ConfigMasks)
	if err != nil {
		return nil, err
	}
	combine, err := compileMasks(opts.CombineMasks)
	if err != nil {
		return nil, err
	}

	sources := append([]string(nil), opts.Sources...)
	sort.Strings(sources)

	proj, exp, err := discover(sources[0], opts.ProjectID, opts.ExperimentID)
	if err != nil {
		return nil, err
	}

	r := &run{
		opts:         opts,
		logger:       a.logger.With(zap.String("project", proj), zap.String("experiment", exp)),
		proj:         proj,
		exp:          exp,
		expDir:       filepath.Join(opts.OutDir, exp),
		targetCfg:    fmt.Sprintf("cfg_%s_%s.json", filepath.Base(opts.OutDir), exp),
		exclude:      exclude,
		configs:      configs,
		combineMasks: combine,
		report: &Report{
			Sources:      sources,
			ProjectID:    proj,
			ExperimentID: exp,
		},
	}

	if opts.Reset {
		r.logger.Info("removing existing experiment", zap.String("dir", r.expDir))
		if err := os.RemoveAll(r.expDir); err != nil {
			return nil, fmt.Errorf("reset %s: %w", r.expDir, err)
		}
	}

	rest := sources
	if !fileutil.IsExist(r.expDir) {
		if err := r.seed(sources[0]); err != nil {
			return nil, err
		}
		rest = sources[1:]
	}

	for _, src := range rest {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		if err := r.mergeSource(ctx, src); err != nil {
			return r.report, err
		}
	}

	r.logger.Info("assembly finished",
		zap.Int("sources", len(sources)),
		zap.Int64("copied", r.report.Copied),
		zap.Int64("merged", r.report.Merged),
		zap.Int("errors", len(r.report.Errors)))
	return r.report, nil
}

// discover fills in the project and experiment from the single
// subdirectories of src.
func discover(src, proj, exp string) (string, string, error) {
	if proj == "" {
		d, err := singleDir(src)
		if err != nil {
			return "", "", err
		}
		proj = d
	}
	if exp == "" {
		d, err := singleDir(filepath.Join(src, proj))
		if err != nil {
			return "", "", err
		}
		exp = d
	}
	return proj, exp, nil
}

func singleDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) != 1 {
		return "", fmt.Errorf("%w: %s holds %d directories, expected 1", ErrLayout, dir, len(dirs))
	}
	return dirs[0], nil
}

type run struct {
	opts      Options
	logger    *zap.Logger
	proj      string
	exp       string
	expDir    string
	targetCfg string

	exclude      maskSet
	configs      maskSet
	combineMasks maskSet

	mu     sync.Mutex
	report *Report
}

func (r *run) fail(file string, err error) {
	r.logger.Error("file skipped", zap.String("file", file), zap.Error(err))
	r.mu.Lock()
	r.report.Errors = append(r.report.Errors, fmt.Errorf("%s: %w", file, err))
	r.mu.Unlock()
}

// seed copies the experiment of the first source verbatim and renames its
// configuration snapshot after the target project directory.
func (r *run) seed(src string) error {
	srcExp := filepath.Join(src, r.proj, r.exp)
	if !fileutil.IsDir(srcExp) {
		return fmt.Errorf("%w: %s is not a directory", ErrLayout, srcExp)
	}
	r.logger.Info("seeding experiment", zap.String("source", src), zap.String("dir", r.expDir))

	err := filepath.WalkDir(srcExp, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcExp, p)
		if err != nil {
			return err
		}
		dst := filepath.Join(r.expDir, rel)
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		atomic.AddInt64(&r.report.Copied, 1)
		return fileutil.CopyFile(p, dst)
	})
	if err != nil {
		return fmt.Errorf("copy %s: %w", srcExp, err)
	}

	ownCfg := filepath.Join(r.expDir, fmt.Sprintf("cfg_%s_%s.json", r.proj, r.exp))
	target := filepath.Join(r.expDir, r.targetCfg)
	if ownCfg != target && fileutil.IsExist(ownCfg) {
		if err := os.Rename(ownCfg, target); err != nil {
			return fmt.Errorf("rename configuration snapshot: %w", err)
		}
	}

	r.mergeManifest(src)
	return nil
}

// mergeManifest folds the project manifest of src into the target manifest.
func (r *run) mergeManifest(src string) {
	in := filepath.Join(src, r.proj, ManifestFile)
	if !fileutil.IsExist(in) {
		r.logger.Warn("source has no manifest", zap.String("file", in))
		return
	}
	r.combine(in, filepath.Join(r.opts.OutDir, ManifestFile))
}

// mergeSource walks the experiment subtree of src and folds every JSON file
// into the target. Files are handled on a bounded worker pool that is joined
// before returning; configuration snapshots all land in one target file and
// are merged sequentially afterwards.
func (r *run) mergeSource(ctx context.Context, src string) error {
	inpath := filepath.Join(src, r.proj, r.exp)
	if !fileutil.IsDir(inpath) {
		r.fail(inpath, fmt.Errorf("%w: experiment directory missing", ErrLayout))
		return nil
	}
	r.logger.Info("merging source", zap.String("source", src))
	r.mergeManifest(src)

	files, err := listJSON(inpath)
	if err != nil {
		r.fail(inpath, err)
		return nil
	}

	var configs []string
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)

	for _, file := range files {
		file := file // per-iteration copy for the goroutines below (go < 1.22)
		rel, err := filepath.Rel(inpath, file)
		if err != nil {
			r.fail(file, err)
			continue
		}
		rel = filepath.ToSlash(rel)

		switch {
		case r.exclude.Match(rel):
			atomic.AddInt64(&r.report.Excluded, 1)
			r.logger.Debug("file excluded", zap.String("file", file))
		case r.configs.Match(rel):
			configs = append(configs, file)
		case r.combineMasks.Match(rel):
			dst := filepath.Join(r.expDir, filepath.FromSlash(rel))
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.combine(file, dst)
				return nil
			})
		default:
			dst := filepath.Join(r.expDir, filepath.FromSlash(rel))
			g.Go(func() error {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.copyIfAbsent(file, dst)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	target := filepath.Join(r.expDir, r.targetCfg)
	for _, file := range configs {
		r.combine(file, target)
	}
	return nil
}

// combine deep-merges in into dst, or copies it when dst does not exist.
func (r *run) combine(in, dst string) {
	if !fileutil.IsExist(dst) {
		r.copyFile(in, dst)
		return
	}
	base, err := jsondoc.ReadFile(dst)
	if err != nil {
		r.fail(dst, err)
		return
	}
	incoming, err := jsondoc.ReadFile(in)
	if err != nil {
		r.fail(in, err)
		return
	}
	if err := jsondoc.WriteFile(dst, jsondoc.MergeValue(base, incoming)); err != nil {
		r.fail(dst, err)
		return
	}
	atomic.AddInt64(&r.report.Merged, 1)
	r.logger.Debug("file merged", zap.String("file", dst), zap.String("source", in))
}

func (r *run) copyIfAbsent(in, dst string) {
	if fileutil.IsExist(dst) {
		atomic.AddInt64(&r.report.Kept, 1)
		return
	}
	r.copyFile(in, dst)
}

func (r *run) copyFile(in, dst string) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		r.fail(dst, err)
		return
	}
	if err := fileutil.CopyFile(in, dst); err != nil {
		r.fail(in, err)
		return
	}
	atomic.AddInt64(&r.report.Copied, 1)
	r.logger.Debug("file copied", zap.String("file", dst), zap.String("source", in))
}

// listJSON returns the regular *.*json files below dir, sorted.
func listJSON(dir string) ([]string, error) {
	matches, err := filepathx.Glob(filepath.Join(dir, "**", "*.*json"))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(matches))
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		m = filepath.Clean(m)
		if seen[m] {
			continue
		}
		seen[m] = true
		if ok, _ := filepath.Match("*.*json", filepath.Base(m)); !ok {
			continue
		}
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
