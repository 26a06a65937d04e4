// Package planner runs a complete plan invocation: it loads the evaluation
// configurations, partitions them, deduplicates cache work, builds the job
// graph, persists the run directory and submits the jobs.
package planner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/config"
	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/internal/jobgraph"
	"yqhp/eval-fanout/internal/ledger"
	"yqhp/eval-fanout/internal/partition"
	"yqhp/eval-fanout/internal/scheduler"
	"yqhp/eval-fanout/internal/workdir"
)

// Options are the per-invocation inputs.
type Options struct {
	Files []string
	// RunID is generated when empty.
	RunID string

	// Overrides applied to every input configuration before partitioning.
	JSONBaseDir    string
	ColdataBaseDir string
	IOAuxFile      string
}

// Result describes one invocation.
type Result struct {
	RunID   string
	Workdir *workdir.Workdir
	Plans   []*partition.Plan
	Units   []*jobgraph.Unit
	// Ignored lists input files with an unsupported extension.
	Ignored  []string
	Dispatch *scheduler.Report
}

// Planner wires the pipeline together.
type Planner struct {
	cfg    *config.Config
	runner scheduler.CommandRunner
	logger *zap.Logger
}

// New creates a planner.
func New(cfg *config.Config, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{cfg: cfg, runner: scheduler.ExecRunner{}, logger: logger}
}

// WithRunner replaces the command runner used for staging and qsub.
func (p *Planner) WithRunner(r scheduler.CommandRunner) *Planner {
	p.runner = r
	return p
}

// Run executes the invocation. Configuration errors abort before anything is
// submitted. Submission errors are returned together with the result.
func (p *Planner) Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("no configuration files given")
	}
	runID := opts.RunID
	if runID == "" {
		runID = partition.NewRunID()
	}
	log := p.logger.With(zap.String("run_id", runID))

	wd, err := workdir.Create(p.cfg.Paths.TempDir, runID)
	if err != nil {
		return nil, err
	}
	log.Info("run directory created", zap.String("dir", wd.Root))

	partitioner := partition.New(partition.Options{
		RunID:         runID,
		SplitNetworks: p.cfg.Partition.SplitNetworks,
	}, log)
	led := ledger.New(runID, wd.DescriptorDir(), log)
	builder := jobgraph.NewBuilder(jobgraph.SettingsFromConfig(p.cfg, runID), log)

	result := &Result{RunID: runID, Workdir: wd}
	manifest := &workdir.Manifest{
		RunID:     runID,
		CreatedAt: time.Now(),
		Submitted: p.cfg.Scheduler.Submit,
	}
	canonicals := make(map[string]string)

	for _, file := range opts.Files {
		if !evalcfg.SupportedFile(file) {
			log.Warn("unsupported configuration file ignored", zap.String("file", file))
			result.Ignored = append(result.Ignored, file)
			continue
		}
		cfg, err := evalcfg.Load(file)
		if err != nil {
			return nil, err
		}
		applyOverrides(cfg, opts)

		plan, err := partitioner.Partition(cfg, evalcfg.Stem(file))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		files, canonical, err := wd.WritePlan(plan)
		if err != nil {
			return nil, err
		}
		units, err := builder.Build(plan, led, files)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		canonicals[plan.Stem] = canonical
		result.Plans = append(result.Plans, plan)
		result.Units = append(result.Units, units...)
		manifest.Configs = append(manifest.Configs, workdir.NewConfigEntry(file, plan, files, canonical))
	}
	if len(result.Plans) == 0 {
		return nil, fmt.Errorf("no usable configuration files given")
	}

	groups, err := jobgraph.GroupOutputs(result.Plans, canonicals)
	if err != nil {
		return nil, err
	}
	result.Units = append(result.Units, builder.BuildAssembly(groups)...)

	manifest.Units = result.Units
	if err := wd.WriteManifest(manifest); err != nil {
		return nil, err
	}

	sub := scheduler.NewGridEngine(scheduler.SettingsFromConfig(p.cfg, runID), wd.ScriptDir(), p.runner, log)
	report, err := scheduler.Dispatch(ctx, sub, result.Units, log)
	result.Dispatch = report
	log.Info("plan finished",
		zap.Int("units", len(result.Units)),
		zap.Int("submitted", len(report.Submitted)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("skipped", len(report.Skipped)))
	return result, err
}

func applyOverrides(cfg *evalcfg.Config, opts Options) {
	if opts.JSONBaseDir != "" {
		cfg.SetJSONBaseDir(opts.JSONBaseDir)
	}
	if opts.ColdataBaseDir != "" {
		cfg.SetColdataBaseDir(opts.ColdataBaseDir)
	}
	if opts.IOAuxFile != "" {
		cfg.SetIOAuxFile(opts.IOAuxFile)
	}
}
