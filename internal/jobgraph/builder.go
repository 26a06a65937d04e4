package jobgraph

import (
	"fmt"
	"path"
	"path/filepath"

	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/config"
	"yqhp/eval-fanout/internal/ledger"
	"yqhp/eval-fanout/internal/naming"
	"yqhp/eval-fanout/internal/partition"
)

// Settings parameterise the generated units.
type Settings struct {
	RunID string
	// Cache enables cache units and the analysis waits on them.
	Cache      bool
	Queue      string
	CacheQueue string

	CacheResources    Resources
	AnalysisResources Resources
	AssemblyResources Resources

	Evaluator      string
	CacheGenerator string
	// Self is the eval-fanout command run by assembly units.
	Self string
}

// SettingsFromConfig derives unit settings from the tool configuration.
func SettingsFromConfig(cfg *config.Config, runID string) Settings {
	res := func(ram int) Resources {
		return Resources{CPUs: cfg.Resources.CPUs, RAMGB: ram, Runtime: cfg.Resources.Runtime}
	}
	return Settings{
		RunID:             runID,
		Cache:             cfg.Partition.Cache,
		Queue:             cfg.Scheduler.Queue,
		CacheQueue:        cfg.Scheduler.CacheQueue,
		CacheResources:    res(cfg.Resources.CacheRAMGB),
		AnalysisResources: res(cfg.Resources.AnalysisRAMGB),
		AssemblyResources: res(cfg.Resources.AssemblyRAMGB),
		Evaluator:         cfg.Commands.Evaluator,
		CacheGenerator:    cfg.Commands.CacheGenerator,
		Self:              cfg.Commands.Self,
	}
}

// Builder creates job units for one run.
type Builder struct {
	settings Settings
	logger   *zap.Logger
}

// NewBuilder creates a builder.
func NewBuilder(settings Settings, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{settings: settings, logger: logger}
}

// Build returns the cache units followed by the analysis units of plan.
// files maps each sub-configuration output key to its persisted file.
// Cache requirements are merged into led, which is shared by every plan of
// the run; a cache unit is emitted only for variables the ledger has not seen.
func (b *Builder) Build(plan *partition.Plan, led *ledger.Ledger, files map[string]string) ([]*Unit, error) {
	var caches, analyses []*Unit

	for _, sc := range plan.SubConfigs {
		file, ok := files[sc.OutputKey]
		if !ok {
			return nil, fmt.Errorf("no file recorded for sub-configuration %s", sc.OutputKey)
		}

		if b.settings.Cache {
			units, err := b.cacheUnits(sc, led)
			if err != nil {
				return nil, err
			}
			caches = append(caches, units...)
		}

		unit := &Unit{
			Name:        naming.AnalysisJob(b.settings.RunID, sc.Index, sc.Model, sc.NetworkTag),
			Kind:        KindAnalysis,
			Queue:       b.settings.Queue,
			Resources:   b.settings.AnalysisResources,
			Commands:    []string{commandLine(b.settings.Evaluator, filepath.Base(file))},
			Attachments: []string{file},
		}
		if b.settings.Cache {
			unit.WaitFor = append([]string(nil), sc.CacheHint...)
		}
		analyses = append(analyses, unit)
	}

	b.logger.Info("job graph built",
		zap.String("config", plan.Stem),
		zap.Int("cache_units", len(caches)),
		zap.Int("analysis_units", len(analyses)))

	return append(caches, analyses...), nil
}

func (b *Builder) cacheUnits(sc *partition.SubConfig, led *ledger.Ledger) ([]*Unit, error) {
	var units []*Unit
	for _, n := range sc.Config().CacheNetworks() {
		decision, err := led.MergeRequirement(n.ObsID, n.Variables, n.DataSource)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sc.OutputKey, err)
		}
		if decision.Action == ledger.Skip {
			continue
		}
		for _, variable := range decision.Variables {
			args := []string{"--vars", variable, "-o", n.ObsID}
			var attachments []string
			if decision.DescriptorFile != "" {
				args = append(args, "--obsconfigfile", filepath.Base(decision.DescriptorFile))
				attachments = []string{decision.DescriptorFile}
			}
			units = append(units, &Unit{
				Name:        naming.CacheJob(b.settings.RunID, n.ObsID, variable),
				Kind:        KindCache,
				Queue:       b.settings.CacheQueue,
				Resources:   b.settings.CacheResources,
				Commands:    []string{commandLine(b.settings.CacheGenerator, args...)},
				Attachments: attachments,
			})
		}
	}
	return units, nil
}

// Group is one assembly target: every sub-job output of one experiment.
type Group struct {
	ProjectID    string
	ExperimentID string
	// OutDir is the project level output directory.
	OutDir string
	// Inputs are the per-partition json_basedir directories.
	Inputs []string
	// CanonicalConfig is the unpartitioned configuration file used for
	// reordering.
	CanonicalConfig string
}

// ExperimentDir is the assembled experiment subtree.
func (g *Group) ExperimentDir() string {
	return path.Join(g.OutDir, g.ExperimentID)
}

// GroupOutputs groups the partitions of every plan by output location,
// project and experiment. canonicalFiles maps plan stems to the persisted
// canonical configuration. Group order follows first appearance.
func GroupOutputs(plans []*partition.Plan, canonicalFiles map[string]string) ([]*Group, error) {
	var groups []*Group
	index := make(map[[3]string]*Group)

	for _, plan := range plans {
		if len(plan.SubConfigs) == 0 {
			continue
		}
		canonical, ok := canonicalFiles[plan.Stem]
		if !ok {
			return nil, fmt.Errorf("no canonical configuration recorded for %s", plan.Stem)
		}

		cfg := plan.Canonical
		key := [3]string{cfg.JSONBaseDir(), cfg.ProjectID(), cfg.ExperimentID()}
		g, ok := index[key]
		if !ok {
			g = &Group{
				ProjectID:       cfg.ProjectID(),
				ExperimentID:    cfg.ExperimentID(),
				OutDir:          path.Join(cfg.JSONBaseDir(), cfg.ProjectID()),
				CanonicalConfig: canonical,
			}
			index[key] = g
			groups = append(groups, g)
		}
		for _, sc := range plan.SubConfigs {
			g.Inputs = append(g.Inputs, sc.JSONOutputDir())
		}
	}
	return groups, nil
}

// BuildAssembly returns one assembly unit per group. Each waits on every job
// of the run, then assembles and reorders the experiment. Units sharing an
// output directory also wait on each other, since they update the same
// experiments.json.
func (b *Builder) BuildAssembly(groups []*Group) []*Unit {
	units := make([]*Unit, 0, len(groups))
	previous := make(map[string]string)
	for i, g := range groups {
		name := naming.AssemblyJob(b.settings.RunID, i+1)
		waitFor := []string{naming.RunGlob(b.settings.RunID)}
		if prev, ok := previous[g.OutDir]; ok {
			waitFor = append(waitFor, prev)
		}
		previous[g.OutDir] = name

		assemble := []string{"assemble", "-o", g.OutDir, "--project", g.ProjectID, "--experiment", g.ExperimentID}
		assemble = append(assemble, g.Inputs...)
		reorder := []string{"reorder", filepath.Base(g.CanonicalConfig), g.ExperimentDir()}

		units = append(units, &Unit{
			Name:      name,
			Kind:      KindAssembly,
			Queue:     b.settings.Queue,
			Resources: b.settings.AssemblyResources,
			WaitFor:   waitFor,
			Commands: []string{
				commandLine(b.settings.Self, assemble...),
				commandLine(b.settings.Self, reorder...),
			},
			Attachments: []string{g.CanonicalConfig},
			Inputs:      append([]string(nil), g.Inputs...),
			OutDir:      g.OutDir,
		})
		b.logger.Info("assembly unit built",
			zap.String("project", g.ProjectID),
			zap.String("experiment", g.ExperimentID),
			zap.Int("inputs", len(g.Inputs)))
	}
	return units
}
