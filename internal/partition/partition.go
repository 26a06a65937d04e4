// Package partition splits an evaluation configuration into independent
// sub-configurations, one per model and, when allowed, per observation
// network. Each sub-configuration writes into its own output namespace.
package partition

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/internal/naming"
)

// ErrDuplicateOutputKey is returned when two sub-configurations of one
// invocation would share a file name.
var ErrDuplicateOutputKey = errors.New("duplicate sub-configuration output key")

// Options controls partitioning.
type Options struct {
	// RunID tags every output directory and job name of the invocation.
	// A fresh one is generated when empty.
	RunID string
	// SplitNetworks emits one sub-configuration per network and model
	// instead of one per model. Superobservations always disable it.
	SplitNetworks bool
}

// SubConfig is one partition. It is not modified after creation.
type SubConfig struct {
	Index      int
	Model      string
	Networks   []string
	NetworkTag string
	// OutputKey is the file stem of the persisted sub-configuration.
	OutputKey string
	// CacheHint lists the job-name globs the analysis job waits for.
	CacheHint []string
	// Source is the stem of the configuration file the partition came from.
	Source string

	cfg *evalcfg.Config
}

// Config returns the partitioned configuration. Callers must not modify it.
func (s *SubConfig) Config() *evalcfg.Config {
	return s.cfg
}

// JSONOutputDir is the rewritten json_basedir of the partition.
func (s *SubConfig) JSONOutputDir() string {
	return s.cfg.JSONBaseDir()
}

// Plan is the result of partitioning one configuration.
type Plan struct {
	RunID string
	// Stem is the source configuration file stem.
	Stem string
	// Canonical is the validated, unpartitioned configuration.
	Canonical  *evalcfg.Config
	SubConfigs []*SubConfig
}

// CacheHints maps each output key to the globs its analysis job waits for.
func (p *Plan) CacheHints() map[string][]string {
	hints := make(map[string][]string, len(p.SubConfigs))
	for _, sc := range p.SubConfigs {
		hints[sc.OutputKey] = append([]string(nil), sc.CacheHint...)
	}
	return hints
}

// Partitioner assigns partition indices across every configuration of one
// invocation, so output directories never collide.
type Partitioner struct {
	runID  string
	split  bool
	next   int
	keys   map[string]struct{}
	logger *zap.Logger
}

// NewRunID returns a fresh twelve character run token.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// New creates a partitioner.
func New(opts Options, logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := opts.RunID
	if runID == "" {
		runID = NewRunID()
	}
	return &Partitioner{
		runID:  runID,
		split:  opts.SplitNetworks,
		next:   1,
		keys:   make(map[string]struct{}),
		logger: logger,
	}
}

// RunID returns the run token shared by every partition.
func (p *Partitioner) RunID() string {
	return p.runID
}

// Partition splits cfg. stem names the source file and prefixes every
// output key. On error no index is consumed and nothing is returned.
func (p *Partitioner) Partition(cfg *evalcfg.Config, stem string) (*Plan, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	superObs := cfg.HasSuperObs()
	split := p.split && !superObs
	if p.split && superObs {
		p.logger.Info("superobservation present, keeping all networks together",
			zap.String("config", stem))
	}

	canonical := cfg.Clone()
	plan := &Plan{RunID: p.runID, Stem: stem, Canonical: canonical}
	index := p.next
	keys := make(map[string]struct{})

	add := func(model string, networks []string, tag string) error {
		sub := canonical.Clone()
		sub.RestrictModel(model)
		if split {
			sub.RestrictNetworks(networks...)
		}
		suffix := naming.RunDirSuffix(p.runID, index)
		sub.SetJSONBaseDir(path.Join(canonical.JSONBaseDir(), suffix))
		sub.SetColdataBaseDir(path.Join(canonical.ColdataBaseDir(), suffix))

		key := naming.Sanitize(fmt.Sprintf("%s_%s_%s", stem, model, tag))
		if _, dup := p.keys[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOutputKey, key)
		}
		if _, dup := keys[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOutputKey, key)
		}
		keys[key] = struct{}{}

		plan.SubConfigs = append(plan.SubConfigs, &SubConfig{
			Index:      index,
			Model:      model,
			Networks:   networks,
			NetworkTag: tag,
			OutputKey:  key,
			CacheHint:  cacheHint(p.runID, sub),
			Source:     stem,
			cfg:        sub,
		})
		index++
		return nil
	}

	for _, model := range canonical.Models() {
		if split {
			for _, network := range canonical.NetworkKeys() {
				if err := add(model, []string{network}, network); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := add(model, canonical.NetworkKeys(), naming.AllNetworks); err != nil {
			return nil, err
		}
	}

	p.next = index
	for key := range keys {
		p.keys[key] = struct{}{}
	}

	p.logger.Info("configuration partitioned",
		zap.String("config", stem),
		zap.String("run_id", p.runID),
		zap.Int("sub_configs", len(plan.SubConfigs)),
		zap.Bool("per_network", split))

	return plan, nil
}

// cacheHint names the cache jobs the analysis of sub waits for: one glob per
// distinct dataset among its cacheable networks.
func cacheHint(runID string, sub *evalcfg.Config) []string {
	var hint []string
	seen := make(map[string]struct{})
	for _, n := range sub.CacheNetworks() {
		if _, ok := seen[n.ObsID]; ok {
			continue
		}
		seen[n.ObsID] = struct{}{}
		hint = append(hint, naming.CacheGlob(runID, n.ObsID))
	}
	return hint
}
