// Package workdir holds the persisted state of one run: the sub-configuration
// files, canonical configuration snapshots, cache descriptors, job scripts and
// the plan manifest.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"

	"yqhp/eval-fanout/internal/jobgraph"
	"yqhp/eval-fanout/internal/partition"
)

// ManifestFile is the plan manifest written into the run directory.
const ManifestFile = "plan.json"

const (
	configDir     = "configs"
	descriptorDir = "descriptors"
	scriptDir     = "scripts"
)

// Workdir is the run directory.
type Workdir struct {
	Root  string
	RunID string
}

// Create creates the run directory below base.
func Create(base, runID string) (*Workdir, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	w := &Workdir{Root: filepath.Join(base, "eval-fanout."+runID), RunID: runID}
	for _, dir := range []string{w.Root, w.ConfigDir(), w.DescriptorDir(), w.ScriptDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create run directory: %w", err)
		}
	}
	return w, nil
}

func (w *Workdir) ConfigDir() string     { return filepath.Join(w.Root, configDir) }
func (w *Workdir) DescriptorDir() string { return filepath.Join(w.Root, descriptorDir) }
func (w *Workdir) ScriptDir() string     { return filepath.Join(w.Root, scriptDir) }
func (w *Workdir) ManifestPath() string  { return filepath.Join(w.Root, ManifestFile) }

// SubConfigPath is the file of the sub-configuration with the given output key.
func (w *Workdir) SubConfigPath(outputKey string) string {
	return filepath.Join(w.ConfigDir(), outputKey+".json")
}

// CanonicalPath is the snapshot of the unpartitioned configuration stem.
func (w *Workdir) CanonicalPath(stem string) string {
	return filepath.Join(w.ConfigDir(), "canonical_"+stem+".json")
}

// WritePlan persists the canonical configuration and every sub-configuration
// of plan. It returns the sub-configuration files keyed by output key and the
// canonical file.
func (w *Workdir) WritePlan(plan *partition.Plan) (map[string]string, string, error) {
	canonical := w.CanonicalPath(plan.Stem)
	if err := plan.Canonical.WriteFile(canonical); err != nil {
		return nil, "", fmt.Errorf("write canonical configuration: %w", err)
	}
	files := make(map[string]string, len(plan.SubConfigs))
	for _, sc := range plan.SubConfigs {
		file := w.SubConfigPath(sc.OutputKey)
		if err := sc.Config().WriteFile(file); err != nil {
			return nil, "", fmt.Errorf("write sub-configuration %s: %w", sc.OutputKey, err)
		}
		files[sc.OutputKey] = file
	}
	return files, canonical, nil
}

// Manifest records what a plan invocation produced.
type Manifest struct {
	RunID     string           `json:"run_id"`
	CreatedAt time.Time        `json:"created_at"`
	Configs   []ConfigEntry    `json:"configs"`
	Units     []*jobgraph.Unit `json:"units"`
	// Submitted is false for dry runs.
	Submitted bool `json:"submitted"`
}

// ConfigEntry describes one input configuration.
type ConfigEntry struct {
	Source     string           `json:"source"`
	Stem       string           `json:"stem"`
	Project    string           `json:"proj_id"`
	Experiment string           `json:"exp_id"`
	Canonical  string           `json:"canonical"`
	SubConfigs []SubConfigEntry `json:"sub_configs"`
}

// SubConfigEntry describes one persisted partition.
type SubConfigEntry struct {
	Index     int      `json:"index"`
	Model     string   `json:"model"`
	Networks  []string `json:"networks"`
	OutputKey string   `json:"output_key"`
	File      string   `json:"file"`
	OutputDir string   `json:"output_dir"`
	CacheHint []string `json:"cache_hint,omitempty"`
}

// NewConfigEntry summarises a persisted plan.
func NewConfigEntry(source string, plan *partition.Plan, files map[string]string, canonical string) ConfigEntry {
	e := ConfigEntry{
		Source:     source,
		Stem:       plan.Stem,
		Project:    plan.Canonical.ProjectID(),
		Experiment: plan.Canonical.ExperimentID(),
		Canonical:  canonical,
	}
	for _, sc := range plan.SubConfigs {
		e.SubConfigs = append(e.SubConfigs, SubConfigEntry{
			Index:     sc.Index,
			Model:     sc.Model,
			Networks:  sc.Networks,
			OutputKey: sc.OutputKey,
			File:      files[sc.OutputKey],
			OutputDir: sc.JSONOutputDir(),
			CacheHint: sc.CacheHint,
		})
	}
	return e
}

// WriteManifest writes m into the run directory.
func (w *Workdir) WriteManifest(m *Manifest) error {
	data, err := sonic.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(w.ManifestPath(), data, 0o644)
}

// ReadManifest reads a plan manifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := sonic.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}
