// Package reorder restores the display order of variables and models in the
// assembled experiment files. Partitioned runs write their results in
// completion order; the web interface shows keys in file order.
package reorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/yargevad/filepathx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/pkg/jsondoc"
)

const (
	MenuFile         = "menu.json"
	HeatmapPattern   = "hm/glob_stats_*.json"
	HeatmapTSPattern = "hm/ts/*.json"
)

// Order is the canonical display order.
type Order struct {
	Variables []string
	Models    []string
}

// OrderFromConfig takes the display order of an unpartitioned configuration.
func OrderFromConfig(cfg *evalcfg.Config) Order {
	return Order{Variables: cfg.VariableOrder(), Models: cfg.ModelOrder()}
}

// Targets selects the file families to rewrite.
type Targets struct {
	Menu      bool
	Heatmap   bool
	HeatmapTS bool
}

// AllTargets rewrites every order-sensitive file.
var AllTargets = Targets{Menu: true, Heatmap: true, HeatmapTS: true}

// Report lists what a reconciliation touched.
type Report struct {
	Updated []string
	// Errors are the files that could not be read or written; they were
	// left unchanged.
	Errors []error
}

// Err combines the per-file failures.
func (r *Report) Err() error {
	return multierr.Combine(r.Errors...)
}

// Reconciler rewrites experiment files in canonical order.
type Reconciler struct {
	logger *zap.Logger
}

// New creates a reconciler.
func New(logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{logger: logger}
}

// ReconcileOrder rewrites the selected files below expDir in place.
// Unreadable or malformed files are logged, reported and skipped.
func (r *Reconciler) ReconcileOrder(expDir string, order Order, targets Targets) (*Report, error) {
	info, err := os.Stat(expDir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", expDir)
	}

	report := &Report{}
	if targets.Menu {
		menu := filepath.Join(expDir, MenuFile)
		if _, err := os.Stat(menu); errors.Is(err, os.ErrNotExist) {
			r.logger.Warn("no menu file", zap.String("file", menu))
		} else {
			r.rewrite(report, menu, func(doc *jsondoc.Object) *jsondoc.Object {
				return ReorderMenu(doc, order)
			})
		}
	}
	if targets.Heatmap {
		for _, file := range r.glob(report, expDir, HeatmapPattern) {
			r.rewrite(report, file, func(doc *jsondoc.Object) *jsondoc.Object {
				return ReorderHeatmap(doc, order)
			})
		}
	}
	if targets.HeatmapTS {
		for _, file := range r.glob(report, expDir, HeatmapTSPattern) {
			r.rewrite(report, file, func(doc *jsondoc.Object) *jsondoc.Object {
				return ReorderHeatmapTS(doc, order)
			})
		}
	}
	return report, nil
}

func (r *Reconciler) glob(report *Report, expDir, pattern string) []string {
	files, err := filepathx.Glob(filepath.Join(expDir, filepath.FromSlash(pattern)))
	if err != nil {
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", pattern, err))
		return nil
	}
	sort.Strings(files)
	return files
}

func (r *Reconciler) rewrite(report *Report, file string, fn func(*jsondoc.Object) *jsondoc.Object) {
	doc, err := jsondoc.ReadObjectFile(file)
	if err != nil {
		r.logger.Error("file skipped", zap.String("file", file), zap.Error(err))
		report.Errors = append(report.Errors, err)
		return
	}
	if err := jsondoc.WriteFile(file, fn(doc)); err != nil {
		r.logger.Error("file not written", zap.String("file", file), zap.Error(err))
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", file, err))
		return
	}
	report.Updated = append(report.Updated, file)
	r.logger.Info("order updated", zap.String("file", file))
}

// ReorderMenu orders the variables of a menu document and the models below
// each variable's obs/{network}/{vertical type} leaf.
func ReorderMenu(doc *jsondoc.Object, order Order) *jsondoc.Object {
	out := orderVariables(doc, order.Variables)
	out.Range(func(_ string, value any) bool {
		if v, ok := value.(*jsondoc.Object); ok {
			if obs, ok := v.GetObject("obs"); ok {
				v.Set("obs", orderNetworks(obs, order.Models))
			}
		}
		return true
	})
	return out
}

// ReorderHeatmap orders a glob_stats document keyed by
// variable/{network}/{vertical type}/model.
func ReorderHeatmap(doc *jsondoc.Object, order Order) *jsondoc.Object {
	out := orderVariables(doc, order.Variables)
	reorderVariableValues(out, order.Models)
	return out
}

// ReorderHeatmapTS keeps the variables of a heatmap time series document in
// file order and only orders the models.
func ReorderHeatmapTS(doc *jsondoc.Object, order Order) *jsondoc.Object {
	out := doc.Clone()
	reorderVariableValues(out, order.Models)
	return out
}

func reorderVariableValues(doc *jsondoc.Object, models []string) {
	for _, key := range doc.Keys() {
		value, _ := doc.Get(key)
		if networks, ok := value.(*jsondoc.Object); ok {
			doc.Set(key, orderNetworks(networks, models))
		}
	}
}

// orderVariables returns a copy of doc with the listed variables first, in
// list order, followed by the remaining keys in their original order.
func orderVariables(doc *jsondoc.Object, variables []string) *jsondoc.Object {
	out := jsondoc.NewObject()
	for _, v := range variables {
		if out.Has(v) {
			continue
		}
		if value, ok := doc.Get(v); ok {
			out.Set(v, jsondoc.DeepCopy(value))
		}
	}
	doc.Range(func(key string, value any) bool {
		if !out.Has(key) {
			out.Set(key, jsondoc.DeepCopy(value))
		}
		return true
	})
	return out
}

// orderNetworks rebuilds every {network}/{vertical type} model mapping.
func orderNetworks(networks *jsondoc.Object, models []string) *jsondoc.Object {
	out := jsondoc.NewObject()
	networks.Range(func(network string, value any) bool {
		verticals, ok := value.(*jsondoc.Object)
		if !ok {
			out.Set(network, jsondoc.DeepCopy(value))
			return true
		}
		ordered := jsondoc.NewObject()
		verticals.Range(func(vertical string, leaf any) bool {
			if m, ok := leaf.(*jsondoc.Object); ok {
				ordered.Set(vertical, orderModels(m, models))
			} else {
				ordered.Set(vertical, jsondoc.DeepCopy(leaf))
			}
			return true
		})
		out.Set(network, ordered)
		return true
	})
	return out
}

// orderModels keeps the models of leaf that appear in models, in that order.
func orderModels(leaf *jsondoc.Object, models []string) *jsondoc.Object {
	out := jsondoc.NewObject()
	for _, m := range models {
		if value, ok := leaf.Get(m); ok && !out.Has(m) {
			out.Set(m, jsondoc.DeepCopy(value))
		}
	}
	return out
}
