// Package ledger decides which dataset caching jobs a run still needs.
//
// A Ledger belongs to one run. It remembers which variables of which dataset
// are already scheduled for caching and keeps one descriptor side file per
// dataset for reader configurations that are passed by file.
package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/naming"
	"yqhp/eval-fanout/pkg/jsondoc"
)

// ErrConflictingDescriptor is returned when one dataset is configured with two
// different reader descriptors within a run.
var ErrConflictingDescriptor = errors.New("conflicting descriptor")

// Action is the outcome of merging one requirement.
type Action int

const (
	// Skip means every requested variable is already scheduled.
	Skip Action = iota
	// Submit means Decision.Variables must be cached.
	Submit
)

func (a Action) String() string {
	if a == Submit {
		return "submit"
	}
	return "skip"
}

// Decision is the result of MergeRequirement.
type Decision struct {
	Action Action
	// Variables holds the variables to cache when Action is Submit.
	Variables []string
	// DescriptorFile is the side file holding the reader descriptor, empty
	// when the dataset has none.
	DescriptorFile string
}

type descriptor struct {
	path string
	data []byte
}

// Ledger is the per-run cache requirement record.
type Ledger struct {
	mu          sync.Mutex
	runID       string
	sideDir     string
	order       []string
	vars        map[string][]string
	descriptors map[string]descriptor
	logger      *zap.Logger
}

// New creates an empty ledger. Descriptor side files are written below sideDir.
func New(runID, sideDir string, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		runID:       runID,
		sideDir:     sideDir,
		vars:        make(map[string][]string),
		descriptors: make(map[string]descriptor),
		logger:      logger,
	}
}

// MergeRequirement records that the dataset key needs variables cached.
//
// An unseen key submits every variable. A key whose variables are all known is
// skipped. Otherwise only the missing variables are submitted and added to the
// ledger. Variables are de-duplicated keeping first-seen order. A non-nil
// descriptor is written to a side file once per key; a different descriptor
// for a key that already has one fails with ErrConflictingDescriptor and
// leaves the ledger unchanged.
func (l *Ledger) MergeRequirement(key string, variables []string, desc *jsondoc.Object) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var decision Decision
	if desc != nil {
		path, err := l.descriptorFile(key, desc)
		if err != nil {
			return Decision{}, err
		}
		decision.DescriptorFile = path
	} else if d, ok := l.descriptors[key]; ok {
		decision.DescriptorFile = d.path
	}

	requested := slice.Unique(variables)
	known, seen := l.vars[key]
	if !seen {
		l.order = append(l.order, key)
		l.vars[key] = requested
		if len(requested) == 0 {
			decision.Action = Skip
			return decision, nil
		}
		decision.Action = Submit
		decision.Variables = append([]string(nil), requested...)
		l.logger.Debug("cache requirement added",
			zap.String("network", key), zap.Strings("variables", requested))
		return decision, nil
	}

	missing := slice.Difference(requested, known)
	if len(missing) == 0 {
		decision.Action = Skip
		l.logger.Debug("cache requirement already covered", zap.String("network", key))
		return decision, nil
	}

	l.vars[key] = append(known, missing...)
	decision.Action = Submit
	decision.Variables = missing
	l.logger.Debug("cache requirement extended",
		zap.String("network", key), zap.Strings("variables", missing))
	return decision, nil
}

// descriptorFile returns the side file for key, writing it on first use.
func (l *Ledger) descriptorFile(key string, desc *jsondoc.Object) (string, error) {
	data, err := jsondoc.Marshal(desc)
	if err != nil {
		return "", fmt.Errorf("encode descriptor for %s: %w", key, err)
	}

	if d, ok := l.descriptors[key]; ok {
		if !bytes.Equal(d.data, data) {
			return "", fmt.Errorf("%w for key %s", ErrConflictingDescriptor, key)
		}
		return d.path, nil
	}

	path := filepath.Join(l.sideDir, naming.Sanitize(fmt.Sprintf("%s_%s_%s.json", naming.Prefix, l.runID, key)))
	existing, err := os.ReadFile(path)
	switch {
	case err == nil:
		if !bytes.Equal(existing, data) {
			return "", fmt.Errorf("%w for key %s: %s differs", ErrConflictingDescriptor, key, path)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := jsondoc.WriteFileAtomic(path, data); err != nil {
			return "", fmt.Errorf("write descriptor for %s: %w", key, err)
		}
		l.logger.Info("descriptor written", zap.String("network", key), zap.String("file", path))
	default:
		return "", fmt.Errorf("read descriptor for %s: %w", key, err)
	}

	l.descriptors[key] = descriptor{path: path, data: data}
	return path, nil
}

// Keys returns the recorded dataset keys in first-seen order.
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.order...)
}

// Variables returns the variables recorded for key.
func (l *Ledger) Variables(key string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.vars[key]...)
}
