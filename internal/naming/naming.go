// Package naming builds scheduler job names and the glob patterns other jobs
// wait on. Every job of a run starts with "pya_{runID}_" so that one pattern
// can hold on the whole run.
package naming

import (
	"fmt"
	"strings"
)

// Prefix starts every cache and analysis job name.
const Prefix = "pya"

// AssemblyPrefix starts assembly job names. It is deliberately outside the
// run pattern so an assembly job never waits on itself.
const AssemblyPrefix = "asm"

// AllNetworks is the network tag of a partition that keeps every network.
const AllNetworks = "allobs"

var unsafe = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"@", "-",
	"*", "-",
	"?", "-",
	"[", "-",
	"]", "-",
	" ", "_",
	"\t", "_",
	",", "_",
)

// Sanitize replaces characters the scheduler or the glob matcher would
// interpret.
func Sanitize(s string) string {
	return unsafe.Replace(s)
}

// RunGlob matches every cache and analysis job of a run.
func RunGlob(runID string) string {
	return fmt.Sprintf("%s_%s_*", Prefix, Sanitize(runID))
}

// CacheJob names the job caching one variable of one dataset.
func CacheJob(runID, obsID, variable string) string {
	return fmt.Sprintf("%s_%s_caching_%s_%s", Prefix, Sanitize(runID), Sanitize(obsID), Sanitize(variable))
}

// CacheGlob matches every cache job of one dataset.
func CacheGlob(runID, obsID string) string {
	return fmt.Sprintf("%s_%s_caching_%s_*", Prefix, Sanitize(runID), Sanitize(obsID))
}

// AnalysisJob names the analysis job of one sub-configuration.
func AnalysisJob(runID string, index int, model, network string) string {
	return fmt.Sprintf("%s_%s_ana_%04d_%s_%s", Prefix, Sanitize(runID), index, Sanitize(model), Sanitize(network))
}

// AssemblyJob names the n-th assembly job of a run.
func AssemblyJob(runID string, n int) string {
	return fmt.Sprintf("%s_%s_%02d", AssemblyPrefix, Sanitize(runID), n)
}

// RunDirSuffix is appended to the output base directories of sub-config index.
func RunDirSuffix(runID string, index int) string {
	return fmt.Sprintf("%s.%04d", runID, index)
}
