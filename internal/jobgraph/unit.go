// Package jobgraph turns partitions into scheduler job units: cache jobs,
// analysis jobs waiting on the caches they read, and assembly jobs waiting on
// the whole run.
package jobgraph

import (
	"path"
	"strings"
)

// Kind is the job category.
type Kind string

const (
	KindCache    Kind = "cache"
	KindAnalysis Kind = "analysis"
	KindAssembly Kind = "assembly"
)

// Resources requested for one job.
type Resources struct {
	CPUs    int    `json:"cpus"`
	RAMGB   int    `json:"ram_gb"`
	Runtime string `json:"runtime"`
}

// Unit is one scheduler job.
type Unit struct {
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Queue     string    `json:"queue"`
	Resources Resources `json:"resources"`
	// WaitFor holds job-name globs that must finish before the unit starts.
	WaitFor []string `json:"wait_for,omitempty"`
	// Commands are shell command lines run in order.
	Commands []string `json:"commands"`
	// Attachments are local files the job reads. They are staged next to the
	// job script and commands refer to them by base name.
	Attachments []string `json:"attachments,omitempty"`
	// Inputs are the sibling output directories an assembly unit combines.
	Inputs []string `json:"inputs,omitempty"`
	OutDir string   `json:"out_dir,omitempty"`
}

// WaitsOn reports whether u waits for a job named name.
func (u *Unit) WaitsOn(name string) bool {
	for _, pattern := range u.WaitFor {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// shellQuote quotes s for a POSIX shell when it contains anything beyond a
// conservative set of safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// commandLine joins a program (used verbatim, it may carry its own flags) and
// quoted arguments.
func commandLine(program string, args ...string) string {
	var b strings.Builder
	b.WriteString(program)
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(shellQuote(a))
	}
	return b.String()
}
