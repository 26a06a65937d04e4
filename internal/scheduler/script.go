// Package scheduler is the Grid Engine boundary: it renders one job script per
// unit, stages the scripts and their attachments into the shared submission
// directory and hands them to qsub.
package scheduler

import (
	"fmt"
	"strings"

	"yqhp/eval-fanout/internal/jobgraph"
)

// ScriptOptions are the site settings written into every job script.
type ScriptOptions struct {
	// WorkDir is the job working directory, where attachments are staged.
	WorkDir     string
	LogDir      string
	Mail        string
	MailEvents  string
	Shell       string
	ParallelEnv string
	// Date is the submission timestamp used in log file names.
	Date string

	ModulePath string
	Modules    []string
	CondaEnv   string
	Setup      []string
}

// RenderScript renders the job script of u.
func RenderScript(u *jobgraph.Unit, opts ScriptOptions) string {
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	pe := opts.ParallelEnv
	if pe == "" {
		pe = "shmem-1"
	}
	cpus := u.Resources.CPUs
	if cpus < 1 {
		cpus = 1
	}

	var b strings.Builder
	b.WriteString("#!/bin/bash -l\n")
	fmt.Fprintf(&b, "#$ -S %s\n", shell)
	fmt.Fprintf(&b, "#$ -N %s\n", u.Name)
	fmt.Fprintf(&b, "#$ -q %s\n", u.Queue)
	fmt.Fprintf(&b, "#$ -pe %s %d\n", pe, cpus)
	fmt.Fprintf(&b, "#$ -wd %s\n", opts.WorkDir)
	if u.Resources.Runtime != "" {
		fmt.Fprintf(&b, "#$ -l h_rt=%s\n", u.Resources.Runtime)
		fmt.Fprintf(&b, "#$ -l s_rt=%s\n", u.Resources.Runtime)
	}
	if opts.Mail != "" {
		fmt.Fprintf(&b, "#$ -M %s\n", opts.Mail)
		if opts.MailEvents != "" {
			fmt.Fprintf(&b, "#$ -m %s\n", opts.MailEvents)
		}
	}
	if u.Resources.RAMGB > 0 {
		fmt.Fprintf(&b, "#$ -l h_rss=%dG,mem_free=%dG\n", u.Resources.RAMGB, u.Resources.RAMGB)
	}
	b.WriteString("#$ -shell y\n")
	b.WriteString("#$ -j y\n")
	fmt.Fprintf(&b, "#$ -o %s/\n", opts.LogDir)
	fmt.Fprintf(&b, "#$ -e %s/\n", opts.LogDir)
	if len(u.WaitFor) > 0 {
		fmt.Fprintf(&b, "#$ -hold_jid %s\n", strings.Join(u.WaitFor, ","))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "logdir=\"%s/\"\n", opts.LogDir)
	fmt.Fprintf(&b, "date=\"%s\"\n", opts.Date)
	b.WriteString("logfile=\"${logdir}/${USER}.${date}.${JOB_NAME}.${JOB_ID}_log.txt\"\n")
	b.WriteString("echo \"Got $NSLOTS slots for job $JOB_NAME.\" >> ${logfile}\n")

	if opts.ModulePath != "" {
		fmt.Fprintf(&b, "module use %s >> ${logfile} 2>&1\n", opts.ModulePath)
	}
	for _, m := range opts.Modules {
		fmt.Fprintf(&b, "module load %s >> ${logfile} 2>&1\n", m)
	}
	if len(opts.Modules) > 0 {
		b.WriteString("module list >> ${logfile} 2>&1\n")
	}
	if opts.CondaEnv != "" {
		b.WriteString("eval \"$(conda shell.bash hook 2> /dev/null)\" || { echo conda not working! exiting... >> ${logfile}; exit 1; }\n")
		fmt.Fprintf(&b, "conda activate %s >> ${logfile} 2>&1\n", opts.CondaEnv)
	}
	for _, line := range opts.Setup {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("set -x\n")
	b.WriteString("pwd >> ${logfile} 2>&1\n")
	fmt.Fprintf(&b, "echo \"starting %s ...\" >> ${logfile}\n", u.Name)
	for _, cmd := range u.Commands {
		fmt.Fprintf(&b, "%s >> ${logfile} 2>&1\n", cmd)
	}
	b.WriteString("\n")
	return b.String()
}

// startScript wraps the qsub call; qsub is started through a login shell so
// the site environment is loaded.
func startScript(qsub, runfile string) string {
	return fmt.Sprintf("#!/bin/bash -l\n%s %s\n\n", qsub, runfile)
}
