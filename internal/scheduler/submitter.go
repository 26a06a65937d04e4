package scheduler

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/eval-fanout/internal/config"
	"yqhp/eval-fanout/internal/jobgraph"
)

// Submitter submits one job unit.
type Submitter interface {
	Submit(ctx context.Context, u *jobgraph.Unit) error
}

// Settings configure a GridEngine submitter.
type Settings struct {
	RunID string
	Qsub  string
	// Host and User address the submit host when Localhost is false.
	Host      string
	User      string
	Localhost bool
	// Submit false writes and stages everything but does not call qsub.
	Submit    bool
	SubmitDir string
	SSH       string
	SCP       string
	Script    ScriptOptions
}

// SettingsFromConfig derives submitter settings from the tool configuration.
func SettingsFromConfig(cfg *config.Config, runID string) Settings {
	s := cfg.Scheduler
	env := cfg.Environment
	return Settings{
		RunID:     runID,
		Qsub:      s.QsubBinary,
		Host:      s.Host,
		User:      s.User,
		Localhost: s.Localhost,
		Submit:    s.Submit,
		SubmitDir: s.SubmitDir,
		SSH:       s.SSHBinary,
		SCP:       s.SCPBinary,
		Script: ScriptOptions{
			LogDir:      s.LogDir,
			Mail:        s.Mail,
			MailEvents:  s.MailEvents,
			Shell:       s.Shell,
			ParallelEnv: s.ParallelEnv,
			Date:        time.Now().Format("20060102_150405"),
			ModulePath:  env.ModulePath,
			Modules:     env.Modules,
			CondaEnv:    env.CondaEnv,
			Setup:       env.Setup,
		},
	}
}

// GridEngine writes job scripts into a local directory, stages them into the
// shared submission directory and runs qsub there, locally or over ssh.
type GridEngine struct {
	settings  Settings
	scriptDir string
	runner    CommandRunner
	logger    *zap.Logger

	mu     sync.Mutex
	staged bool
}

// NewGridEngine creates a submitter writing scripts into scriptDir.
func NewGridEngine(settings Settings, scriptDir string, runner CommandRunner, logger *zap.Logger) *GridEngine {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Qsub == "" {
		settings.Qsub = "qsub"
	}
	if settings.SSH == "" {
		settings.SSH = "ssh"
	}
	if settings.SCP == "" {
		settings.SCP = "scp"
	}
	return &GridEngine{settings: settings, scriptDir: scriptDir, runner: runner, logger: logger}
}

// StageDir is the per-run directory inside the shared submission directory.
func (g *GridEngine) StageDir() string {
	return path.Join(g.settings.SubmitDir, "qsub."+g.settings.RunID)
}

func (g *GridEngine) hostTarget() string {
	if g.settings.User == "" {
		return g.settings.Host
	}
	return g.settings.User + "@" + g.settings.Host
}

// Submit renders, stages and (unless dry-run) submits u.
func (g *GridEngine) Submit(ctx context.Context, u *jobgraph.Unit) error {
	if err := g.prepareStageDir(ctx); err != nil {
		return err
	}

	stage := g.StageDir()
	opts := g.settings.Script
	opts.WorkDir = stage

	runfile := filepath.Join(g.scriptDir, u.Name+".run")
	if err := os.WriteFile(runfile, []byte(RenderScript(u, opts)), 0o644); err != nil {
		return fmt.Errorf("write job script: %w", err)
	}
	remoteRunfile := path.Join(stage, u.Name+".run")

	startfile := filepath.Join(g.scriptDir, u.Name+".sh")
	if err := os.WriteFile(startfile, []byte(startScript(g.settings.Qsub, remoteRunfile)), 0o755); err != nil {
		return fmt.Errorf("write start script: %w", err)
	}
	remoteStartfile := path.Join(stage, u.Name+".sh")

	files := append(append([]string(nil), u.Attachments...), runfile, startfile)
	if err := g.stage(ctx, files); err != nil {
		return err
	}

	if !g.settings.Submit {
		g.logger.Info("job staged, not submitted",
			zap.String("job", u.Name),
			zap.String("command", g.settings.Qsub+" "+remoteRunfile))
		return nil
	}

	var out []byte
	var err error
	if g.settings.Localhost {
		out, err = g.runner.Run(ctx, "bash", "-l", remoteStartfile)
	} else {
		out, err = g.runner.Run(ctx, g.settings.SSH, g.hostTarget(), "bash", "-l", remoteStartfile)
	}
	if err != nil {
		return fmt.Errorf("qsub %s: %w", u.Name, err)
	}
	g.logger.Info("job submitted",
		zap.String("job", u.Name),
		zap.String("output", strings.TrimSpace(string(out))))
	return nil
}

func (g *GridEngine) prepareStageDir(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.staged {
		return nil
	}

	var err error
	if g.settings.Localhost {
		_, err = g.runner.Run(ctx, "mkdir", "-p", g.StageDir())
	} else {
		_, err = g.runner.Run(ctx, g.settings.SSH, g.hostTarget(), "mkdir", "-p", g.StageDir())
	}
	if err != nil {
		return fmt.Errorf("create submission directory %s: %w", g.StageDir(), err)
	}
	g.staged = true
	g.logger.Debug("submission directory ready", zap.String("dir", g.StageDir()))
	return nil
}

func (g *GridEngine) stage(ctx context.Context, files []string) error {
	var (
		name   string
		target string
	)
	if g.settings.Localhost {
		name, target = "cp", g.StageDir()+"/"
	} else {
		name, target = g.settings.SCP, g.hostTarget()+":"+g.StageDir()+"/"
	}
	args := append(append([]string(nil), files...), target)
	if _, err := g.runner.Run(ctx, name, args...); err != nil {
		return fmt.Errorf("stage files: %w", err)
	}
	return nil
}
