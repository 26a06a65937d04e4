package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateSchedulerConfig(&cfg.Scheduler)
	v.validateResourcesConfig(&cfg.Resources)
	v.validateCommandsConfig(&cfg.Commands)
	v.validateAssemblyConfig(&cfg.Assembly)
	v.validateLoggingConfig(&cfg.Logging)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateSchedulerConfig(cfg *SchedulerConfig) {
	if cfg.QsubBinary == "" {
		v.addError("scheduler.qsub_binary", "qsub binary is required")
	}
	if !cfg.Localhost {
		if cfg.Host == "" {
			v.addError("scheduler.host", "host is required unless localhost is set")
		}
		if cfg.SSHBinary == "" {
			v.addError("scheduler.ssh_binary", "ssh binary is required for remote submission")
		}
		if cfg.SCPBinary == "" {
			v.addError("scheduler.scp_binary", "scp binary is required for remote submission")
		}
	}
	if cfg.SubmitDir == "" {
		v.addError("scheduler.submit_dir", "submission directory is required")
	}
	if cfg.Queue == "" {
		v.addError("scheduler.queue", "queue is required")
	}
	if cfg.CacheQueue == "" {
		v.addError("scheduler.cache_queue", "cache queue is required")
	}
	if cfg.LogDir == "" {
		v.addError("scheduler.log_dir", "log directory is required")
	}
	if cfg.Shell == "" {
		v.addError("scheduler.shell", "shell is required")
	}
	if cfg.Mail != "" && !strings.Contains(cfg.Mail, "@") {
		v.addError("scheduler.mail", "invalid mail address")
	}
	if strings.Trim(cfg.MailEvents, "abesn") != "" {
		v.addError("scheduler.mail_events", "mail events must be a combination of a, b, e, s or n")
	}
}

var runtimePattern = regexp.MustCompile(`^\d+:[0-5]\d:[0-5]\d$`)

func (v *Validator) validateResourcesConfig(cfg *ResourcesConfig) {
	if cfg.CacheRAMGB <= 0 {
		v.addError("resources.cache_ram_gb", "RAM must be positive")
	}
	if cfg.AnalysisRAMGB <= 0 {
		v.addError("resources.analysis_ram_gb", "RAM must be positive")
	}
	if cfg.AssemblyRAMGB <= 0 {
		v.addError("resources.assembly_ram_gb", "RAM must be positive")
	}
	if cfg.CPUs <= 0 {
		v.addError("resources.cpus", "CPU count must be positive")
	}
	if !runtimePattern.MatchString(cfg.Runtime) {
		v.addError("resources.runtime", "runtime must look like HH:MM:SS")
	}
}

func (v *Validator) validateCommandsConfig(cfg *CommandsConfig) {
	if strings.TrimSpace(cfg.Evaluator) == "" {
		v.addError("commands.evaluator", "evaluator command is required")
	}
	if strings.TrimSpace(cfg.CacheGenerator) == "" {
		v.addError("commands.cache_generator", "cache generator command is required")
	}
	if strings.TrimSpace(cfg.Self) == "" {
		v.addError("commands.self", "eval-fanout command is required")
	}
}

func (v *Validator) validateAssemblyConfig(cfg *AssemblyConfig) {
	if cfg.Workers < 1 {
		v.addError("assembly.workers", "at least one worker is required")
	}
	for field, masks := range map[string][]string{
		"assembly.combine_masks": cfg.CombineMasks,
		"assembly.config_masks":  cfg.ConfigMasks,
		"assembly.exclude_masks": cfg.ExcludeMasks,
	} {
		for _, m := range masks {
			if _, err := glob.Compile(m); err != nil {
				v.addError(field, fmt.Sprintf("invalid mask %q", m))
			}
		}
	}
}

func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", "invalid log level, expected one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[strings.ToLower(cfg.Format)] {
		v.addError("logging.format", "invalid log format, expected one of: json, console")
	}

	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
		"both":   true,
	}
	if !validOutputs[strings.ToLower(cfg.Output)] {
		v.addError("logging.output", "invalid log output, expected one of: stdout, stderr, file, both")
	}
	if (cfg.Output == "file" || cfg.Output == "both") && cfg.FilePath == "" {
		v.addError("logging.file_path", "file path is required for file output")
	}
}

// ValidateConfig is a convenience function to validate a configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}
