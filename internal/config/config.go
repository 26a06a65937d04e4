// Package config loads the tool settings of eval-fanout: where and how jobs
// are submitted, which commands they run, and how results are assembled.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete tool configuration.
type Config struct {
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Resources   ResourcesConfig   `yaml:"resources"`
	Commands    CommandsConfig    `yaml:"commands"`
	Environment EnvironmentConfig `yaml:"environment"`
	Paths       PathsConfig       `yaml:"paths"`
	Partition   PartitionConfig   `yaml:"partition"`
	Assembly    AssemblyConfig    `yaml:"assembly"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SchedulerConfig holds Grid Engine submission settings.
type SchedulerConfig struct {
	QsubBinary string `yaml:"qsub_binary" env:"QSUB_BINARY"`
	// Host is the submit host reached over ssh when Localhost is false.
	Host string `yaml:"host" env:"QSUB_HOST"`
	User string `yaml:"user" env:"QUEUE_USER"`
	// SubmitDir is the shared directory job scripts are staged into.
	SubmitDir  string `yaml:"submit_dir" env:"QSUB_DIR"`
	Queue      string `yaml:"queue" env:"QUEUE"`
	CacheQueue string `yaml:"cache_queue" env:"CACHE_QUEUE"`
	LogDir     string `yaml:"log_dir" env:"QSUB_LOG_DIR"`
	Mail       string `yaml:"mail" env:"MAIL"`
	MailEvents string `yaml:"mail_events" env:"MAIL_EVENTS"`
	Shell      string `yaml:"shell" env:"JOB_SHELL"`
	// ParallelEnv is the parallel environment requested with -pe.
	ParallelEnv string `yaml:"parallel_env" env:"PARALLEL_ENV"`
	Localhost   bool   `yaml:"localhost" env:"LOCALHOST"`
	Submit      bool   `yaml:"submit" env:"SUBMIT"`
	SSHBinary   string `yaml:"ssh_binary" env:"SSH_BINARY"`
	SCPBinary   string `yaml:"scp_binary" env:"SCP_BINARY"`
}

// ResourcesConfig holds per-kind job resources.
type ResourcesConfig struct {
	CacheRAMGB    int    `yaml:"cache_ram_gb" env:"CACHE_RAM"`
	AnalysisRAMGB int    `yaml:"analysis_ram_gb" env:"ANALYSIS_RAM"`
	AssemblyRAMGB int    `yaml:"assembly_ram_gb" env:"ASSEMBLY_RAM"`
	CPUs          int    `yaml:"cpus" env:"CPUS"`
	Runtime       string `yaml:"runtime" env:"RUNTIME"`
}

// CommandsConfig names the programs the jobs run.
type CommandsConfig struct {
	Evaluator      string `yaml:"evaluator" env:"EVALUATOR"`
	CacheGenerator string `yaml:"cache_generator" env:"CACHE_GENERATOR"`
	// Self is the eval-fanout binary used by assembly jobs.
	Self string `yaml:"self" env:"SELF"`
}

// EnvironmentConfig describes the job environment setup.
type EnvironmentConfig struct {
	ModulePath string   `yaml:"module_path" env:"MODULE_PATH"`
	Modules    []string `yaml:"modules" env:"MODULES"`
	CondaEnv   string   `yaml:"conda_env" env:"CONDA_ENV"`
	Setup      []string `yaml:"setup"`
}

// PathsConfig holds local paths.
type PathsConfig struct {
	TempDir string `yaml:"temp_dir" env:"TEMPDIR"`
}

// PartitionConfig controls how configurations are split.
type PartitionConfig struct {
	SplitNetworks bool `yaml:"split_networks" env:"SPLIT_NETWORKS"`
	Cache         bool `yaml:"cache" env:"CACHE"`
}

// AssemblyConfig controls result assembly.
type AssemblyConfig struct {
	Workers      int      `yaml:"workers" env:"ASSEMBLY_WORKERS"`
	CombineMasks []string `yaml:"combine_masks" env:"COMBINE_MASKS"`
	ConfigMasks  []string `yaml:"config_masks" env:"CONFIG_MASKS"`
	ExcludeMasks []string `yaml:"exclude_masks" env:"EXCLUDE_MASKS"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" env:"LOG_LEVEL"`
	Format   string `yaml:"format" env:"LOG_FORMAT"`
	Output   string `yaml:"output" env:"LOG_OUTPUT"`
	FilePath string `yaml:"file_path" env:"LOG_FILE"`
}

// DefaultCombineMasks are the experiment files merged across sub-jobs.
var DefaultCombineMasks = []string{
	"ts/*.json",
	"hm/ts/*.json",
	"menu.json",
	"ranges.json",
	"regions.json",
	"statistics.json",
	"hm/glob_stats_*.json",
	"cfg_*.json",
}

// DefaultConfigMasks match the configuration snapshot of an experiment.
var DefaultConfigMasks = []string{"cfg_*.json"}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	user := os.Getenv("USER")
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return &Config{
		Scheduler: SchedulerConfig{
			QsubBinary:  "qsub",
			User:        user,
			SubmitDir:   filepath.Join(home, "submission_scripts"),
			Queue:       "research-r8.q",
			CacheQueue:  "research-r8.q",
			LogDir:      filepath.Join(home, "qsub_logs"),
			MailEvents:  "abe",
			Shell:       "/bin/bash",
			ParallelEnv: "shmem-1",
			Localhost:   true,
			Submit:      true,
			SSHBinary:   "ssh",
			SCPBinary:   "scp",
		},
		Resources: ResourcesConfig{
			CacheRAMGB:    30,
			AnalysisRAMGB: 30,
			AssemblyRAMGB: 10,
			CPUs:          1,
			Runtime:       "96:00:00",
		},
		Commands: CommandsConfig{
			Evaluator:      "aeroval_run_json_cfg",
			CacheGenerator: "pyaerocom_cachegen",
			Self:           "eval-fanout",
		},
		Environment: EnvironmentConfig{
			Modules: []string{},
			Setup:   []string{},
		},
		Paths: PathsConfig{
			TempDir: os.TempDir(),
		},
		Partition: PartitionConfig{
			SplitNetworks: true,
			Cache:         true,
		},
		Assembly: AssemblyConfig{
			Workers:      4,
			CombineMasks: append([]string(nil), DefaultCombineMasks...),
			ConfigMasks:  append([]string(nil), DefaultConfigMasks...),
			ExcludeMasks: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	configPath string
	envPrefix  string
	cmdArgs    map[string]string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: "EF_",
		cmdArgs:   make(map[string]string),
	}
}

// WithConfigPath sets the path to the YAML configuration file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the prefix for environment variables.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithCmdArgs sets command-line overrides keyed by dotted yaml path,
// for example "scheduler.queue".
func (l *Loader) WithCmdArgs(args map[string]string) *Loader {
	l.cmdArgs = args
	return l
}

// Load loads configuration from all sources with proper precedence:
// defaults < YAML file < environment variables < command-line flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("从文件加载配置失败: %w", err)
		}
	}

	if err := l.applyEnvToStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("应用环境变量覆盖失败: %w", err)
	}

	for key, value := range l.cmdArgs {
		if err := setConfigValue(cfg, key, value); err != nil {
			return nil, fmt.Errorf("设置配置值 %s 失败: %w", key, err)
		}
	}

	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("读取配置文件失败: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败: %w", err)
	}
	return nil
}

// applyEnvToStruct recursively applies environment variables to struct fields.
func (l *Loader) applyEnvToStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if field.Kind() == reflect.Struct {
			if err := l.applyEnvToStruct(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		name := l.envPrefix + envTag
		envValue, ok := os.LookupEnv(name)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("从环境变量 %s 设置字段 %s 失败: %w", name, fieldType.Name, err)
		}
	}

	return nil
}

// setConfigValue sets a configuration value by its dotted yaml path.
func setConfigValue(cfg *Config, path, value string) error {
	v := reflect.ValueOf(cfg).Elem()
	parts := strings.Split(path, ".")

	for i, part := range parts {
		field, ok := fieldByYAMLName(v, part)
		if !ok {
			return fmt.Errorf("未知的配置路径: %s", path)
		}
		if i == len(parts)-1 {
			return setFieldValue(field, value)
		}
		if field.Kind() != reflect.Struct {
			return fmt.Errorf("期望 %s 是结构体，实际是 %s", part, field.Kind())
		}
		v = field
	}
	return nil
}

func fieldByYAMLName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name || strings.EqualFold(t.Field(i).Name, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a reflect.Value from a string value.
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return fmt.Errorf("无法设置字段")
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("无效的时间格式: %w", err)
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("无效的整数: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("无效的布尔值: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("不支持的切片类型: %s", field.Type().Elem().Kind())
		}
		parts := []string{}
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		field.Set(reflect.ValueOf(parts))

	default:
		return fmt.Errorf("不支持的字段类型: %s", field.Kind())
	}

	return nil
}

// Serialize serializes the configuration to YAML bytes.
func (c *Config) Serialize() ([]byte, error) {
	return yaml.Marshal(c)
}

// ParseConfig parses a YAML configuration from bytes.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file path.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := c.Serialize()
	clone, _ := ParseConfig(data)
	return clone
}
