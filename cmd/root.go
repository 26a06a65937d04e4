// Package cmd 提供 eval-fanout CLI 的命令实现
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"yqhp/eval-fanout/internal/config"
	"yqhp/eval-fanout/pkg/logger"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
)

var (
	// 全局配置
	cfgFile string
	debug   bool
	quiet   bool
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "eval-fanout",
	Short: "并行化 aeroval 评估任务",
	Long: `eval-fanout 将一个 aeroval 评估配置拆分为按模型（和观测网络）划分的子任务，
为观测数据缓存、评估和结果合并生成 Grid Engine 作业并提交，
最后将各子任务的输出合并为一个实验目录并恢复变量和模型的显示顺序。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "静默模式")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetVersionTemplate("eval-fanout version {{.Version}}\n")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// loadSettings 加载配置并初始化日志，overrides 以 yaml 路径为键
func loadSettings(overrides map[string]string) (*config.Config, error) {
	cfg, err := config.NewLoader().
		WithConfigPath(cfgFile).
		WithCmdArgs(overrides).
		Load()
	if err != nil {
		return nil, err
	}

	switch {
	case debug:
		cfg.Logging.Level = "debug"
	case quiet:
		cfg.Logging.Level = "warn"
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	logger.Init(&logger.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		Output:   cfg.Logging.Output,
		FilePath: cfg.Logging.FilePath,
	})
	return cfg, nil
}

// flagOverrides 收集显式设置的 flag，转换为配置覆盖项
func flagOverrides(cmd *cobra.Command, paths map[string]string) map[string]string {
	overrides := make(map[string]string)
	for name, path := range paths {
		if cmd.Flags().Changed(name) {
			overrides[path] = cmd.Flags().Lookup(name).Value.String()
		}
	}
	return overrides
}

// signalContext 返回在收到 SIGINT/SIGTERM 时取消的上下文
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
