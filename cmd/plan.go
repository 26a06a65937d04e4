package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"yqhp/eval-fanout/internal/planner"
	"yqhp/eval-fanout/pkg/logger"
)

var (
	// plan 命令的 flags
	planRunID          string
	planJSONBaseDir    string
	planColdataBaseDir string
	planIOAuxFile      string
	planNoCache        bool
	planNoSubmit       bool
)

// planFlagPaths 将 plan 的 flag 映射到配置项
var planFlagPaths = map[string]string{
	"localhost":      "scheduler.localhost",
	"split-networks": "partition.split_networks",
	"queue":          "scheduler.queue",
	"cache-queue":    "scheduler.cache_queue",
	"qsub-host":      "scheduler.host",
	"queue-user":     "scheduler.user",
	"qsub-dir":       "scheduler.submit_dir",
	"tempdir":        "paths.temp_dir",
}

// planCmd 是 plan 子命令
var planCmd = &cobra.Command{
	Use:   "plan <cfg.json|cfg.yaml>...",
	Short: "拆分评估配置并提交作业",
	Long: `拆分一个或多个评估配置，为观测数据缓存、评估和结果合并生成作业并提交到 Grid Engine。

运行目录保存子配置、作业脚本和 plan.json 清单。`,
	Example: `  # 拆分并提交
  eval-fanout plan cfg_emep.json

  # 只生成作业脚本，不提交
  eval-fanout plan --no-submit --json-basedir /lustre/aeroval/data cfg_emep.yaml

  # 通过 ssh 提交到远程主机
  eval-fanout plan --localhost=false --qsub-host ppi-r8login-a1 cfg_emep.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planRunID, "run-id", "", "运行标识 (默认随机生成)")
	planCmd.Flags().StringVar(&planJSONBaseDir, "json-basedir", "", "覆盖配置中的 json_basedir")
	planCmd.Flags().StringVar(&planColdataBaseDir, "coldata-basedir", "", "覆盖配置中的 coldata_basedir")
	planCmd.Flags().StringVar(&planIOAuxFile, "io-aux-file", "", "覆盖配置中的 io_aux_file")
	planCmd.Flags().BoolVar(&planNoCache, "no-cache", false, "不生成缓存作业")
	planCmd.Flags().BoolVar(&planNoSubmit, "no-submit", false, "只生成并暂存作业脚本，不调用 qsub")
	planCmd.Flags().Bool("localhost", true, "在本机提交 (否则通过 ssh)")
	planCmd.Flags().Bool("split-networks", true, "按观测网络拆分")
	planCmd.Flags().String("queue", "", "评估作业队列")
	planCmd.Flags().String("cache-queue", "", "缓存作业队列")
	planCmd.Flags().String("qsub-host", "", "提交主机")
	planCmd.Flags().String("queue-user", "", "提交主机上的用户")
	planCmd.Flags().String("qsub-dir", "", "共享的作业提交目录")
	planCmd.Flags().String("tempdir", "", "本地运行目录的父目录")
}

func runPlan(cmd *cobra.Command, args []string) error {
	overrides := flagOverrides(cmd, planFlagPaths)
	if planNoCache {
		overrides["partition.cache"] = strconv.FormatBool(false)
	}
	if planNoSubmit {
		overrides["scheduler.submit"] = strconv.FormatBool(false)
	}

	cfg, err := loadSettings(overrides)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	result, err := planner.New(cfg, logger.Named("plan")).Run(ctx, planner.Options{
		Files:          args,
		RunID:          planRunID,
		JSONBaseDir:    planJSONBaseDir,
		ColdataBaseDir: planColdataBaseDir,
		IOAuxFile:      planIOAuxFile,
	})
	if result != nil && !quiet {
		printPlanResult(cmd, result)
	}
	if err != nil {
		return fmt.Errorf("plan 失败: %w", err)
	}
	return nil
}

func printPlanResult(cmd *cobra.Command, result *planner.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run id:        %s\n", result.RunID)
	fmt.Fprintf(out, "run directory: %s\n", result.Workdir.Root)
	fmt.Fprintf(out, "jobs:          %d\n", len(result.Units))
	if r := result.Dispatch; r != nil {
		fmt.Fprintf(out, "submitted:     %d\n", len(r.Submitted))
		for _, name := range r.Failed {
			fmt.Fprintf(out, "failed:        %s\n", name)
		}
		for _, name := range r.Skipped {
			fmt.Fprintf(out, "skipped:       %s\n", name)
		}
	}
	for _, file := range result.Ignored {
		fmt.Fprintf(out, "ignored:       %s\n", file)
	}
}
