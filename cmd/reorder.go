package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"yqhp/eval-fanout/internal/evalcfg"
	"yqhp/eval-fanout/internal/reorder"
	"yqhp/eval-fanout/pkg/logger"
)

var (
	// reorder 命令的 flags
	reorderOnly []string
)

// reorderCmd 是 reorder 子命令
var reorderCmd = &cobra.Command{
	Use:   "reorder <cfg> <experiment dir>",
	Short: "恢复变量和模型的显示顺序",
	Long: `按照未拆分的评估配置 (var_order_menu, model_order_menu, model_cfg)
重写实验目录中的 menu.json、hm/glob_stats_*.json 和 hm/ts/*.json。`,
	Example: `  # 全部文件
  eval-fanout reorder cfg_emep.json /lustre/aeroval/data/emep/trends

  # 只处理 menu.json
  eval-fanout reorder --only menu cfg_emep.json /lustre/aeroval/data/emep/trends`,
	Args: cobra.ExactArgs(2),
	RunE: runReorder,
}

func init() {
	rootCmd.AddCommand(reorderCmd)

	reorderCmd.Flags().StringSliceVar(&reorderOnly, "only", nil, "只处理指定文件 (menu, heatmap, hmts)")
}

func parseTargets(only []string) (reorder.Targets, error) {
	if len(only) == 0 {
		return reorder.AllTargets, nil
	}
	var t reorder.Targets
	for _, name := range only {
		switch name {
		case "menu":
			t.Menu = true
		case "heatmap":
			t.Heatmap = true
		case "hmts":
			t.HeatmapTS = true
		default:
			return t, fmt.Errorf("未知的文件类型: %s", name)
		}
	}
	return t, nil
}

func runReorder(cmd *cobra.Command, args []string) error {
	targets, err := parseTargets(reorderOnly)
	if err != nil {
		return err
	}
	if _, err := loadSettings(nil); err != nil {
		return err
	}

	cfg, err := evalcfg.Load(args[0])
	if err != nil {
		return err
	}

	report, err := reorder.New(logger.Named("reorder")).ReconcileOrder(args[1], reorder.OrderFromConfig(cfg), targets)
	if err != nil {
		return fmt.Errorf("调整顺序失败: %w", err)
	}
	if !quiet {
		for _, file := range report.Updated {
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", file)
		}
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("部分文件未能处理: %w", err)
	}
	return nil
}
