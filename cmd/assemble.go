package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"yqhp/eval-fanout/internal/assemble"
	"yqhp/eval-fanout/pkg/logger"
)

var (
	// assemble 命令的 flags
	assembleOutDir     string
	assembleProject    string
	assembleExperiment string
	assembleReset      bool
)

// assembleCmd 是 assemble 子命令
var assembleCmd = &cobra.Command{
	Use:   "assemble -o <outdir> <source dir>...",
	Short: "合并子任务的输出目录",
	Long: `将各子任务的输出目录 ({json_basedir}/{run}.NNNN) 合并到项目目录 outdir 中。

源目录按名称排序后依次处理；可合并的 JSON 文件做深度合并，其余文件仅在目标不存在时复制。`,
	Example: `  eval-fanout assemble -o /lustre/aeroval/data/emep /lustre/aeroval/data/3f2a9c1b0d4e.*`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAssemble,
}

func init() {
	rootCmd.AddCommand(assembleCmd)

	assembleCmd.Flags().StringVarP(&assembleOutDir, "outdir", "o", "", "目标项目目录")
	assembleCmd.Flags().StringVar(&assembleProject, "project", "", "项目 (默认从第一个源目录推断)")
	assembleCmd.Flags().StringVar(&assembleExperiment, "experiment", "", "实验 (默认从第一个源目录推断)")
	assembleCmd.Flags().BoolVar(&assembleReset, "reset", false, "合并前删除已有的实验目录")
	assembleCmd.Flags().Int("workers", 0, "并发处理文件数")
	_ = assembleCmd.MarkFlagRequired("outdir")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings(flagOverrides(cmd, map[string]string{"workers": "assembly.workers"}))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := assemble.New(logger.Named("assemble")).Assemble(ctx, assemble.Options{
		OutDir:       assembleOutDir,
		Sources:      args,
		ProjectID:    assembleProject,
		ExperimentID: assembleExperiment,
		CombineMasks: cfg.Assembly.CombineMasks,
		ConfigMasks:  cfg.Assembly.ConfigMasks,
		ExcludeMasks: cfg.Assembly.ExcludeMasks,
		Reset:        assembleReset,
		Workers:      cfg.Assembly.Workers,
	})
	if err != nil {
		return fmt.Errorf("合并失败: %w", err)
	}

	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "copied %d, merged %d, kept %d, excluded %d, errors %d\n",
			report.Copied, report.Merged, report.Kept, report.Excluded, len(report.Errors))
	}
	if err := report.Err(); err != nil {
		return fmt.Errorf("部分文件未能合并: %w", err)
	}
	return nil
}
