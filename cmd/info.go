package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/duke-git/lancet/v2/slice"
	"github.com/spf13/cobra"

	"yqhp/eval-fanout/internal/evalcfg"
)

var (
	// info 命令的 flags
	infoJSON bool
)

// infoCmd 是 info 子命令
var infoCmd = &cobra.Command{
	Use:   "info <cfg>...",
	Short: "列出需要缓存的观测数据集和变量",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "以 JSON 格式输出")
}

// CacheEntry 是一个需要缓存的数据集
type CacheEntry struct {
	ObsID     string   `json:"obs_id"`
	Variables []string `json:"variables"`
}

// cacheInfo 汇总配置中非 superobs 网络的数据集与变量，保持首次出现的顺序
func cacheInfo(cfg *evalcfg.Config) []CacheEntry {
	var entries []CacheEntry
	index := make(map[string]int)
	for _, n := range cfg.CacheNetworks() {
		i, ok := index[n.ObsID]
		if !ok {
			index[n.ObsID] = len(entries)
			entries = append(entries, CacheEntry{ObsID: n.ObsID})
			i = len(entries) - 1
		}
		entries[i].Variables = slice.Union(entries[i].Variables, n.Variables)
	}
	return entries
}

func runInfo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	result := make(map[string][]CacheEntry, len(args))

	for _, file := range args {
		cfg, err := evalcfg.Load(file)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		entries := cacheInfo(cfg)

		if infoJSON {
			result[file] = entries
			continue
		}
		fmt.Fprintf(out, "%s:\n", file)
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "  OBS_ID\tVARIABLES")
		for _, e := range entries {
			fmt.Fprintf(w, "  %s\t%s\n", e.ObsID, strings.Join(e.Variables, ","))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if infoJSON {
		data, err := sonic.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	}
	return nil
}
