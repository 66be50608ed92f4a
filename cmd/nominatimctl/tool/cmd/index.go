package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexThreads int

// indexCmd 处理所有待索引与待删除要素后退出
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "按 rank 顺序处理全部待索引要素",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(indexThreads, func(rt *runtime) error {
			return runIndex(context.Background(), cmd, rt)
		})
	},
}

func init() {
	indexCmd.Flags().IntVar(&indexThreads, "threads", 0, "索引线程数，0 使用配置")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, cmd *cobra.Command, rt *runtime) error {
	stats, err := rt.indexer.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), stats.String())
	if stats.Failed > 0 {
		return fmt.Errorf("%d places failed and remain pending", stats.Failed)
	}
	return nil
}
