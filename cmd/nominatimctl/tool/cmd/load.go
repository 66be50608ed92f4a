package cmd

import (
	"context"
	"fmt"

	"nominatim-indexer/internal/service"

	"github.com/spf13/cobra"
)

var (
	loadFiles   []string
	loadIndex   bool
	loadThreads int
)

// loadCmd 导入 GeoJSON 要素文件（首次导入与增量更新同一格式）
var loadCmd = &cobra.Command{
	Use:     "load",
	Aliases: []string{"import", "update"},
	Short:   "导入或增量更新 GeoJSON 要素，可选随后执行索引",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := append(loadFiles, args...)
		if len(files) == 0 {
			return fmt.Errorf("必须提供 --file 或文件参数（- 表示标准输入）")
		}
		return withRuntime(loadThreads, func(rt *runtime) error {
			ctx := context.Background()
			for _, f := range files {
				batch, err := service.ReadFeatureFile(f)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				reply, err := rt.places.ApplyBatch(ctx, batch)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: places=%d relations=%d ways=%d deleted=%d\n",
					f, reply.Places, reply.Relations, reply.Ways, reply.Deleted)
			}
			if !loadIndex {
				return nil
			}
			return runIndex(ctx, cmd, rt)
		})
	},
}

func init() {
	loadCmd.Flags().StringSliceVarP(&loadFiles, "file", "f", nil, "GeoJSON FeatureCollection 文件，可重复")
	loadCmd.Flags().BoolVar(&loadIndex, "index", false, "导入后立即索引")
	loadCmd.Flags().IntVar(&loadThreads, "threads", 0, "索引线程数，0 使用配置")
	rootCmd.AddCommand(loadCmd)
}
