package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

// statusCmd 输出各索引状态的要素数量
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "查看索引进度",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(0, func(rt *runtime) error {
			reply, err := rt.places.Status(context.Background())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(reply.Counts))
			for k := range reply.Counts {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", k, reply.Counts[k])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pending %d\n", reply.Pending)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
