package cmd

import (
	"context"
	"fmt"

	"nominatim-indexer/internal/service"

	"github.com/spf13/cobra"
)

var reindexIDs []int64

// reindexCmd 把指定要素重新标记为待索引
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "强制重新索引指定 place_id",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(reindexIDs) == 0 {
			return fmt.Errorf("必须提供 --id")
		}
		return withRuntime(0, func(rt *runtime) error {
			reply, err := rt.places.Reindex(context.Background(), &service.ReindexRequest{PlaceIDs: reindexIDs})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d places\n", reply.Marked)
			return nil
		})
	},
}

func init() {
	reindexCmd.Flags().Int64SliceVar(&reindexIDs, "id", nil, "place_id，可重复或逗号分隔")
	rootCmd.AddCommand(reindexCmd)
}
