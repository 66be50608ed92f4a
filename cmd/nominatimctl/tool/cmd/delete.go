package cmd

import (
	"context"
	"fmt"

	"nominatim-indexer/internal/service"

	"github.com/spf13/cobra"
)

var delRef service.OSMRef

// deleteCmd 标记 OSM 对象待删除，由下一次索引执行删除
var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "标记 OSM 对象的要素为待删除",
	RunE: func(cmd *cobra.Command, args []string) error {
		if delRef.OSMType == "" || delRef.OSMID == 0 {
			return fmt.Errorf("必须提供 --osm-type 与 --osm-id")
		}
		return withRuntime(0, func(rt *runtime) error {
			reply, err := rt.places.Delete(context.Background(), delRef)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "marked %d places\n", reply.Deleted)
			return nil
		})
	},
}

func init() {
	deleteCmd.Flags().StringVar(&delRef.OSMType, "osm-type", "", "N|W|R")
	deleteCmd.Flags().Int64Var(&delRef.OSMID, "osm-id", 0, "OSM id")
	deleteCmd.Flags().StringVar(&delRef.Class, "class", "", "只删除该 class 的要素，默认全部")
	rootCmd.AddCommand(deleteCmd)
}
