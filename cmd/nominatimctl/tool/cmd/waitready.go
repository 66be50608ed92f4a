package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	waitURL     string
	waitTimeout time.Duration
	waitIndexed bool
)

// waitreadyCmd waits until nominatim-indexer reports healthy status
var waitreadyCmd = &cobra.Command{
	Use:   "waitready",
	Short: "等待 /status 就绪，--indexed 时还要求没有待处理要素",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		for {
			if ready(ctx) {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("waitready 超时：%s", waitURL)
			case <-time.After(2 * time.Second):
			}
		}
	},
}

func ready(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, waitURL, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	if !waitIndexed {
		return true
	}
	var st struct {
		Ready bool `json:"ready"`
	}
	return json.NewDecoder(resp.Body).Decode(&st) == nil && st.Ready
}

func init() {
	waitreadyCmd.Flags().StringVar(&waitURL, "url", "http://127.0.0.1:8000/status", "就绪探针 URL")
	waitreadyCmd.Flags().DurationVar(&waitTimeout, "timeout", 10*time.Minute, "等待超时")
	waitreadyCmd.Flags().BoolVar(&waitIndexed, "indexed", false, "等待全部要素索引完成")
	rootCmd.AddCommand(waitreadyCmd)
}
