package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"nominatim-indexer/internal/biz"

	"github.com/spf13/cobra"
)

var phrasesFile string

// wordCountsCmd 重新统计 word 表的 search_name_count
var wordCountsCmd = &cobra.Command{
	Use:   "word-counts",
	Short: "刷新词频统计",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(0, func(rt *runtime) error {
			n, err := rt.words.RefreshWordFrequencies(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d words\n", n)
			return nil
		})
	},
}

type phraseJSON struct {
	Label    string `json:"label"`
	Class    string `json:"class"`
	Type     string `json:"type"`
	Operator string `json:"operator"`
}

// specialPhrasesCmd 导入特殊短语（JSON 数组）
var specialPhrasesCmd = &cobra.Command{
	Use:   "special-phrases",
	Short: "导入特殊短语",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(phrasesFile)
		if err != nil {
			return err
		}
		var raw []phraseJSON
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("%s: %w", phrasesFile, err)
		}
		phrases := make([]biz.SpecialPhrase, 0, len(raw))
		for _, p := range raw {
			phrases = append(phrases, biz.SpecialPhrase{Label: p.Label, Class: p.Class, Type: p.Type, Operator: p.Operator})
		}
		return withRuntime(0, func(rt *runtime) error {
			n, err := rt.words.SaveSpecialPhrases(context.Background(), phrases)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d phrases\n", n)
			return nil
		})
	},
}

func init() {
	specialPhrasesCmd.Flags().StringVarP(&phrasesFile, "file", "f", "", "短语 JSON 文件")
	_ = specialPhrasesCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(wordCountsCmd, specialPhrasesCmd)
}
