package cmd

import (
	"fmt"
	"os"

	"nominatim-indexer/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nominatimctl",
	Short: "nominatim-indexer 运维工具",
	Long:  `nominatimctl 提供导入、增量更新、索引、删除与词频维护等子命令。`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "conf", "c", "./configs", "config path (directory or file)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "输出 debug 日志")
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

func newLogger() log.Logger {
	level := log.LevelInfo
	if verbose {
		level = log.LevelDebug
	}
	return log.NewFilter(log.With(log.NewStdLogger(os.Stderr), "ts", log.DefaultTimestamp), log.FilterLevel(level))
}

// loadConfig 读取配置，threads 大于 0 时覆盖配置中的线程数。
func loadConfig(threads int) (*conf.Bootstrap, func(), error) {
	bc, closeConf, err := conf.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if threads > 0 {
		bc.Indexer.Threads = threads
	}
	return bc, closeConf, nil
}

// withRuntime 构建运行时并在结束后释放。
func withRuntime(threads int, fn func(rt *runtime) error) error {
	bc, closeConf, err := loadConfig(threads)
	if err != nil {
		return err
	}
	defer closeConf()
	rt, cleanup, err := wireRuntime(bc.Data, bc.Indexer, newLogger())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(rt)
}
