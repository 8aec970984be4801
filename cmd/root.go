package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"homeguard/internal/version"
	"homeguard/pkg/log"
)

var (
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "homeguard",
	Short: "homeguard is a live-stream event recording engine",
	Long: `homeguard watches a live video stream, tracks subjects against geofenced
zones and records short event clips around every violation.
Version: ` + version.VERSION + `/` + version.COMMIT,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.InitLog(logLevel)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "etc/config.yaml", "Path to config file")

	rootCmd.AddCommand(serveCommand)
}
