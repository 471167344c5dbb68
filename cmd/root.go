package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mkorolev/sitegate/pkg/logutil"
)

var rootLogLevel string

var rootCmd = &cobra.Command{
	Use:   "sitegate",
	Short: "Personal website backend",
	Long:  "Sitegate serves the persona chat proxy, builds the static site, and runs persona evaluations.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SilenceUsage = true
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logutil.Configure(rootLogLevel)
	}
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
}
