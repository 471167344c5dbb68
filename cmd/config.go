package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkorolev/sitegate/pkg/config"
)

var (
	configPath  string
	configForce bool
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Write a starter config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil && !configForce {
				return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
			}
			if err := config.Save(configPath, config.NewDefaultServerConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s and %s in the environment before serving.\n",
				config.EnvSecretKey, config.EnvUpstreamAPIKey)
			return nil
		},
	}
	configCmd.Flags().StringVar(&configPath, "config", config.DefaultServerConfigPath(), "Server config TOML path")
	configCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	rootCmd.AddCommand(configCmd)
}
