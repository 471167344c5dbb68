package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mkorolev/sitegate/pkg/sitebuild"
)

var (
	buildSiteDir string
	buildForce   bool
)

func init() {
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "Render blog posts and regenerate site indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := &sitebuild.Builder{SiteDir: buildSiteDir, Force: buildForce}
			return b.Run()
		},
	}
	buildCmd.Flags().StringVar(&buildSiteDir, "site", ".", "Site root directory")
	buildCmd.Flags().BoolVar(&buildForce, "force", false, "Re-render posts even when unchanged")
	rootCmd.AddCommand(buildCmd)
}
