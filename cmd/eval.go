package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkorolev/sitegate/pkg/config"
	"github.com/mkorolev/sitegate/pkg/eval"
)

var (
	evalConfigPath string
	evalTarget     string
	evalQuestions  string
	evalReport     string
)

func init() {
	evalCmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the adversarial persona evaluation against a live server",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()

			cfg, err := config.LoadServerConfig(evalConfigPath)
			if err != nil {
				if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = config.NewDefaultServerConfig()
			}
			if cmd.Flags().Changed("target") {
				cfg.Eval.TargetURL = evalTarget
			}
			if cmd.Flags().Changed("questions") {
				cfg.Eval.QuestionsPath = evalQuestions
			}
			if cmd.Flags().Changed("report") {
				cfg.Eval.ReportPath = evalReport
			}

			apiKey := os.Getenv(config.EnvUpstreamAPIKey)
			if apiKey == "" {
				apiKey = cfg.Upstream.APIKey
			}
			if apiKey == "" {
				return fmt.Errorf("judge api key is required (set %s)", config.EnvUpstreamAPIKey)
			}

			persona, err := loadPersona(cfg.PersonaPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return eval.NewRunner(cfg.Eval, apiKey, persona).Run(ctx)
		},
	}
	evalCmd.Flags().StringVar(&evalConfigPath, "config", config.DefaultServerConfigPath(), "Server config TOML path")
	evalCmd.Flags().StringVar(&evalTarget, "target", "", "Override eval target URL")
	evalCmd.Flags().StringVar(&evalQuestions, "questions", "", "Question set TOML path (default: built-in set)")
	evalCmd.Flags().StringVar(&evalReport, "report", "", "Report output path")
	rootCmd.AddCommand(evalCmd)
}
