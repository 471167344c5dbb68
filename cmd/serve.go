package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mkorolev/sitegate/pkg/api"
	"github.com/mkorolev/sitegate/pkg/config"
	"github.com/mkorolev/sitegate/pkg/store"
	"github.com/mkorolev/sitegate/pkg/upstream"
)

var (
	serveConfigPath         string
	serveListenAddrOverride string
	serveMemoryStore        bool
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat proxy server",
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotenv()

			cfg, err := config.LoadServerConfig(serveConfigPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("no config at %s, run `sitegate config` first", serveConfigPath)
				}
				return fmt.Errorf("load server config: %w", err)
			}
			if cmd.Flags().Changed("listen-addr") {
				cfg.ListenAddr = serveListenAddrOverride
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			var st store.Store
			if serveMemoryStore {
				log.Warn("using in-process store, tokens and rate windows reset on restart")
				st = store.NewMemoryStore()
			} else {
				rs, err := store.NewRedisStore(cfg.RedisURL)
				if err != nil {
					return fmt.Errorf("redis: %w", err)
				}
				defer rs.Close()
				pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := rs.Ping(pingCtx); err != nil {
					// Requests fail closed until redis comes back, so serve anyway.
					log.Warn("redis unreachable at startup", "url", cfg.RedisURL, "err", err)
				}
				cancel()
				st = rs
			}

			persona, err := loadPersona(cfg.PersonaPath)
			if err != nil {
				return err
			}

			srv := api.NewServer(cfg, st, upstream.NewClient(cfg.Upstream, persona))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}
	serveCmd.Flags().StringVar(&serveConfigPath, "config", config.DefaultServerConfigPath(), "Server config TOML path")
	serveCmd.Flags().StringVar(&serveListenAddrOverride, "listen-addr", "", "Override listen address from config (e.g. 127.0.0.1:8081)")
	serveCmd.Flags().BoolVar(&serveMemoryStore, "memory-store", false, "Use an in-process store instead of redis")
	rootCmd.AddCommand(serveCmd)
}

func loadPersona(path string) (string, error) {
	if path == "" {
		log.Warn("no persona_path configured, chatting without a system prompt")
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read persona: %w", err)
	}
	return string(b), nil
}
