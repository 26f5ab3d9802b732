package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/msadik/chatrelay/internal/api"
	"github.com/msadik/chatrelay/internal/backoff"
	"github.com/msadik/chatrelay/internal/config"
	"github.com/msadik/chatrelay/internal/provider"
	"github.com/msadik/chatrelay/internal/queue"
	"github.com/msadik/chatrelay/internal/storage"
	"github.com/msadik/chatrelay/internal/webhook"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatrelay",
		Short: "chatrelay — REST gateway for a messaging account with reliable async delivery",
	}

	var configPath string
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(statsCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chatrelay gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store := setupStorage(cfg.Storage, log)
			defer store.Close()

			prov, err := setupProvider(cfg.Provider, log)
			if err != nil {
				return err
			}

			ledger := webhook.NewLedger(store, log)
			webhookPolicy := backoff.Policy{
				Base:        cfg.Webhook.BaseDelay,
				Ceiling:     cfg.Webhook.MaxDelay,
				MaxAttempts: cfg.Webhook.MaxAttempts,
			}
			sender := webhook.NewSender(cfg.Webhook.Timeout, cfg.Webhook.Secret)
			dispatcher := webhook.NewDispatcher(cfg.Webhook.URL, sender, ledger, webhookPolicy, webhook.TimerScheduler{}, log)

			queuePolicy := backoff.Policy{
				Base:        cfg.Queue.BaseDelay,
				Ceiling:     cfg.Queue.MaxDelay,
				MaxAttempts: cfg.Queue.MaxAttempts,
			}
			q := queue.New(queuePolicy, store, cfg.Queue.RetentionCompleted, cfg.Queue.RetentionFailed, log)
			if err := q.Load(context.Background()); err != nil {
				log.Warn().Err(err).Msg("could not restore jobs from store")
			}

			coord := queue.NewCoordinator(q, cfg.Queue.MaxBatchSize, cfg.Queue.DelayCeiling, log)
			pool := queue.NewPool(q, prov, cfg.Queue.Workers, cfg.Queue.PollInterval, cfg.Queue.SendTimeout, log)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			// Forward provider activity to the callback endpoint.
			go func() {
				for ev := range prov.Events() {
					dispatcher.Dispatch(ctx, ev.Kind, ev.Payload)
				}
			}()

			server := api.NewServer(cfg.Server, cfg.Auth.APIKey, api.Deps{
				Store:       store,
				Queue:       q,
				Coordinator: coord,
				Dispatcher:  dispatcher,
				Ledger:      ledger,
				Provider:    prov,
			}, log)
			go func() {
				if err := server.Start(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("server error")
				}
			}()

			log.Info().
				Str("version", version).
				Int("port", cfg.Server.Port).
				Int("workers", cfg.Queue.Workers).
				Bool("webhook_enabled", cfg.Webhook.URL != "").
				Msg("chatrelay is running")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			log.Info().Msg("shutting down...")

			if err := server.Shutdown(10 * time.Second); err != nil {
				log.Error().Err(err).Msg("server shutdown error")
			}

			pool.Stop()
			dispatcher.Stop()

			log.Info().Msg("chatrelay stopped")
			return nil
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)

			store, err := storage.NewSQLite(cfg.Storage.SQLite.Path)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()

			if err := store.Migrate(context.Background()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			log.Info().Msg("migrations completed successfully")
			return nil
		},
	}
}

func statsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show delivery and job stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			log := setupLogger(cfg.Logging)
			store := setupStorage(cfg.Storage, log)
			defer store.Close()

			stats, err := store.GetStats(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			out, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chatrelay v%s\n", version)
		},
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// setupStorage opens the configured store and falls back to in-memory
// storage when the database cannot be opened, so the gateway keeps serving
// in a degraded best-effort mode.
func setupStorage(cfg config.StorageConfig, log zerolog.Logger) storage.Storage {
	switch cfg.Driver {
	case "sqlite":
		store, err := storage.NewSQLite(cfg.SQLite.Path)
		if err == nil {
			if merr := store.Migrate(context.Background()); merr == nil {
				log.Info().Str("path", cfg.SQLite.Path).Msg("using SQLite storage")
				return store
			} else {
				err = merr
				store.Close()
			}
		}
		log.Warn().Err(err).Msg("database unavailable, continuing with in-memory storage")
		return storage.NewMemory()
	case "memory":
		log.Info().Msg("using in-memory storage")
		return storage.NewMemory()
	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown storage driver, using in-memory storage")
		return storage.NewMemory()
	}
}

func setupProvider(cfg config.ProviderConfig, log zerolog.Logger) (provider.Provider, error) {
	switch cfg.Driver {
	case "mock":
		return provider.NewMock(cfg.FailRate, cfg.Latency, log), nil
	default:
		return nil, fmt.Errorf("unsupported provider driver: %s", cfg.Driver)
	}
}
