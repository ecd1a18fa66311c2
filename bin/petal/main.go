package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/NikhilTirunagiri/petal-v1/internal/profile"
	"github.com/NikhilTirunagiri/petal-v1/plugin/mem0"
	"github.com/NikhilTirunagiri/petal-v1/server"
	"github.com/NikhilTirunagiri/petal-v1/server/ai"
	"github.com/NikhilTirunagiri/petal-v1/store"
	"github.com/NikhilTirunagiri/petal-v1/store/cache"
	"github.com/NikhilTirunagiri/petal-v1/store/db"
)

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "petal",
	Short: "A session memory service for capturing, enriching and retrieving text snippets.",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return err
		}

		level := slog.LevelInfo
		if instanceProfile.IsDev() {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		driver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			return fmt.Errorf("failed to create db driver: %w", err)
		}
		if err := driver.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		kv := cache.NewClient(cache.Config{
			Addr:     instanceProfile.RedisAddr,
			Password: instanceProfile.RedisPassword,
			DB:       instanceProfile.RedisDB,
		})

		st := store.New(driver, kv, instanceProfile)

		summary := ai.NewSummarizer(instanceProfile.AnthropicAPIKey, instanceProfile.SummaryModel)
		embed := ai.NewProvider(&ai.Config{
			BaseURL:        instanceProfile.OpenAIBaseURL,
			APIKey:         instanceProfile.OpenAIAPIKey,
			EmbeddingModel: instanceProfile.EmbeddingModel,
			Dimensions:     instanceProfile.EmbeddingDimensions,
		}, cache.NewEmbeddingCache(kv))
		personalMemory := mem0.NewService(instanceProfile.Mem0APIKey, instanceProfile.Mem0BaseURL)

		s := server.NewServer(instanceProfile, st, kv, summary, embed, personalMemory)

		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				slog.Error("server failed to start", slog.Any("err", err))
			}
		case <-ctx.Done():
			slog.Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.Shutdown(shutdownCtx)
		return nil
	},
}

var version = "0.1.0"

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("data", "")
	viper.SetDefault("driver", "sqlite")

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	viper.SetEnvPrefix("petal")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to run command", slog.Any("err", err))
		os.Exit(1)
	}
}
