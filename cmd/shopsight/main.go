package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/renwaldo/shopsight/ai"
	"github.com/renwaldo/shopsight/ai/embedding"
	"github.com/renwaldo/shopsight/ai/imagepick"
	"github.com/renwaldo/shopsight/ai/llm"
	"github.com/renwaldo/shopsight/ai/metrics"
	"github.com/renwaldo/shopsight/ai/refine"
	"github.com/renwaldo/shopsight/engine"
	"github.com/renwaldo/shopsight/internal/profile"
	"github.com/renwaldo/shopsight/internal/version"
	"github.com/renwaldo/shopsight/kb"
	"github.com/renwaldo/shopsight/objstore"
	"github.com/renwaldo/shopsight/server"
	"github.com/renwaldo/shopsight/store"
	"github.com/renwaldo/shopsight/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "shopsight",
	Short: `A conversational retail search assistant: refine queries with text, history, and product images over a vector catalog.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory (ignore error if absent).
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		aiConfig := ai.NewConfigFromProfile(instanceProfile)
		if err := aiConfig.Validate(); err != nil {
			slog.Error("invalid AI configuration", "error", err)
			return
		}
		if !aiConfig.Enabled {
			slog.Error("an LLM API key is required; set SHOPSIGHT_AI_LLM_API_KEY")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDriver(instanceProfile)
		if err != nil {
			slog.Error("failed to create db driver", "error", err)
			return
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}
		defer storeInstance.Close()

		searchEngine, exporter, err := buildEngine(instanceProfile, aiConfig, storeInstance)
		if err != nil {
			slog.Error("failed to build search engine", "error", err)
			return
		}

		s := server.NewServer(instanceProfile, searchEngine, exporter)

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM.
		signal.Notify(c, terminationSignals...)
		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			return
		}

		<-ctx.Done()
	},
}

func buildEngine(p *profile.Profile, aiConfig *ai.Config, st *store.Store) (*engine.Engine, *metrics.PrometheusExporter, error) {
	llmService, err := llm.NewService(&aiConfig.LLM)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := embedding.NewService(&aiConfig.Embedding)
	if err != nil {
		return nil, nil, err
	}

	exporter := metrics.NewPrometheusExporter(metrics.DefaultConfig())

	fetcher := objstore.NewHTTPFetcher(objstore.Config{
		Timeout:  time.Duration(p.ImageFetchTimeout) * time.Second,
		Rate:     p.ImageFetchRate,
		Exporter: exporter,
	})
	encoder := imagepick.NewEncoder(fetcher)

	refiner := refine.NewRefiner(llmService, encoder, refine.Config{
		MaxTokens:   aiConfig.Refiner.MaxTokens,
		Temperature: aiConfig.Refiner.Temperature,
		Exporter:    exporter,
	})
	selector := imagepick.NewSelector(llmService, imagepick.NewFilter(fetcher), encoder, imagepick.Config{
		MaxTokens:   aiConfig.Picker.MaxTokens,
		Temperature: aiConfig.Picker.Temperature,
		Exporter:    exporter,
	})
	retriever := kb.NewVectorRetriever(embedder, st)

	return engine.New(refiner, retriever, st, selector, exporter, engine.Config{TopK: p.RetrievalTopK}), exporter, nil
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28091, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("shopsight")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("ShopSight %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)
	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
