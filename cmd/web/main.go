package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"property-search/internal/config"
	"property-search/internal/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "web",
	Short: "Property search web front end",
	Long: `web serves the property search pages: a search form, the result grid and
the detail page with internet plans and nearby bike parkings, all backed by the
property REST API.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnv("CONFIG_PATH", "config/web.yaml"), "path to the YAML config file")
}

// loadConfig reads .env, the YAML file and env overrides, then installs the logger.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Color:  cfg.Logging.Color,
	})
	slog.Info("configuration loaded", "path", configPath, "backend", cfg.Backend.BaseURL)
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
