package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"property-search/internal/apiclient"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and ping the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := newClient(cfg)
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.GetTimeout())
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config:  ok (%s)\n", configPath)
		if err := client.Ping(ctx); err != nil {
			fmt.Fprintf(out, "backend: unreachable (%s): %s\n", cfg.Backend.BaseURL, apiclient.Message(err))
			return fmt.Errorf("backend check failed: %w", err)
		}
		fmt.Fprintf(out, "backend: ok (%s)\n", cfg.Backend.BaseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
