package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ramsey-B/clover/config"
)

func main() {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "clover",
		Short:         "Customer duplicate detection and merge service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file loaded before the environment")

	load := func() (*app, error) {
		cfg, err := config.Load(envFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return newApp(cfg)
	}

	rootCmd.AddCommand(newServeCmd(load))
	rootCmd.AddCommand(newScanCmd(load))
	rootCmd.AddCommand(newMigrateCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
