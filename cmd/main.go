package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/corescout/config"
	"github.com/meghashyamc/corescout/logger"
	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	log logger.Logger
)

var rootCmd = &cobra.Command{
	Use:           "corescout",
	Short:         "Index document folders, search them and export grid references as KML",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		env, _ := cmd.Flags().GetString("env")

		var err error
		cfg, err = config.Load(env)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log = logger.New(cfg.GetLogLevel())
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().String("env", "", "config environment (defaults to $ENV, then local)")
}

func main() {
	godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
