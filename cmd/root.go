/*
Copyright © 2025 tieubaoca
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tieubaoca/tables-retriever/config"
	"github.com/tieubaoca/tables-retriever/utils"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tables-retriever",
	Short: "Ask questions about an HTML page and the tables embedded in it",
	Long: `tables-retriever parses an HTML page into text nodes and table nodes,
summarizes every table with an LLM, indexes the summaries and text, and
answers questions by retrieving a summary and swapping in the full table.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		loaded, err := config.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		if err := utils.InitLogger(loaded.Log); err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")
}
