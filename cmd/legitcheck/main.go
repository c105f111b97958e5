package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "legitcheck",
	Short: "Investigate whether a business, website or person is legitimate",
	Long: `legitcheck researches a target, analyzes the evidence submitted for it and
produces a scored legitimacy report as JSON and PDF.

Run "legitcheck serve" to start the API server and the investigation worker.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(investigationCmd)
	rootCmd.AddCommand(emailsCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(templatesCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(mcpCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError("%v", err)
		stop()
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("legitcheck version %s", version)
}
