package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-verify",
	Short: "Train and evaluate a face verification classifier",
	Long: `Face Verify decides whether two face images show the same person.
It embeds faces through an external embedding server, builds
identity-disjoint train/test splits from a labeled pair table,
trains a small classifier on embedding differences and reports
accuracy, precision, recall and F1, optionally across a parameter sweep.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
