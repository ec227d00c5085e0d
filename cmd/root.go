package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-clock",
	Short: "A face recognition attendance terminal",
	Long: `Face Clock is the attendance terminal CLI. It extracts face embeddings
from captured photos, enrolls workers with the identity store, submits
clock-in and clock-out verifications, and reads the attendance event log.

It can also run the reference identity store itself (see 'serve').`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
