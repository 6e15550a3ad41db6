package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Aegis Pulse - 소셜 감성 집계 + 실행 가능한 게시물 랭킹",
	Long: `Aegis Pulse Unified CLI

Reddit / Twitter 게시물을 수집하고 티커별 감성을 집계합니다.
collect → classify → persist → rank 파이프라인.

Usage:
  go run ./cmd/pulse [command]

Examples:
  go run ./cmd/pulse migrate
  go run ./cmd/pulse api
  go run ./cmd/pulse collect
  go run ./cmd/pulse trigger
  go run ./cmd/pulse scheduler start`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
