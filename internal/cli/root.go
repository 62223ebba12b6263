// Package cli implements the RateHive command-line interface using Cobra.
// Each subcommand maps to an engine capability (serve, award, stats, badges).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ratehive",
	Short: "RateHive — points and badges engine",
	Long: `RateHive is the points-award and badge-unlock engine behind the
review site. Users earn points for ratings, reviews and brand
contributions; badges unlock when their conditions are met.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
