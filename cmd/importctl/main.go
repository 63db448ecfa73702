package main

import (
	"fmt"
	"os"

	_ "github.com/calderglen/joinery-imports/internal/schema" // Register all importers
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Offline tooling for spreadsheet importers",
	Long: `importctl runs importer pipelines locally: list the registered
importers, emit blank templates, and check a spreadsheet for row errors
without touching the backend.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
