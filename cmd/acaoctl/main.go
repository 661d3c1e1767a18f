package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	datasetPath string
	enginePath  string
	logLevel    string

	rootCmd = &cobra.Command{
		Use:   "acaoctl",
		Short: "Offline crop suitability and area allocation",
		Long:  "acaoctl scores crops, solves allocations and replans from a YAML dataset without the HTTP service.",
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("acaoctl: %v", err)
	}
}
