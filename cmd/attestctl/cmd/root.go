// Package cmd implements the attestctl CLI commands.
package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/attestd/internal/version"
)

var (
	// Global flags
	outputFormat string
	socketPath   string
)

var rootCmd = &cobra.Command{
	Use:   "attestctl",
	Short: "Challenger CLI for the instance attestation socket",
	Long: `attestctl is a command-line challenger for attestd.

It fetches cert chains and measurement logs from an attester socket,
drives a fresh-nonce attestation exchange, and verifies the whole chain
against a trusted root.`,
	Version:      version.String(),
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table or json")
	rootCmd.PersistentFlags().StringVar(&socketPath, "socket", "", "Path to the attester's unix domain socket")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// OutputFormat exposes the --output flag value for error formatting.
func OutputFormat() string {
	return outputFormat
}

func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
