package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/attestd/internal/fixture"
	"github.com/gobeyondidentity/attestd/pkg/clierror"
)

func init() {
	rootCmd.AddCommand(fixtureCmd)
	fixtureCmd.Flags().String("out", "", "Directory to write fixture files into (required)")
}

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Generate test PKI material and mock measurement corpora",
	Long: `Generate a complete development fixture: an ed25519 certificate
chain, the platform signing key, a measurement log, and the matching
reference measurement corpus.

Files written: test-root.cert.pem, test-alias.certlist.pem,
test-alias.key.pem, log.bin, corim.cbor.

Example:
  attestctl fixture --out ./fixtures
  attestd -socket /run/attestd.sock -fixture-dir ./fixtures`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outDir, _ := cmd.Flags().GetString("out")
		if outDir == "" {
			return clierror.Configuration("--out is required")
		}

		fix, err := fixture.Generate()
		if err != nil {
			return clierror.InternalError(err)
		}
		if err := fix.Write(outDir); err != nil {
			return clierror.InternalError(err)
		}

		fmt.Printf("Wrote fixture to %s\n", outDir)
		return nil
	},
}
