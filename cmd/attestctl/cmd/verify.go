package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/attestd/pkg/clierror"
	"github.com/gobeyondidentity/attestd/pkg/dice"
	"github.com/gobeyondidentity/attestd/pkg/rot"
	"github.com/gobeyondidentity/attestd/pkg/transport"
	"github.com/gobeyondidentity/attestd/pkg/verify"
)

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("root", "", "Path to trusted root certificate bundle (PEM)")
	verifyCmd.Flags().Bool("self-signed", false, "Accept a chain terminating in a self-signed root")
	verifyCmd.Flags().String("user-data", "", "Hex-encoded application data to entangle into the challenge")
	verifyCmd.Flags().String("corim", "", "Path to reference measurement corpus for log appraisal (CBOR)")
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run a full attestation exchange and verify the result",
	Long: `Verify drives a complete challenge against an attester socket:

It fetches cert chains and measurement logs, sends a fresh nonce, then
independently reconstructs the chained digest and checks signature, cert
chain, and measurement log together.

Examples:
  attestctl verify --socket /run/attestd.sock --root test-root.cert.pem
  attestctl verify --socket /run/attestd.sock --self-signed
  attestctl verify --socket /run/attestd.sock --self-signed --user-data 424d5863`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootPath, _ := cmd.Flags().GetString("root")
		selfSigned, _ := cmd.Flags().GetBool("self-signed")
		userDataHex, _ := cmd.Flags().GetString("user-data")
		corimPath, _ := cmd.Flags().GetString("corim")

		if socketPath == "" {
			return clierror.Configuration("--socket is required")
		}
		if (rootPath != "") == selfSigned {
			return clierror.Configuration("exactly one of --root and --self-signed must be chosen")
		}

		userData := []byte{}
		if userDataHex != "" {
			decoded, err := hex.DecodeString(userDataHex)
			if err != nil {
				return clierror.Configuration(fmt.Sprintf("invalid --user-data: %v", err))
			}
			userData = decoded
		}

		cfg := verify.Config{
			TrustedRootPath: rootPath,
			SelfSigned:      selfSigned,
			UserData:        userData,
		}
		if corimPath != "" {
			refs, err := dice.LoadReferenceMeasurements(corimPath)
			if err != nil {
				return clierror.Configuration(err.Error())
			}
			cfg.References = refs
		}

		client, err := transport.NewClient(socketPath)
		if err != nil {
			return clierror.ConnectionFailed(socketPath)
		}

		decision, err := verify.Verify(client, cfg)
		if err != nil {
			switch {
			case errors.Is(err, rot.ErrTransport):
				return clierror.ConnectionFailed(socketPath)
			case errors.Is(err, rot.ErrMalformed), errors.Is(err, rot.ErrNoLog), errors.Is(err, rot.ErrNoChain):
				return clierror.Protocol(err)
			default:
				return clierror.InternalError(err)
			}
		}

		if !decision.Verified {
			if outputFormat != "json" {
				color.Red("✗ attestation rejected")
			}
			return clierror.AttestationRejected(decision.Reason)
		}

		if outputFormat == "json" {
			return outputJSON(map[string]interface{}{"verified": true})
		}

		color.Green("✓ attestation verified")
		if decision.Root != nil {
			fmt.Printf("Anchored to: %s\n", decision.Root.Subject.CommonName)
		}
		return nil
	},
}
