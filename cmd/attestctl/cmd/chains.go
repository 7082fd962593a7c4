package cmd

import (
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/attestd/pkg/clierror"
	"github.com/gobeyondidentity/attestd/pkg/rot"
	"github.com/gobeyondidentity/attestd/pkg/transport"
)

func init() {
	rootCmd.AddCommand(chainsCmd)
}

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "Fetch cert chains from an attester socket",
	Long: `Display the certificate chain of every signing RoT behind the
attester, leaf first.

Examples:
  attestctl chains --socket /run/attestd.sock
  attestctl chains --socket /run/attestd.sock -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if socketPath == "" {
			return clierror.Configuration("--socket is required")
		}

		client, err := transport.NewClient(socketPath)
		if err != nil {
			return clierror.ConnectionFailed(socketPath)
		}

		chains, err := client.CertChains()
		if err != nil {
			if errors.Is(err, rot.ErrMalformed) {
				return clierror.Protocol(err)
			}
			return clierror.ConnectionFailed(socketPath)
		}

		if outputFormat == "json" {
			return outputJSON(chains)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROT\tPOS\tSUBJECT\tISSUER\tNOT AFTER")
		for _, chain := range chains {
			for i, der := range chain.Certs {
				cert, err := x509.ParseCertificate(der)
				if err != nil {
					return clierror.Protocol(err)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					chain.Rot, i, cert.Subject.CommonName, cert.Issuer.CommonName,
					cert.NotAfter.Format("2006-01-02"))
			}
		}
		w.Flush()
		return nil
	},
}
