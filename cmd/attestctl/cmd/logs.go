package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gobeyondidentity/attestd/pkg/clierror"
	"github.com/gobeyondidentity/attestd/pkg/dice"
	"github.com/gobeyondidentity/attestd/pkg/rot"
	"github.com/gobeyondidentity/attestd/pkg/transport"
)

func init() {
	rootCmd.AddCommand(logsCmd)
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Fetch measurement logs from an attester socket",
	Long: `Display the measurement logs of every RoT behind the attester,
in order of concatenation.

Examples:
  attestctl logs --socket /run/attestd.sock
  attestctl logs --socket /run/attestd.sock -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if socketPath == "" {
			return clierror.Configuration("--socket is required")
		}

		client, err := transport.NewClient(socketPath)
		if err != nil {
			return clierror.ConnectionFailed(socketPath)
		}

		logs, err := client.MeasurementLogs()
		if err != nil {
			if errors.Is(err, rot.ErrMalformed) {
				return clierror.Protocol(err)
			}
			return clierror.ConnectionFailed(socketPath)
		}

		if outputFormat == "json" {
			return outputJSON(logs)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROT\tINDEX\tNAME\tALGORITHM\tDIGEST")
		for _, l := range logs {
			decoded, err := dice.DecodeLog(l.Data)
			if err != nil {
				return clierror.Protocol(err)
			}
			for _, m := range decoded.Measurements {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
					l.Rot, m.Index, m.Name, m.Algorithm, hex.EncodeToString(m.Digest))
			}
		}
		w.Flush()
		return nil
	},
}
