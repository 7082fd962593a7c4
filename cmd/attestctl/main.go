package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gobeyondidentity/attestd/cmd/attestctl/cmd"
	"github.com/gobeyondidentity/attestd/pkg/clierror"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var cliErr *clierror.CLIError
		if errors.As(err, &cliErr) {
			fmt.Fprintln(os.Stderr, clierror.FormatError(cliErr, cmd.OutputFormat()))
			os.Exit(cliErr.ExitCode)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(clierror.ExitGeneral)
	}
}
