// Package clierror provides structured errors for CLI output with codes,
// exit codes, and remediation hints. It separates internal error details
// from what gets displayed to operators.
package clierror

import (
	"encoding/json"
	"fmt"
)

// Exit codes for attestctl.
const (
	ExitSuccess       = 0 // Operation completed successfully
	ExitGeneral       = 1 // Unknown/unhandled error
	ExitConfiguration = 2 // Conflicting or missing trust configuration
	ExitRejected      = 3 // Attestation cryptographically rejected
	ExitTransport     = 4 // Socket connect/read/write failure
)

// Error codes (strings) for programmatic error handling.
const (
	CodeConfiguration       = "CONFIGURATION"
	CodeAttestationRejected = "ATTESTATION_REJECTED"
	CodeProtocol            = "PROTOCOL"
	CodeConnectionFailed    = "CONNECTION_FAILED"
	CodeInternalError       = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
	ExitCode  int    `json:"-"` // Not serialized, used for os.Exit
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// Configuration creates an error for conflicting or missing configuration.
func Configuration(reason string) *CLIError {
	return &CLIError{
		Code:      CodeConfiguration,
		Message:   reason,
		Hint:      "Pass either --root <bundle> or --self-signed, not both",
		Retryable: false,
		ExitCode:  ExitConfiguration,
	}
}

// AttestationRejected creates an error for a definitive cryptographic
// rejection: failed chain validation, nonce binding, or signature check.
func AttestationRejected(reason string) *CLIError {
	return &CLIError{
		Code:      CodeAttestationRejected,
		Message:   fmt.Sprintf("attestation verification failed: %s", reason),
		Hint:      "Check platform firmware integrity and the trust anchor in use",
		Retryable: false,
		ExitCode:  ExitRejected,
	}
}

// Protocol creates an error for a malformed exchange with the attester.
func Protocol(err error) *CLIError {
	return &CLIError{
		Code:      CodeProtocol,
		Message:   fmt.Sprintf("protocol error: %s", err.Error()),
		Hint:      "The attester endpoint may be running an incompatible version",
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// ConnectionFailed creates an error for socket connection failures.
func ConnectionFailed(target string) *CLIError {
	return &CLIError{
		Code:      CodeConnectionFailed,
		Message:   fmt.Sprintf("failed to connect to '%s'", target),
		Hint:      "Verify attestd is running and the socket path is correct",
		Retryable: true,
		ExitCode:  ExitTransport,
	}
}

// InternalError creates an error for unexpected internal errors.
func InternalError(err error) *CLIError {
	msg := "an unexpected internal error occurred"
	if err != nil {
		msg = fmt.Sprintf("internal error: %s", err.Error())
	}
	return &CLIError{
		Code:      CodeInternalError,
		Message:   msg,
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// FormatError returns the error formatted for the given output format.
// "json" produces machine-readable output; anything else a human-readable
// block with the hint on its own line.
func FormatError(err *CLIError, outputFormat string) string {
	if outputFormat == "json" {
		data, jsonErr := json.MarshalIndent(err, "", "  ")
		if jsonErr != nil {
			return fmt.Sprintf(`{"code":"%s","message":"%s"}`, err.Code, err.Message)
		}
		return string(data)
	}

	output := fmt.Sprintf("Error [%s]: %s", err.Code, err.Message)
	if err.Hint != "" {
		output += fmt.Sprintf("\nHint: %s", err.Hint)
	}
	return output
}
