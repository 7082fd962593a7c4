package transport

import (
	"fmt"

	"github.com/gobeyondidentity/attestd/pkg/rot"
)

// AttestRequest carries the challenger's nonce and user data for an Attest
// command.
type AttestRequest struct {
	Nonce    rot.Nonce   `json:"nonce"`
	UserData rot.ByteSeq `json:"user_data"`
}

// Command is the externally tagged union of protocol commands. Exactly one
// field is set; anything else is a protocol error.
//
// Wire forms:
//
//	{"Attest":{"nonce":[...32 numbers...],"user_data":[66,77,88,99]}}
//	{"GetMeasurementLogs":{}}
//	{"GetCertChains":{}}
type Command struct {
	Attest             *AttestRequest `json:"Attest,omitempty"`
	GetMeasurementLogs *struct{}      `json:"GetMeasurementLogs,omitempty"`
	GetCertChains      *struct{}      `json:"GetCertChains,omitempty"`
}

// Validate checks that exactly one command variant is set.
func (c *Command) Validate() error {
	n := 0
	if c.Attest != nil {
		n++
	}
	if c.GetMeasurementLogs != nil {
		n++
	}
	if c.GetCertChains != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("%w: command must carry exactly one variant, got %d", rot.ErrMalformed, n)
	}
	return nil
}

// name returns the variant tag for logging.
func (c *Command) name() string {
	switch {
	case c.Attest != nil:
		return "Attest"
	case c.GetMeasurementLogs != nil:
		return "GetMeasurementLogs"
	case c.GetCertChains != nil:
		return "GetCertChains"
	default:
		return "invalid"
	}
}
