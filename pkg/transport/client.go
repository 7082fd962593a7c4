package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/gobeyondidentity/attestd/pkg/rot"
)

// DefaultDialTimeout bounds connection establishment to the socket.
const DefaultDialTimeout = 5 * time.Second

// Client reaches an attester over the socket protocol. It implements
// rot.Attester; callers cannot tell it apart from an in-process attester.
//
// Every call is an independent exchange: connect, write one command line,
// read one response line, close.
type Client struct {
	path        string
	DialTimeout time.Duration
}

// NewClient creates a client for the socket at path. Connection fails if
// the path does not exist, so that is checked up front.
func NewClient(path string) (*Client, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("socket path %s: %w", path, err)
	}
	return &Client{path: path, DialTimeout: DefaultDialTimeout}, nil
}

// roundTrip performs one command/response exchange and decodes the
// response line into out.
func (c *Client) roundTrip(cmd Command, out interface{}) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	line, err := json.Marshal(&cmd)
	if err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	line = append(line, '\n')

	conn, err := net.DialTimeout("unix", c.path, c.DialTimeout)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %v", rot.ErrTransport, c.path, err)
	}
	defer conn.Close()

	// One atomic write for the whole framed command.
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("%w: write command: %v", rot.ErrTransport, err)
	}

	resp, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("%w: read response: %v", rot.ErrTransport, err)
	}

	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", rot.ErrMalformed, err)
	}
	return nil
}

// Attest sends an Attest command and returns the attestation list as the
// server produced it, order preserved.
func (c *Client) Attest(nonce rot.Nonce, userData []byte) ([]rot.Attestation, error) {
	cmd := Command{Attest: &AttestRequest{Nonce: nonce, UserData: userData}}

	var attestations []rot.Attestation
	if err := c.roundTrip(cmd, &attestations); err != nil {
		return nil, err
	}
	return attestations, nil
}

// MeasurementLogs fetches all measurement logs in order of concatenation.
func (c *Client) MeasurementLogs() ([]rot.MeasurementLog, error) {
	cmd := Command{GetMeasurementLogs: &struct{}{}}

	var logs []rot.MeasurementLog
	if err := c.roundTrip(cmd, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

// CertChains fetches the cert chains of every signing RoT.
func (c *Client) CertChains() ([]rot.CertChain, error) {
	cmd := Command{GetCertChains: &struct{}{}}

	var chains []rot.CertChain
	if err := c.roundTrip(cmd, &chains); err != nil {
		return nil, err
	}
	return chains, nil
}
