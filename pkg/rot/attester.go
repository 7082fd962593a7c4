package rot

import "errors"

// Classification sentinels. Concrete attester implementations wrap their
// failures around these so callers can distinguish a communication failure
// from malformed data from a backing-RoT rejection via errors.Is.
var (
	// ErrTransport marks a failure to reach the attester endpoint:
	// connect, read, or write on the underlying channel.
	ErrTransport = errors.New("attester transport failure")

	// ErrMalformed marks data that could not be decoded or that violates
	// the protocol's shape (wrong attestation count, bad framing).
	ErrMalformed = errors.New("malformed attestation data")

	// ErrRotRejected marks a request the backing RoT refused to serve.
	ErrRotRejected = errors.New("backing RoT rejected request")

	// ErrNoChain is returned when no cert chain exists for a RoT type.
	// RoTs with no independent signing identity always report this.
	ErrNoChain = errors.New("no cert chain for RoT")

	// ErrNoLog is returned when no measurement log exists for a RoT type
	// that is referenced elsewhere in an exchange.
	ErrNoLog = errors.New("no measurement log for RoT")
)

// Attester is the capability contract satisfied by any RoT-backed
// attestation source: the in-process instance mock, the socket client, or a
// hardware-backed implementation.
//
// Implementations fail atomically: no operation returns a partial list.
type Attester interface {
	// Attest produces one attestation per participating RoT, binding the
	// challenger's nonce and user data to measured state. List order is
	// significant: innermost evidence first.
	Attest(nonce Nonce, userData []byte) ([]Attestation, error)

	// MeasurementLogs returns all relevant measurement logs in order of
	// concatenation: the order in which a verifier concatenates log
	// payloads to reproduce a chained digest. The order is part of the
	// contract, not incidental.
	MeasurementLogs() ([]MeasurementLog, error)

	// CertChains returns one chain per RoT that signs attestations. RoTs
	// with no independent signing identity return no chain for themselves;
	// that is not an error.
	CertChains() ([]CertChain, error)
}
