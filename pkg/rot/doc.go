// Package rot defines the value types and the attester capability contract
// shared by every Root-of-Trust implementation in this repository.
//
// # Entities
//
// A challenger drives an attestation exchange with a [Nonce]. The attester
// answers with [Attestation], [MeasurementLog], and [CertChain] values, each
// tagged with the [RotType] that produced it. Payload encodings are defined
// entirely by the tag; consumers must dispatch on it before interpreting
// the bytes.
//
// # Capability
//
// Any attestation source (the in-process instance mock, the socket client,
// or eventually a hardware-backed implementation) satisfies [Attester]:
//
//	attestations, err := att.Attest(nonce, userData)
//	logs, err := att.MeasurementLogs()
//	chains, err := att.CertChains()
//
// Implementations wrap their failures around the classification sentinels
// (ErrTransport, ErrMalformed, ErrRotRejected) so callers can decide whether
// an operation is worth retrying without depending on a concrete type.
package rot
