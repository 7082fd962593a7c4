// Package instance implements the VM instance RoT as an aggregating mock:
// it has no signing identity of its own, but cryptographically binds the
// challenger's nonce and user data to the evidence of the platform RoT
// beneath it via digest chaining.
package instance

import (
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"

	"github.com/gobeyondidentity/attestd/pkg/dice"
	"github.com/gobeyondidentity/attestd/pkg/rot"
)

// Mock stands in for the process that backs a VM instance. It wraps a
// platform RoT mock and carries its own measurement log describing the
// instance (instance UUID, rootfs digest, image version).
//
// A Mock is read-only after construction; it is the only state shared
// across server connections and is safe for concurrent use.
type Mock struct {
	platform *dice.Mock
	log      dice.Log
	logBytes []byte
}

// NewMock wraps a platform RoT mock with the given instance measurement
// log. The log's serialized form is fixed here; every attestation the mock
// produces chains over exactly these bytes.
func NewMock(platform *dice.Mock, instanceLog dice.Log) (*Mock, error) {
	logBytes, err := instanceLog.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize instance measurement log: %w", err)
	}
	return &Mock{
		platform: platform,
		log:      instanceLog,
		logBytes: logBytes,
	}, nil
}

// NewInstanceLog builds a measurement log describing one VM instance.
func NewInstanceLog(instanceID uuid.UUID, rootfsDigest []byte, imageVersion string) dice.Log {
	idDigest := sha256.Sum256(instanceID[:])
	versionDigest := sha256.Sum256([]byte(imageVersion))
	return dice.Log{
		Measurements: []dice.Measurement{
			{Index: 1, Name: "instance-uuid", Algorithm: "sha256", Digest: idDigest[:]},
			{Index: 2, Name: "rootfs", Algorithm: "sha256", Digest: rootfsDigest},
			{Index: 3, Name: "image-version", Algorithm: "sha256", Digest: versionDigest[:]},
		},
	}
}

// Attest produces the single chained attestation for this instance.
//
// The challenger's raw nonce never reaches the platform RoT. Instead the
// inner nonce is the chained digest over the instance measurement log, the
// nonce, and the user data; the platform RoT signs a statement over that
// digest and its own log digest. The result is wrapped as exactly one
// Attestation tagged with the platform RoT type, since the statement is
// the platform RoT's evidence chained through.
func (m *Mock) Attest(nonce rot.Nonce, userData []byte) ([]rot.Attestation, error) {
	inner := rot.ChainDigest(m.logBytes, nonce, userData)

	st, err := m.platform.Attest(inner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rot.ErrRotRejected, err)
	}

	// Overflow here is a schema bug, not a wrapped-attester failure;
	// Encode already reports it as dice.ErrOverflow.
	data, err := st.Encode()
	if err != nil {
		return nil, err
	}

	return []rot.Attestation{{Rot: rot.RotPlatform, Data: data}}, nil
}

// MeasurementLogs returns the instance log followed by the platform log, in
// order of concatenation: the instance log's bytes lead the chained digest,
// so a verifier consumes it first.
func (m *Mock) MeasurementLogs() ([]rot.MeasurementLog, error) {
	return []rot.MeasurementLog{
		{Rot: rot.RotInstance, Data: m.logBytes},
		{Rot: rot.RotPlatform, Data: m.platform.LogBytes()},
	}, nil
}

// CertChains forwards the platform RoT's chain unchanged. The instance RoT
// never signs, so it presents no chain of its own; that is not an error.
func (m *Mock) CertChains() ([]rot.CertChain, error) {
	certs := m.platform.Certificates()
	ders := make([]rot.ByteSeq, len(certs))
	for i, cert := range certs {
		ders[i] = cert.Raw
	}
	return []rot.CertChain{{Rot: rot.RotPlatform, Certs: ders}}, nil
}

// InstanceLogBytes returns the canonical serialized instance measurement
// log, the bytes every chained digest from this mock leads with.
func (m *Mock) InstanceLogBytes() []byte {
	return m.logBytes
}
