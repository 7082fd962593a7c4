package dice

import (
	"bytes"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ReferenceMeasurement is one known-good digest from a reference integrity
// manifest, matched to log entries by index.
type ReferenceMeasurement struct {
	Index     int    `cbor:"index" json:"index"`
	Name      string `cbor:"name" json:"name"`
	Algorithm string `cbor:"algorithm" json:"algorithm"`
	Digest    []byte `cbor:"digest" json:"digest"`
}

// ReferenceMeasurements is a CBOR-encoded corpus of known-good measurements
// for one platform, produced by the fixture tooling and consumed during log
// appraisal.
type ReferenceMeasurements struct {
	ID           string                 `cbor:"id" json:"id"`
	Measurements []ReferenceMeasurement `cbor:"measurements" json:"measurements"`
}

// Encode serializes the corpus as CBOR.
func (r *ReferenceMeasurements) Encode() ([]byte, error) {
	data, err := cbor.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reference measurements: %w", err)
	}
	return data, nil
}

// DecodeReferenceMeasurements deserializes a CBOR corpus.
func DecodeReferenceMeasurements(data []byte) (*ReferenceMeasurements, error) {
	var r ReferenceMeasurements
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode reference measurements: %w", err)
	}
	return &r, nil
}

// LoadReferenceMeasurements reads a CBOR corpus from a file.
func LoadReferenceMeasurements(path string) (*ReferenceMeasurements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference measurements %s: %w", path, err)
	}
	return DecodeReferenceMeasurements(data)
}

// AppraiseLog checks every log entry against the reference corpus by index.
// A log entry with no reference, or a digest that differs from its
// reference, fails the appraisal. Fail-secure: the first problem found is
// returned as a rejection.
func AppraiseLog(log Log, refs *ReferenceMeasurements) error {
	refByIndex := make(map[int]ReferenceMeasurement, len(refs.Measurements))
	for _, ref := range refs.Measurements {
		refByIndex[ref.Index] = ref
	}

	for _, m := range log.Measurements {
		ref, ok := refByIndex[m.Index]
		if !ok {
			return fmt.Errorf("%w: no reference measurement for log index %d (%s)", ErrRejected, m.Index, m.Name)
		}
		if m.Algorithm != ref.Algorithm {
			return fmt.Errorf("%w: log index %d uses %s, reference uses %s", ErrRejected, m.Index, m.Algorithm, ref.Algorithm)
		}
		if !bytes.Equal(m.Digest, ref.Digest) {
			return fmt.Errorf("%w: measurement mismatch at log index %d (%s)", ErrRejected, m.Index, m.Name)
		}
	}

	return nil
}
