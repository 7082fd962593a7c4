package rot

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
)

// NonceSize is the fixed length of a challenger nonce in bytes.
const NonceSize = 32

// Nonce is a challenger-chosen anti-replay value. A nonce is generated fresh
// for each challenge and discarded after one verification attempt; it is
// opaque bytes to every consumer except the digest-chaining step.
type Nonce [NonceSize]byte

// NewNonce generates a nonce from the platform's cryptographically secure
// random source. This is the only fallible constructor in the entity model.
func NewNonce() (Nonce, error) {
	var n Nonce
	if _, err := rand.Read(n[:]); err != nil {
		return Nonce{}, fmt.Errorf("platform RNG unavailable: %w", err)
	}
	return n, nil
}

// MarshalJSON encodes the nonce as a JSON array of numbers, matching the
// wire format of the socket protocol.
func (n Nonce) MarshalJSON() ([]byte, error) {
	return ByteSeq(n[:]).MarshalJSON()
}

// UnmarshalJSON decodes a JSON number array, rejecting any length other
// than NonceSize.
func (n *Nonce) UnmarshalJSON(data []byte) error {
	var seq ByteSeq
	if err := seq.UnmarshalJSON(data); err != nil {
		return err
	}
	if len(seq) != NonceSize {
		return fmt.Errorf("nonce must be %d bytes, got %d", NonceSize, len(seq))
	}
	copy(n[:], seq)
	return nil
}

// RotType identifies which Root-of-Trust produced a piece of evidence.
// The set is closed: consumers switch exhaustively and treat unknown tags
// as errors, never as a silent default.
type RotType string

const (
	// RotPlatform is the hardware RoT of the host platform. It holds the
	// signing identity that anchors the whole evidence chain.
	RotPlatform RotType = "platform"

	// RotInstance is the VM instance RoT. It has no independent signing
	// identity; its evidence is asserted transitively through the platform
	// RoT via digest chaining.
	RotInstance RotType = "instance"
)

// Valid reports whether t is a member of the closed RotType set.
func (t RotType) Valid() error {
	switch t {
	case RotPlatform, RotInstance:
		return nil
	default:
		return fmt.Errorf("unknown RoT type %q", string(t))
	}
}

// Signs reports whether the RoT has an independent signing identity.
// RoTs that do not sign never present a cert chain of their own.
func (t RotType) Signs() bool {
	switch t {
	case RotPlatform:
		return true
	case RotInstance:
		return false
	default:
		return false
	}
}

// MarshalJSON rejects tags outside the closed set.
func (t RotType) MarshalJSON() ([]byte, error) {
	if err := t.Valid(); err != nil {
		return nil, err
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON rejects tags outside the closed set.
func (t *RotType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if err := RotType(s).Valid(); err != nil {
		return err
	}
	*t = RotType(s)
	return nil
}

// ByteSeq is a byte slice that encodes as a JSON array of numbers rather
// than the base64 string encoding/json would otherwise produce. The socket
// protocol's wire format requires number arrays.
type ByteSeq []byte

// MarshalJSON implements json.Marshaler.
func (b ByteSeq) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%d", v)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, rejecting values outside 0-255.
func (b *ByteSeq) UnmarshalJSON(data []byte) error {
	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return err
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d at index %d out of range", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// Attestation is one signed statement from one RoT binding nonce and user
// data to measured state. Data's encoding is defined entirely by Rot. An
// attestation list preserves a caller-significant order: evidence is chained
// innermost first.
type Attestation struct {
	Rot  RotType `json:"rot"`
	Data ByteSeq `json:"data"`
}

// MeasurementLog is the record of measured boot/software components for one
// RoT. Data's encoding is defined entirely by Rot.
type MeasurementLog struct {
	Rot  RotType `json:"rot"`
	Data ByteSeq `json:"data"`
}

// CertChain is the certificate path anchoring one RoT's signing key to a
// root. Certs holds DER-encoded certificates, leaf first, and is non-empty
// whenever a chain is present.
type CertChain struct {
	Rot   RotType   `json:"rot"`
	Certs []ByteSeq `json:"certs"`
}

// ChainFor returns the cert chain for the given RoT. A missing chain is an
// explicit error: for RoTs that never sign this is the expected "no chain
// for this RoT" result, never an empty-but-successful chain.
func ChainFor(chains []CertChain, t RotType) (CertChain, error) {
	if err := t.Valid(); err != nil {
		return CertChain{}, err
	}
	for _, c := range chains {
		if c.Rot == t {
			if len(c.Certs) == 0 {
				return CertChain{}, fmt.Errorf("%w: empty chain for RoT %q", ErrMalformed, t)
			}
			return c, nil
		}
	}
	return CertChain{}, fmt.Errorf("%w: RoT %q", ErrNoChain, t)
}

// LogFor returns the measurement log for the given RoT. Absence of a log for
// a RoT referenced elsewhere is an error, not an empty result.
func LogFor(logs []MeasurementLog, t RotType) (MeasurementLog, error) {
	if err := t.Valid(); err != nil {
		return MeasurementLog{}, err
	}
	for _, l := range logs {
		if l.Rot == t {
			return l, nil
		}
	}
	return MeasurementLog{}, fmt.Errorf("%w: RoT %q", ErrNoLog, t)
}
