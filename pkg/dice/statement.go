package dice

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Capacity bounds for serialized values, fixed by the schemas below. A
// value that encodes past its bound indicates a schema or programmer error
// and is reported as ErrOverflow, distinct from malformed runtime input.
const (
	// StatementVersion is the current statement schema version.
	StatementVersion = 1

	// StatementMaxSize bounds a serialized Statement.
	StatementMaxSize = 256

	// LogMaxSize bounds a serialized Log.
	LogMaxSize = 4096
)

// ErrOverflow reports a serialized value exceeding its schema capacity
// bound.
var ErrOverflow = errors.New("serialized value exceeds schema capacity bound")

// DigestSize is the length of all digests in this schema (SHA-256).
const DigestSize = sha256.Size

// SignatureSize is the length of an ed25519 signature.
const SignatureSize = 64

// Statement is the platform RoT's signed statement: it binds the nonce it
// was challenged with to the digest of its measurement log. The signature
// covers version || nonce || log digest.
type Statement struct {
	Version   uint8               `cbor:"version"`
	Nonce     [DigestSize]byte    `cbor:"nonce"`
	LogDigest [DigestSize]byte    `cbor:"log_digest"`
	Signature [SignatureSize]byte `cbor:"signature"`
}

// signedBytes returns the byte string the signature covers.
func (s *Statement) signedBytes() []byte {
	msg := make([]byte, 0, 1+DigestSize+DigestSize)
	msg = append(msg, s.Version)
	msg = append(msg, s.Nonce[:]...)
	msg = append(msg, s.LogDigest[:]...)
	return msg
}

// Encode serializes the statement as CBOR under StatementMaxSize.
func (s *Statement) Encode() ([]byte, error) {
	data, err := cbor.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode statement: %w", err)
	}
	if len(data) > StatementMaxSize {
		return nil, fmt.Errorf("%w: statement is %d bytes, bound is %d", ErrOverflow, len(data), StatementMaxSize)
	}
	return data, nil
}

// DecodeStatement deserializes a CBOR statement.
func DecodeStatement(data []byte) (Statement, error) {
	var s Statement
	if err := cbor.Unmarshal(data, &s); err != nil {
		return Statement{}, fmt.Errorf("failed to decode statement: %w", err)
	}
	if s.Version != StatementVersion {
		return Statement{}, fmt.Errorf("unsupported statement version %d", s.Version)
	}
	return s, nil
}

// Measurement is one measured component in a RoT's measurement log.
type Measurement struct {
	Index     int    `cbor:"index" json:"index"`
	Name      string `cbor:"name" json:"name"`
	Algorithm string `cbor:"algorithm" json:"algorithm"`
	Digest    []byte `cbor:"digest" json:"digest"`
}

// Log is an ordered record of components measured during boot or
// initialization.
type Log struct {
	Measurements []Measurement `cbor:"measurements" json:"measurements"`
}

// Encode serializes the log as CBOR under LogMaxSize.
func (l *Log) Encode() ([]byte, error) {
	data, err := cbor.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to encode measurement log: %w", err)
	}
	if len(data) > LogMaxSize {
		return nil, fmt.Errorf("%w: log is %d bytes, bound is %d", ErrOverflow, len(data), LogMaxSize)
	}
	return data, nil
}

// DecodeLog deserializes a CBOR measurement log.
func DecodeLog(data []byte) (Log, error) {
	var l Log
	if err := cbor.Unmarshal(data, &l); err != nil {
		return Log{}, fmt.Errorf("failed to decode measurement log: %w", err)
	}
	return l, nil
}
