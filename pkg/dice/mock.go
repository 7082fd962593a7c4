package dice

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Mock stands in for the platform RoT hardware. It holds a signing key, the
// leaf-first cert chain anchoring that key, and a measurement log, all
// loaded from fixture files.
//
// A Mock is read-only after construction and safe for concurrent use.
type Mock struct {
	key      ed25519.PrivateKey
	chain    []*x509.Certificate
	log      Log
	logBytes []byte
}

// NewMock builds a mock platform RoT from in-memory material. The leaf
// certificate's public key must match the signing key.
func NewMock(key ed25519.PrivateKey, chain []*x509.Certificate, log Log) (*Mock, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("cert chain must not be empty")
	}
	leafPub, ok := chain[0].PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("leaf certificate does not hold an ed25519 key")
	}
	if !leafPub.Equal(key.Public()) {
		return nil, fmt.Errorf("leaf certificate public key does not match signing key")
	}

	logBytes, err := log.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize measurement log: %w", err)
	}

	return &Mock{
		key:      key,
		chain:    chain,
		log:      log,
		logBytes: logBytes,
	}, nil
}

// LoadMock builds a mock platform RoT from fixture paths: a leaf-first PEM
// certificate list, a CBOR-serialized measurement log, and a PKCS#8 PEM
// ed25519 signing key.
func LoadMock(certListPath, logPath, keyPath string) (*Mock, error) {
	chain, err := LoadCertList(certListPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load cert list %s: %w", certListPath, err)
	}

	logData, err := os.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read measurement log %s: %w", logPath, err)
	}
	log, err := DecodeLog(logData)
	if err != nil {
		return nil, fmt.Errorf("failed to parse measurement log %s: %w", logPath, err)
	}

	key, err := LoadSigningKey(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key %s: %w", keyPath, err)
	}

	return NewMock(key, chain, log)
}

// Attest signs a statement binding the given nonce to the digest of the
// mock's measurement log. The nonce here is the inner nonce computed by the
// wrapping instance RoT; the mock never sees the challenger's raw nonce.
func (m *Mock) Attest(nonce [DigestSize]byte) (Statement, error) {
	st := Statement{
		Version:   StatementVersion,
		Nonce:     nonce,
		LogDigest: sha256.Sum256(m.logBytes),
	}
	copy(st.Signature[:], ed25519.Sign(m.key, st.signedBytes()))
	return st, nil
}

// MeasurementLog returns the mock's measurement log.
func (m *Mock) MeasurementLog() Log {
	return m.log
}

// LogBytes returns the canonical serialized form of the measurement log,
// the bytes whose digest appears in every statement the mock signs.
func (m *Mock) LogBytes() []byte {
	return m.logBytes
}

// Certificates returns the leaf-first cert chain for the mock's signing key.
func (m *Mock) Certificates() []*x509.Certificate {
	return m.chain
}

// LoadCertList parses a PEM file holding a leaf-first certificate list.
func LoadCertList(path string) ([]*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var certs []*x509.Certificate
	for len(data) > 0 {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("no certificates found")
	}
	return certs, nil
}

// LoadCert parses a PEM file holding a single certificate.
func LoadCert(path string) (*x509.Certificate, error) {
	certs, err := LoadCertList(path)
	if err != nil {
		return nil, err
	}
	if len(certs) != 1 {
		return nil, fmt.Errorf("expected exactly one certificate, found %d", len(certs))
	}
	return certs[0], nil
}

// LoadSigningKey parses a PKCS#8 PEM ed25519 private key.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is %T, expected ed25519", parsed)
	}
	return key, nil
}
