// Package fixture generates the test PKI material and mock measurement
// corpora consumed by tests and by local development servers: an ed25519
// certificate chain, a platform measurement log, and the matching
// reference-measurement corpus. Runtime code never calls this package; the
// outputs are consumed as file paths.
package fixture

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/gobeyondidentity/attestd/pkg/dice"
)

// Output file names, matching what the fixture tooling has always
// produced.
const (
	RootCertFile = "test-root.cert.pem"
	CertListFile = "test-alias.certlist.pem"
	KeyFile      = "test-alias.key.pem"
	LogFile      = "log.bin"
	CorimFile    = "corim.cbor"
)

// Fixture holds one complete set of generated test material.
type Fixture struct {
	// Root anchors the chain; it is distributed separately as the
	// challenger's trusted root bundle.
	Root *x509.Certificate

	// Chain is the platform RoT's cert path, leaf first, terminating in
	// Root.
	Chain []*x509.Certificate

	// SigningKey is the leaf (alias) signing key.
	SigningKey ed25519.PrivateKey

	// Log is the platform measurement log.
	Log dice.Log

	// References is the known-good corpus matching Log.
	References *dice.ReferenceMeasurements
}

// Generate creates a fresh fixture: a three-level ed25519 PKI
// (root -> device -> alias), a default platform measurement log, and a
// reference corpus agreeing with that log.
func Generate() (*Fixture, error) {
	rootKey, rootCert, err := createCA("test-root", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create root CA: %w", err)
	}

	deviceKey, deviceCert, err := createCA("test-device", rootCert, rootKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create device CA: %w", err)
	}

	aliasKey, aliasCert, err := createLeaf("test-alias", deviceCert, deviceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create alias cert: %w", err)
	}

	log := DefaultLog()

	return &Fixture{
		Root:       rootCert,
		Chain:      []*x509.Certificate{aliasCert, deviceCert, rootCert},
		SigningKey: aliasKey,
		Log:        log,
		References: ReferencesFor(log),
	}, nil
}

// DefaultLog returns the stock platform measurement log used by generated
// fixtures.
func DefaultLog() dice.Log {
	return dice.Log{
		Measurements: []dice.Measurement{
			{Index: 0, Name: "boot-rom", Algorithm: "sha256", Digest: fixedDigest(0xA0)},
			{Index: 1, Name: "firmware", Algorithm: "sha256", Digest: fixedDigest(0xB1)},
			{Index: 2, Name: "security-config", Algorithm: "sha256", Digest: fixedDigest(0xC2)},
		},
	}
}

// ReferencesFor derives a reference corpus that agrees with the given log.
func ReferencesFor(log dice.Log) *dice.ReferenceMeasurements {
	refs := &dice.ReferenceMeasurements{ID: "test-platform"}
	for _, m := range log.Measurements {
		refs.Measurements = append(refs.Measurements, dice.ReferenceMeasurement{
			Index:     m.Index,
			Name:      m.Name,
			Algorithm: m.Algorithm,
			Digest:    m.Digest,
		})
	}
	return refs
}

// Mock builds a platform RoT mock directly from the in-memory fixture.
func (f *Fixture) Mock() (*dice.Mock, error) {
	return dice.NewMock(f.SigningKey, f.Chain, f.Log)
}

// Write saves the fixture to dir using the canonical file names.
func (f *Fixture) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create fixture dir %s: %w", dir, err)
	}

	if err := writePEM(filepath.Join(dir, RootCertFile), "CERTIFICATE", f.Root.Raw); err != nil {
		return err
	}

	var chainPEM []byte
	for _, cert := range f.Chain {
		chainPEM = append(chainPEM, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	if err := os.WriteFile(filepath.Join(dir, CertListFile), chainPEM, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", CertListFile, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(f.SigningKey)
	if err != nil {
		return fmt.Errorf("failed to marshal signing key: %w", err)
	}
	if err := writePEMWithMode(filepath.Join(dir, KeyFile), "PRIVATE KEY", keyDER, 0o600); err != nil {
		return err
	}

	logBytes, err := f.Log.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, LogFile), logBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", LogFile, err)
	}

	refBytes, err := f.References.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, CorimFile), refBytes, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", CorimFile, err)
	}

	return nil
}

func createCA(cn string, parent *x509.Certificate, parentKey ed25519.PrivateKey) (ed25519.PrivateKey, *x509.Certificate, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}

	// Self-signed when no parent is given.
	signer := parentKey
	issuer := parent
	if issuer == nil {
		signer = key
		issuer = template
	}

	der, err := x509.CreateCertificate(rand.Reader, template, issuer, pub, signer)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}

func createLeaf(cn string, parent *x509.Certificate, parentKey ed25519.PrivateKey) (ed25519.PrivateKey, *x509.Certificate, error) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, parentKey)
	if err != nil {
		return nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, err
	}
	return key, cert, nil
}

func newSerial() *big.Int {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		// rand.Int only fails if the platform RNG is broken, in which
		// case certificate generation is doomed anyway.
		panic(err)
	}
	return serial
}

func fixedDigest(fill byte) []byte {
	d := make([]byte, 32)
	for i := range d {
		d[i] = fill
	}
	return d
}

func writePEM(path, blockType string, der []byte) error {
	return writePEMWithMode(path, blockType, der, 0o644)
}

func writePEMWithMode(path, blockType string, der []byte, mode os.FileMode) error {
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
