package dice

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
)

// ErrRejected marks a definitive cryptographic rejection: a failed chain
// validation, nonce binding, log digest, or signature check. Rejections are
// never downgraded to warnings.
var ErrRejected = errors.New("attestation rejected")

// VerifyCertChain validates a leaf-first certificate path. With a non-nil
// root the path must anchor to it; with a nil root the caller has opted
// into self-signed mode and the path must terminate in a self-signed
// certificate. Returns the anchoring root certificate.
func VerifyCertChain(chain []*x509.Certificate, root *x509.Certificate) (*x509.Certificate, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: empty cert chain", ErrRejected)
	}

	anchor := root
	if anchor == nil {
		last := chain[len(chain)-1]
		if err := last.CheckSignatureFrom(last); err != nil {
			return nil, fmt.Errorf("%w: chain does not terminate in a self-signed certificate: %v", ErrRejected, err)
		}
		anchor = last
	}

	roots := x509.NewCertPool()
	roots.AddCert(anchor)

	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	_, err := chain[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: cert chain validation failed: %v", ErrRejected, err)
	}

	return anchor, nil
}

// VerifyAttestation checks a platform RoT statement against the leaf
// signing certificate, the presented measurement log bytes, and the digest
// the challenger reconstructed independently. All three checks must pass;
// any single failure is a rejection.
func VerifyAttestation(leaf *x509.Certificate, st Statement, logBytes []byte, expectedDigest [DigestSize]byte) error {
	if st.Nonce != expectedDigest {
		return fmt.Errorf("%w: statement nonce does not match reconstructed digest", ErrRejected)
	}

	logDigest := sha256.Sum256(logBytes)
	if !bytes.Equal(st.LogDigest[:], logDigest[:]) {
		return fmt.Errorf("%w: statement log digest does not match presented measurement log", ErrRejected)
	}

	pub, ok := leaf.PublicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("leaf certificate holds %T, expected ed25519", leaf.PublicKey)
	}
	if !ed25519.Verify(pub, st.signedBytes(), st.Signature[:]) {
		return fmt.Errorf("%w: statement signature invalid", ErrRejected)
	}

	return nil
}
