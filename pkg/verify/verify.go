// Package verify implements the challenger-side verification pipeline: it
// drives an attester endpoint through a full exchange, reconstructs the
// chained digest from its own copies of nonce, user data, and measurement
// log, and folds chain validation and attestation verification into one
// binary accept/reject decision.
package verify

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/gobeyondidentity/attestd/pkg/dice"
	"github.com/gobeyondidentity/attestd/pkg/rot"
)

// Config selects the trust anchor and challenge inputs for one
// verification attempt.
type Config struct {
	// TrustedRootPath is a PEM certificate bundle anchoring the platform
	// RoT's chain. Mutually exclusive with SelfSigned; one of the two must
	// be chosen.
	TrustedRootPath string

	// SelfSigned opts into accepting a chain that terminates in a
	// self-signed root instead of a known anchor.
	SelfSigned bool

	// UserData is the application data entangled into the chained digest.
	UserData []byte

	// References, when non-nil, additionally appraises the platform
	// measurement log against this known-good corpus.
	References *dice.ReferenceMeasurements
}

// Decision is the outcome of one verification attempt. Verified is true
// only if chain validation and attestation verification both succeeded;
// there is no partial-success state.
type Decision struct {
	Verified bool
	Reason   string

	// Root is the certificate that anchored the platform chain.
	Root *x509.Certificate
}

// Verify runs the full pipeline against an attester endpoint.
//
// Cryptographic rejections come back as a Decision with Verified=false;
// configuration, transport, and protocol failures come back as errors.
// Both chain validation and attestation verification always run, so a
// failure in one never masks a failure in the other.
func Verify(att rot.Attester, cfg Config) (*Decision, error) {
	root, err := loadRoot(cfg)
	if err != nil {
		return nil, err
	}

	// Fetch and validate cert chains. A chain presented for a RoT that
	// never signs is a contract violation, reported loudly rather than
	// skipped.
	chains, err := att.CertChains()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch cert chains: %w", err)
	}

	var rejections []string
	var anchor *x509.Certificate
	for _, chain := range chains {
		if err := chain.Rot.Valid(); err != nil {
			return nil, fmt.Errorf("%w: cert chain with %v", rot.ErrMalformed, err)
		}
		if !chain.Rot.Signs() {
			return nil, fmt.Errorf("%w: RoT %q never signs but presented a cert chain", rot.ErrMalformed, chain.Rot)
		}
	}

	platformChain, err := rot.ChainFor(chains, rot.RotPlatform)
	if err != nil {
		return nil, fmt.Errorf("failed to locate platform cert chain: %w", err)
	}
	certs, err := parseChain(platformChain)
	if err != nil {
		return nil, err
	}

	if a, err := dice.VerifyCertChain(certs, root); err != nil {
		if !isRejection(err) {
			return nil, err
		}
		rejections = append(rejections, err.Error())
	} else {
		anchor = a
	}

	// Fetch measurement logs and index them by RoT type.
	logs, err := att.MeasurementLogs()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch measurement logs: %w", err)
	}
	if err := uniqueByRot(logs); err != nil {
		return nil, err
	}

	// Challenge the endpoint with a fresh nonce.
	nonce, err := rot.NewNonce()
	if err != nil {
		return nil, err
	}
	attestations, err := att.Attest(nonce, cfg.UserData)
	if err != nil {
		return nil, fmt.Errorf("attest failed: %w", err)
	}
	if len(attestations) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one attestation, got %d", rot.ErrMalformed, len(attestations))
	}
	attestation := attestations[0]
	switch attestation.Rot {
	case rot.RotPlatform:
		// The expected chained platform evidence.
	case rot.RotInstance:
		// The instance RoT never signs; an instance-tagged attestation
		// means the attester side violated the ordering contract.
		return nil, fmt.Errorf("%w: attestation tagged with non-signing RoT %q", rot.ErrMalformed, attestation.Rot)
	default:
		return nil, fmt.Errorf("%w: attestation with unknown RoT %q", rot.ErrMalformed, attestation.Rot)
	}

	statement, err := dice.DecodeStatement(attestation.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rot.ErrMalformed, err)
	}

	// Reconstruct the chained digest independently of the server: the
	// instance measurement log bytes take the lead position, then the
	// nonce, then the user data, mirroring the instance RoT's own
	// computation. A missing instance log is an explicit failure; digest
	// reconstruction is never skipped.
	instanceLog, err := rot.LogFor(logs, rot.RotInstance)
	if err != nil {
		return nil, fmt.Errorf("cannot reconstruct chained digest: %w", err)
	}
	expected := rot.ChainDigest(instanceLog.Data, nonce, cfg.UserData)

	platformLog, err := rot.LogFor(logs, rot.RotPlatform)
	if err != nil {
		return nil, fmt.Errorf("cannot verify statement: %w", err)
	}

	// The leaf signing certificate is the first in the platform chain.
	if err := dice.VerifyAttestation(certs[0], statement, platformLog.Data, expected); err != nil {
		if !isRejection(err) {
			return nil, err
		}
		rejections = append(rejections, err.Error())
	}

	if cfg.References != nil {
		decoded, err := dice.DecodeLog(platformLog.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", rot.ErrMalformed, err)
		}
		if err := dice.AppraiseLog(decoded, cfg.References); err != nil {
			if !isRejection(err) {
				return nil, err
			}
			rejections = append(rejections, err.Error())
		}
	}

	if len(rejections) > 0 {
		return &Decision{Verified: false, Reason: strings.Join(rejections, "; ")}, nil
	}
	return &Decision{Verified: true, Root: anchor}, nil
}

// loadRoot enforces the trust-anchor configuration: a trusted root bundle
// or explicit self-signed mode, exactly one of the two. Absence of both is
// a configuration error, not a default.
func loadRoot(cfg Config) (*x509.Certificate, error) {
	switch {
	case cfg.TrustedRootPath != "" && cfg.SelfSigned:
		return nil, fmt.Errorf("trusted root and self-signed mode are mutually exclusive")
	case cfg.TrustedRootPath != "":
		root, err := dice.LoadCert(cfg.TrustedRootPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load trusted root: %w", err)
		}
		return root, nil
	case cfg.SelfSigned:
		return nil, nil
	default:
		return nil, fmt.Errorf("either a trusted root or self-signed mode must be chosen")
	}
}

// parseChain decodes a wire cert chain into parsed certificates,
// preserving leaf-first order.
func parseChain(chain rot.CertChain) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, len(chain.Certs))
	for i, der := range chain.Certs {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: certificate %d in %q chain: %v", rot.ErrMalformed, i, chain.Rot, err)
		}
		certs[i] = cert
	}
	return certs, nil
}

// uniqueByRot rejects duplicate logs for one RoT type.
func uniqueByRot(logs []rot.MeasurementLog) error {
	seen := make(map[rot.RotType]bool, len(logs))
	for _, l := range logs {
		if err := l.Rot.Valid(); err != nil {
			return fmt.Errorf("%w: measurement log with %v", rot.ErrMalformed, err)
		}
		if seen[l.Rot] {
			return fmt.Errorf("%w: duplicate measurement log for RoT %q", rot.ErrMalformed, l.Rot)
		}
		seen[l.Rot] = true
	}
	return nil
}

// isRejection distinguishes a definitive cryptographic rejection from an
// operational failure.
func isRejection(err error) bool {
	return errors.Is(err, dice.ErrRejected)
}
