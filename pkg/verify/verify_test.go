package verify_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/gobeyondidentity/attestd/internal/fixture"
	"github.com/gobeyondidentity/attestd/pkg/instance"
	"github.com/gobeyondidentity/attestd/pkg/rot"
	"github.com/gobeyondidentity/attestd/pkg/verify"
)

// tamper wraps an in-process attester and lets a test rewrite any of the
// three capability results before the verifier sees them.
type tamper struct {
	inner        rot.Attester
	attestations func([]rot.Attestation) []rot.Attestation
	logs         func([]rot.MeasurementLog) []rot.MeasurementLog
	chains       func([]rot.CertChain) []rot.CertChain
}

func (m *tamper) Attest(nonce rot.Nonce, userData []byte) ([]rot.Attestation, error) {
	atts, err := m.inner.Attest(nonce, userData)
	if err != nil {
		return nil, err
	}
	if m.attestations != nil {
		atts = m.attestations(atts)
	}
	return atts, nil
}

func (m *tamper) MeasurementLogs() ([]rot.MeasurementLog, error) {
	logs, err := m.inner.MeasurementLogs()
	if err != nil {
		return nil, err
	}
	if m.logs != nil {
		logs = m.logs(logs)
	}
	return logs, nil
}

func (m *tamper) CertChains() ([]rot.CertChain, error) {
	chains, err := m.inner.CertChains()
	if err != nil {
		return nil, err
	}
	if m.chains != nil {
		chains = m.chains(chains)
	}
	return chains, nil
}

func setup(t *testing.T) (*fixture.Fixture, *instance.Mock, string) {
	t.Helper()

	fix, err := fixture.Generate()
	if err != nil {
		t.Fatalf("failed to generate fixture: %v", err)
	}
	platform, err := fix.Mock()
	if err != nil {
		t.Fatalf("failed to build platform mock: %v", err)
	}
	log := instance.NewInstanceLog(uuid.New(), bytes.Repeat([]byte{0xD4}, 32), "test-image-1.0")
	mock, err := instance.NewMock(platform, log)
	if err != nil {
		t.Fatalf("failed to build instance mock: %v", err)
	}

	dir := t.TempDir()
	if err := fix.Write(dir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	return fix, mock, filepath.Join(dir, fixture.RootCertFile)
}

func TestVerify_Accepts(t *testing.T) {
	fix, mock, rootPath := setup(t)

	decision, err := verify.Verify(mock, verify.Config{
		TrustedRootPath: rootPath,
		UserData:        []byte("deployment-token"),
		References:      fix.References,
	})
	if err != nil {
		t.Fatalf("verification errored: %v", err)
	}
	if !decision.Verified {
		t.Fatalf("genuine attester rejected: %s", decision.Reason)
	}
	if decision.Root == nil {
		t.Error("accepting decision carries no root")
	}
}

func TestVerify_SelfSignedMode(t *testing.T) {
	fix, mock, _ := setup(t)

	decision, err := verify.Verify(mock, verify.Config{SelfSigned: true})
	if err != nil {
		t.Fatalf("verification errored: %v", err)
	}
	if !decision.Verified {
		t.Fatalf("genuine attester rejected: %s", decision.Reason)
	}
	if decision.Root == nil || !decision.Root.Equal(fix.Root) {
		t.Error("decision root is not the chain's own root")
	}
}

func TestVerify_ConfigErrors(t *testing.T) {
	_, mock, rootPath := setup(t)

	t.Run("no trust anchor chosen", func(t *testing.T) {
		if _, err := verify.Verify(mock, verify.Config{}); err == nil {
			t.Error("expected configuration error")
		}
	})

	t.Run("both anchors chosen", func(t *testing.T) {
		cfg := verify.Config{TrustedRootPath: rootPath, SelfSigned: true}
		if _, err := verify.Verify(mock, cfg); err == nil {
			t.Error("expected configuration error")
		}
	})

	t.Run("unreadable root", func(t *testing.T) {
		cfg := verify.Config{TrustedRootPath: filepath.Join(t.TempDir(), "absent.pem")}
		if _, err := verify.Verify(mock, cfg); err == nil {
			t.Error("expected load error")
		}
	})
}

func TestVerify_RejectsForeignChain(t *testing.T) {
	_, mock, _ := setup(t)

	// A root from a different PKI: the chain must be rejected, not
	// errored, and the attestation check still runs.
	otherFix, err := fixture.Generate()
	if err != nil {
		t.Fatalf("failed to generate fixture: %v", err)
	}
	otherDir := t.TempDir()
	if err := otherFix.Write(otherDir); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	decision, err := verify.Verify(mock, verify.Config{
		TrustedRootPath: filepath.Join(otherDir, fixture.RootCertFile),
	})
	if err != nil {
		t.Fatalf("verification errored: %v", err)
	}
	if decision.Verified {
		t.Fatal("foreign chain accepted")
	}
	if !strings.Contains(decision.Reason, "chain") {
		t.Errorf("reason does not mention the chain: %s", decision.Reason)
	}
}

func TestVerify_RejectsTamperedInstanceLog(t *testing.T) {
	_, mock, rootPath := setup(t)

	// Flipping a byte in the presented instance log breaks the digest
	// chain: the statement was signed over the real log bytes.
	att := &tamper{
		inner: mock,
		logs: func(logs []rot.MeasurementLog) []rot.MeasurementLog {
			for i := range logs {
				if logs[i].Rot == rot.RotInstance {
					data := append(rot.ByteSeq{}, logs[i].Data...)
					data[0] ^= 0xFF
					logs[i].Data = data
				}
			}
			return logs
		},
	}

	decision, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
	if err != nil {
		t.Fatalf("verification errored: %v", err)
	}
	if decision.Verified {
		t.Fatal("tampered instance log accepted")
	}
}

func TestVerify_RejectsTamperedStatement(t *testing.T) {
	_, mock, rootPath := setup(t)

	att := &tamper{
		inner: mock,
		attestations: func(atts []rot.Attestation) []rot.Attestation {
			data := append(rot.ByteSeq{}, atts[0].Data...)
			data[len(data)-1] ^= 0xFF
			atts[0].Data = data
			return atts
		},
	}

	decision, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
	if err != nil {
		t.Fatalf("verification errored: %v", err)
	}
	if decision.Verified {
		t.Fatal("tampered statement accepted")
	}
}

func TestVerify_ErrorsOnMissingInstanceLog(t *testing.T) {
	_, mock, rootPath := setup(t)

	// Without the instance log the digest cannot be reconstructed. That
	// is an operational failure, never a silent skip.
	att := &tamper{
		inner: mock,
		logs: func(logs []rot.MeasurementLog) []rot.MeasurementLog {
			var kept []rot.MeasurementLog
			for _, l := range logs {
				if l.Rot != rot.RotInstance {
					kept = append(kept, l)
				}
			}
			return kept
		},
	}

	_, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
	if !errors.Is(err, rot.ErrNoLog) {
		t.Errorf("expected ErrNoLog, got %v", err)
	}
}

func TestVerify_ErrorsOnWrongAttestationCount(t *testing.T) {
	_, mock, rootPath := setup(t)

	t.Run("zero", func(t *testing.T) {
		att := &tamper{
			inner:        mock,
			attestations: func([]rot.Attestation) []rot.Attestation { return nil },
		}
		_, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
		if !errors.Is(err, rot.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("two", func(t *testing.T) {
		att := &tamper{
			inner: mock,
			attestations: func(atts []rot.Attestation) []rot.Attestation {
				return append(atts, atts[0])
			},
		}
		_, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
		if !errors.Is(err, rot.ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})
}

func TestVerify_ErrorsOnInstanceTaggedAttestation(t *testing.T) {
	_, mock, rootPath := setup(t)

	att := &tamper{
		inner: mock,
		attestations: func(atts []rot.Attestation) []rot.Attestation {
			atts[0].Rot = rot.RotInstance
			return atts
		},
	}

	_, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
	if !errors.Is(err, rot.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestVerify_ErrorsOnInstanceChain(t *testing.T) {
	_, mock, rootPath := setup(t)

	// The instance RoT never signs; presenting a chain for it is a
	// contract violation and must surface loudly.
	att := &tamper{
		inner: mock,
		chains: func(chains []rot.CertChain) []rot.CertChain {
			return append(chains, rot.CertChain{
				Rot:   rot.RotInstance,
				Certs: []rot.ByteSeq{{0x30}},
			})
		},
	}

	_, err := verify.Verify(att, verify.Config{TrustedRootPath: rootPath})
	if !errors.Is(err, rot.ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}

func TestVerify_RejectsOnReferenceMismatch(t *testing.T) {
	fix, mock, rootPath := setup(t)

	// A corpus whose firmware digest disagrees with the platform log.
	bad := fixture.ReferencesFor(fix.Log)
	bad.Measurements[1].Digest = make([]byte, 32)

	decision, err := verify.Verify(mock, verify.Config{
		TrustedRootPath: rootPath,
		References:      bad,
	})
	if err != nil {
		t.Fatalf("verification errored: %v", err)
	}
	if decision.Verified {
		t.Fatal("mismatched reference corpus accepted")
	}
}
