package fixture

import (
	"path/filepath"
	"testing"

	"github.com/gobeyondidentity/attestd/pkg/dice"
)

func TestGenerate_ChainVerifies(t *testing.T) {
	fix, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(fix.Chain) != 3 {
		t.Fatalf("expected a three-level chain, got %d certs", len(fix.Chain))
	}
	if fix.Chain[len(fix.Chain)-1] != fix.Root {
		t.Error("chain does not terminate in the root")
	}
	if _, err := dice.VerifyCertChain(fix.Chain, fix.Root); err != nil {
		t.Errorf("generated chain does not verify: %v", err)
	}
	if err := dice.AppraiseLog(fix.Log, fix.References); err != nil {
		t.Errorf("generated log does not match its own references: %v", err)
	}
}

func TestWrite_LoadMockRoundTrip(t *testing.T) {
	fix, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	dir := t.TempDir()
	if err := fix.Write(dir); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	mock, err := dice.LoadMock(
		filepath.Join(dir, CertListFile),
		filepath.Join(dir, LogFile),
		filepath.Join(dir, KeyFile),
	)
	if err != nil {
		t.Fatalf("written fixture does not load back: %v", err)
	}

	root, err := dice.LoadCert(filepath.Join(dir, RootCertFile))
	if err != nil {
		t.Fatalf("root does not load back: %v", err)
	}
	if _, err := dice.VerifyCertChain(mock.Certificates(), root); err != nil {
		t.Errorf("loaded chain does not verify against loaded root: %v", err)
	}

	refs, err := dice.LoadReferenceMeasurements(filepath.Join(dir, CorimFile))
	if err != nil {
		t.Fatalf("reference corpus does not load back: %v", err)
	}
	if err := dice.AppraiseLog(mock.MeasurementLog(), refs); err != nil {
		t.Errorf("loaded log fails appraisal against loaded corpus: %v", err)
	}
}

func TestGenerate_KeysAreFresh(t *testing.T) {
	a, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	b, err := Generate()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if a.SigningKey.Equal(b.SigningKey) {
		t.Error("two fixtures share a signing key")
	}
}
